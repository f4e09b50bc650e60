package model

import (
    "strconv"
    "time"
)

// UnitType classifies a radio unit.  Values are the single-letter codes
// stored in units.unit_type.
type UnitType string

const (
    UnitMobile   UnitType = "M"
    UnitPortable UnitType = "P"
    UnitBase     UnitType = "B"
    UnitDispatch UnitType = "D"
)

// Valid reports whether the unit type is one of the known codes.
func (u UnitType) Valid() bool {
    switch u {
    case UnitMobile, UnitPortable, UnitBase, UnitDispatch:
        return true
    }
    return false
}

// Unit is an individual radio within a System, unique per (system, dec_id).
type Unit struct {
    ID          uint64    // units.id
    SystemID    uint64    // units.system_id
    DecID       int64     // units.dec_id
    Description string    // units.description
    UnitType    UnitType  // units.unit_type
    UnitNumber  string    // units.unit_number
    Slug        string    // units.slug
    CreatedAt   time.Time // units.created_at
    UpdatedAt   time.Time // units.updated_at

    SystemName string // systems.name (joined on reads)
}

// DisplayName returns the best available label for the unit.
func (u Unit) DisplayName() string {
    if u.Description != "" {
        return u.Description
    }
    if u.UnitNumber != "" {
        return u.UnitNumber
    }
    return "Unit " + strconv.FormatInt(u.DecID, 10)
}

// Snapshot captures the unit as it appears on a transmission at import time.
func (u Unit) Snapshot() UnitSnapshot {
    return UnitSnapshot{ID: u.ID, DecID: u.DecID, Name: u.DisplayName()}
}
