// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/iliyamo/trunk-player/internal/model"
)

// ImportedQueue is the durable queue carrying TransmissionImportedEvent.
const ImportedQueue = "transmission.imported"

// TransmissionImportedEvent is published after an import commits.  It
// carries enough for downstream consumers (usage statistics, archivers,
// transcription workers) to act without re-reading the transmission.
type TransmissionImportedEvent struct {
    Slug           string    `json:"slug"`
    TransmissionID uint64    `json:"transmission_id"`
    SystemID       uint64    `json:"system_id"`
    SystemName     string    `json:"system_name"`
    TalkGroupID    uint64    `json:"talkgroup_id"`
    TalkGroupDecID int64     `json:"talkgroup_dec_id"`
    StartDatetime  time.Time `json:"start_datetime"`
    PlayLength     float64   `json:"play_length"`
    UnitIDs        []uint64  `json:"unit_ids"`
    Emergency      bool      `json:"emergency"`
    ImportedAt     time.Time `json:"imported_at"`
}

// NewImportedEvent builds the event for a stored transmission.
func NewImportedEvent(t *model.Transmission) TransmissionImportedEvent {
    ids := make([]uint64, 0, len(t.Units))
    for _, u := range t.Units {
        ids = append(ids, u.ID)
    }
    return TransmissionImportedEvent{
        Slug:           t.Slug,
        TransmissionID: t.ID,
        SystemID:       t.SystemID,
        SystemName:     t.SystemName,
        TalkGroupID:    t.TalkGroupID,
        TalkGroupDecID: t.TalkGroupDecID,
        StartDatetime:  t.StartDatetime,
        PlayLength:     t.PlayLength,
        UnitIDs:        ids,
        Emergency:      t.Emergency,
        ImportedAt:     t.CreatedAt,
    }
}
