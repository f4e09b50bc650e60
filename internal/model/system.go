package model

import "time"

// System represents a trunked radio system as stored in the `systems`
// table.  Systems own talkgroups and units; the slug is generated once from
// the name and never changes afterwards.
type System struct {
    ID          uint64    // systems.id
    Name        string    // systems.name (unique)
    Description string    // systems.description
    Slug        string    // systems.slug (unique)
    CreatedAt   time.Time // systems.created_at
    UpdatedAt   time.Time // systems.updated_at
}
