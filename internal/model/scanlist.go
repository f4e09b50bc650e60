package model

import "time"

// ScanList is a user-owned list of talkgroups.  Every scanlist containing a
// talkgroup receives that talkgroup's live events.
type ScanList struct {
    ID          uint64    // scanlists.id
    CreatedBy   uint64    // scanlists.created_by
    Name        string    // scanlists.name (unique)
    Slug        string    // scanlists.slug (unique)
    Description string    // scanlists.description
    Public      bool      // scanlists.public
    CreatedAt   time.Time // scanlists.created_at
    UpdatedAt   time.Time // scanlists.updated_at

    TalkGroups []TalkGroupRef // scanlist_talkgroups (loaded on detail reads)
}

// Incident groups transmissions curated by users after the fact.
type Incident struct {
    ID          uint64    // incidents.id
    Name        string    // incidents.name (unique)
    Slug        string    // incidents.slug (unique)
    Description string    // incidents.description
    Public      bool      // incidents.public
    CreatedBy   *uint64   // incidents.created_by (nullable)
    CreatedAt   time.Time // incidents.created_at
    UpdatedAt   time.Time // incidents.updated_at
}
