package model

import (
    "strconv"
    "time"
)

// TalkGroup is a logical radio channel inside a System.  DecID is unique per
// system only, so the slug is prefixed with the system slug to stay unique
// across systems.
//
// Fields:
//  IsPublic         – included in the public (anonymous) talkgroup set.
//  LastTransmission – set by ingestion on every new transmission.
//  RecentUsage      – transmissions within the recent window, maintained by
//                     the usage consumer.
type TalkGroup struct {
    ID               uint64     // talkgroups.id
    SystemID         uint64     // talkgroups.system_id
    DecID            int64      // talkgroups.dec_id
    AlphaTag         string     // talkgroups.alpha_tag
    CommonName       string     // talkgroups.common_name
    Description      string     // talkgroups.description
    Slug             string     // talkgroups.slug
    IsPublic         bool       // talkgroups.is_public
    LastTransmission *time.Time // talkgroups.last_transmission (nullable)
    RecentUsage      int        // talkgroups.recent_usage
    CreatedAt        time.Time  // talkgroups.created_at
    UpdatedAt        time.Time  // talkgroups.updated_at

    SystemName string // systems.name (joined on reads)
}

// DisplayName returns the best available label for the talkgroup.
func (t TalkGroup) DisplayName() string {
    if t.CommonName != "" {
        return t.CommonName
    }
    if t.AlphaTag != "" {
        return t.AlphaTag
    }
    return "TG " + strconv.FormatInt(t.DecID, 10)
}

// Ref returns the lightweight reference used by access checks.
func (t TalkGroup) Ref() TalkGroupRef {
    return TalkGroupRef{ID: t.ID, DecID: t.DecID, Slug: t.Slug}
}

// TalkGroupRef identifies a talkgroup without carrying its full record.
type TalkGroupRef struct {
    ID    uint64 `json:"id"`
    DecID int64  `json:"dec_id"`
    Slug  string `json:"slug"`
}
