package model

import "time"

// Plan is a named tier controlling how far back a user may look.  History
// is in minutes; zero means unlimited.  At most one plan is the default.
type Plan struct {
    ID          uint64    // plans.id
    Name        string    // plans.name (unique)
    Description string    // plans.description
    History     int       // plans.history
    IsDefault   bool      // plans.is_default
    CreatedAt   time.Time // plans.created_at
    UpdatedAt   time.Time // plans.updated_at
}

// TalkGroupAccess is a named set of talkgroups granted to profiles.
//
// Fields:
//  DefaultGroup         – assigned to every new profile.
//  DefaultNewTalkGroups – new public talkgroups join this group when created.
type TalkGroupAccess struct {
    ID                   uint64    // talkgroup_access.id
    Name                 string    // talkgroup_access.name (unique)
    Description          string    // talkgroup_access.description
    DefaultGroup         bool      // talkgroup_access.default_group
    DefaultNewTalkGroups bool      // talkgroup_access.default_new_talkgroups
    CreatedAt            time.Time // talkgroup_access.created_at
    UpdatedAt            time.Time // talkgroup_access.updated_at
}

// Profile extends an externally managed user with a plan and access groups.
type Profile struct {
    ID          uint64    // profiles.id
    UserID      uint64    // profiles.user_id (unique)
    PlanID      *uint64   // profiles.plan_id (nullable)
    ShowUnitIDs bool      // profiles.show_unit_ids
    IsApproved  bool      // profiles.is_approved
    CreatedAt   time.Time // profiles.created_at
    UpdatedAt   time.Time // profiles.updated_at

    Plan *Plan // loaded with the profile when PlanID is set
}

// HistoryLimit returns the plan's history window in minutes, 0 when the
// profile has no plan.
func (p Profile) HistoryLimit() int {
    if p.Plan == nil {
        return 0
    }
    return p.Plan.History
}
