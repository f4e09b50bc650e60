package service

import (
    "context"
    "errors"
    "time"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/repository"
)

// AccessOptions mirrors the ACCESS_TG_RESTRICT and ANONYMOUS_TIME settings.
type AccessOptions struct {
    Restrict      bool // when false every talkgroup is visible to everyone
    AnonymousTime int  // history minutes for principals without a plan; 0 = unlimited
}

// AccessResolver decides which talkgroups a principal may see and how far
// back.  Both the query handlers and the live gateway use it.
type AccessResolver struct {
    talkgroups *repository.TalkGroupRepo
    access     *repository.AccessRepo
    opts       AccessOptions
}

// NewAccessResolver builds a resolver over the given repositories.
func NewAccessResolver(talkgroups *repository.TalkGroupRepo, access *repository.AccessRepo, opts AccessOptions) *AccessResolver {
    return &AccessResolver{talkgroups: talkgroups, access: access, opts: opts}
}

// AccessibleTalkGroups returns the talkgroups p may see.
//
//   - restriction disabled: every talkgroup
//   - anonymous, or authenticated without a profile: public talkgroups
//   - profile: the union of its access groups' talkgroups
func (r *AccessResolver) AccessibleTalkGroups(ctx context.Context, p model.Principal) (repository.TalkGroupScope, error) {
    if !r.opts.Restrict {
        return repository.TalkGroupScope{All: true}, nil
    }
    profile, err := r.profile(ctx, p)
    if err != nil {
        return repository.TalkGroupScope{}, err
    }
    var ids []uint64
    if profile == nil {
        ids, err = r.talkgroups.PublicIDs(ctx)
    } else {
        ids, err = r.access.ProfileTalkGroupIDs(ctx, profile.ID)
    }
    if err != nil {
        return repository.TalkGroupScope{}, err
    }
    return repository.TalkGroupScope{IDs: ids}, nil
}

// HistoryCutoff returns how far back p may look; 0 means unlimited.  A
// profile uses its plan's history (0 without a plan); anyone else gets the
// anonymous window.
func (r *AccessResolver) HistoryCutoff(ctx context.Context, p model.Principal) (time.Duration, error) {
    profile, err := r.profile(ctx, p)
    if err != nil {
        return 0, err
    }
    minutes := r.opts.AnonymousTime
    if profile != nil {
        minutes = profile.HistoryLimit()
    }
    return time.Duration(minutes) * time.Minute, nil
}

// Visibility bundles both answers for one request.
type Visibility struct {
    Scope   repository.TalkGroupScope
    History time.Duration // 0 = unlimited
}

// Since returns the oldest start time visible at now, or nil when history
// is unlimited.
func (v Visibility) Since(now time.Time) *time.Time {
    if v.History <= 0 {
        return nil
    }
    t := now.Add(-v.History)
    return &t
}

// AudioWithheld reports whether a transmission that started at start is
// older than the history window.  Such transmissions stay visible as
// metadata but their audio reference is hidden.
func (v Visibility) AudioWithheld(start, now time.Time) bool {
    return v.History > 0 && start.Before(now.Add(-v.History))
}

// Resolve computes the Visibility of p.
func (r *AccessResolver) Resolve(ctx context.Context, p model.Principal) (Visibility, error) {
    scope, err := r.AccessibleTalkGroups(ctx, p)
    if err != nil {
        return Visibility{}, err
    }
    history, err := r.HistoryCutoff(ctx, p)
    if err != nil {
        return Visibility{}, err
    }
    return Visibility{Scope: scope, History: history}, nil
}

// TalkGroupFilter adapts AccessibleTalkGroups to the live gateway's
// per-connection filter.  The set is resolved once, when the connection
// opens.
func (r *AccessResolver) TalkGroupFilter(ctx context.Context, p model.Principal) (func(uint64) bool, error) {
    scope, err := r.AccessibleTalkGroups(ctx, p)
    if err != nil {
        return nil, err
    }
    if scope.All {
        return func(uint64) bool { return true }, nil
    }
    set := make(map[uint64]struct{}, len(scope.IDs))
    for _, id := range scope.IDs {
        set[id] = struct{}{}
    }
    return func(id uint64) bool {
        _, ok := set[id]
        return ok
    }, nil
}

// profile loads p's profile, or nil for anonymous principals and users
// without one.
func (r *AccessResolver) profile(ctx context.Context, p model.Principal) (*model.Profile, error) {
    if !p.Authenticated {
        return nil, nil
    }
    profile, err := r.access.GetProfileByUser(ctx, p.UserID)
    if errors.Is(err, repository.ErrProfileNotFound) {
        return nil, nil
    }
    return profile, err
}
