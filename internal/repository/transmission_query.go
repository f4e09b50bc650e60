package repository

import (
    "context"
    "strings"
    "time"

    "github.com/iliyamo/trunk-player/internal/model"
)

// Page size bounds for transmission listings.
const (
    DefaultTransmissionLimit = 50
    MaxTransmissionLimit     = 500
)

// TransmissionQuery defines filters and pagination for listing
// transmissions.  Every field is optional except Scope, which must carry
// the caller's accessible talkgroups; an empty scope returns nothing.
// Results are always ordered by start time, newest first.
type TransmissionQuery struct {
    Scope       TalkGroupScope
    TalkGroupID *uint64
    SystemID    *uint64
    UnitID      *uint64
    ScanListID  *uint64
    IncidentID  *uint64
    Emergency   *bool
    Since       *time.Time // start_datetime >= Since
    Until       *time.Time // start_datetime <  Until
    Limit       int
    Offset      int
}

// TransmissionPage is one page of a listing plus the total match count.
type TransmissionPage struct {
    Items []model.Transmission
    Total int64
}

// Recent returns the newest transmissions visible within scope that
// started at or after since (nil for no bound).
func (r *TransmissionRepo) Recent(ctx context.Context, scope TalkGroupScope, since *time.Time, limit int) ([]model.Transmission, error) {
    page, err := r.List(ctx, TransmissionQuery{Scope: scope, Since: since, Limit: limit})
    return page.Items, err
}

// ForTalkGroup returns the newest transmissions on one talkgroup.
func (r *TransmissionRepo) ForTalkGroup(ctx context.Context, talkGroupID uint64, scope TalkGroupScope, since *time.Time, limit int) ([]model.Transmission, error) {
    page, err := r.List(ctx, TransmissionQuery{Scope: scope, TalkGroupID: &talkGroupID, Since: since, Limit: limit})
    return page.Items, err
}

// InDateRange returns transmissions that started in [from, to).
func (r *TransmissionRepo) InDateRange(ctx context.Context, scope TalkGroupScope, from, to time.Time, limit int) ([]model.Transmission, error) {
    page, err := r.List(ctx, TransmissionQuery{Scope: scope, Since: &from, Until: &to, Limit: limit})
    return page.Items, err
}

// List runs q.  Each filter maps to one fixed predicate.
func (r *TransmissionRepo) List(ctx context.Context, q TransmissionQuery) (TransmissionPage, error) {
    page := TransmissionPage{Items: []model.Transmission{}}
    if q.Scope.Empty() {
        return page, nil
    }

    where := []string{}
    args := []any{}

    if !q.Scope.All {
        where = append(where, "t.talkgroup_id IN ("+placeholders(len(q.Scope.IDs))+")")
        args = append(args, uint64Args(q.Scope.IDs)...)
    }
    if q.TalkGroupID != nil {
        where = append(where, "t.talkgroup_id = ?")
        args = append(args, *q.TalkGroupID)
    }
    if q.SystemID != nil {
        where = append(where, "t.system_id = ?")
        args = append(args, *q.SystemID)
    }
    if q.UnitID != nil {
        where = append(where, "EXISTS (SELECT 1 FROM transmission_units tu WHERE tu.transmission_id = t.id AND tu.unit_id = ?)")
        args = append(args, *q.UnitID)
    }
    if q.ScanListID != nil {
        where = append(where, "t.talkgroup_id IN (SELECT st.talkgroup_id FROM scanlist_talkgroups st WHERE st.scanlist_id = ?)")
        args = append(args, *q.ScanListID)
    }
    if q.IncidentID != nil {
        where = append(where, "EXISTS (SELECT 1 FROM incident_transmissions it WHERE it.transmission_id = t.id AND it.incident_id = ?)")
        args = append(args, *q.IncidentID)
    }
    if q.Emergency != nil {
        where = append(where, "t.emergency = ?")
        args = append(args, *q.Emergency)
    }
    if q.Since != nil {
        where = append(where, "t.start_datetime >= ?")
        args = append(args, q.Since.UTC())
    }
    if q.Until != nil {
        where = append(where, "t.start_datetime < ?")
        args = append(args, q.Until.UTC())
    }

    cond := "1=1"
    if len(where) > 0 {
        cond = strings.Join(where, " AND ")
    }

    if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transmissions t WHERE `+cond, args...).Scan(&page.Total); err != nil {
        return page, err
    }

    limit := q.Limit
    if limit <= 0 {
        limit = DefaultTransmissionLimit
    }
    if limit > MaxTransmissionLimit {
        limit = MaxTransmissionLimit
    }
    offset := q.Offset
    if offset < 0 {
        offset = 0
    }

    dataSQL := `SELECT ` + transmissionColumns + transmissionFrom + `
        WHERE ` + cond + `
        ORDER BY t.start_datetime DESC, t.id DESC
        LIMIT ? OFFSET ?`
    rows, err := r.db.QueryContext(ctx, dataSQL, append(args, limit, offset)...)
    if err != nil {
        return page, err
    }
    defer rows.Close()
    for rows.Next() {
        t, err := scanTransmission(rows)
        if err != nil {
            return page, err
        }
        page.Items = append(page.Items, *t)
    }
    return page, rows.Err()
}
