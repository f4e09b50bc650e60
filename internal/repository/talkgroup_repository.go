package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strconv"
    "time"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/utils"
)

// ErrTalkGroupNotFound is returned when a talkgroup cannot be found in the DB.
var ErrTalkGroupNotFound = errors.New("talkgroup not found")

// TalkGroupRepo manages persistence for talkgroups.
type TalkGroupRepo struct {
    db *sql.DB
}

// NewTalkGroupRepo constructs a TalkGroupRepo with the given DB handle.
func NewTalkGroupRepo(db *sql.DB) *TalkGroupRepo {
    return &TalkGroupRepo{db: db}
}

// TalkGroupScope restricts a query to a set of talkgroups.  The zero value
// matches nothing; All matches every talkgroup.
type TalkGroupScope struct {
    All bool
    IDs []uint64
}

// Contains reports whether id is inside the scope.
func (s TalkGroupScope) Contains(id uint64) bool {
    if s.All {
        return true
    }
    for _, v := range s.IDs {
        if v == id {
            return true
        }
    }
    return false
}

// Empty reports whether the scope can match nothing.
func (s TalkGroupScope) Empty() bool {
    return !s.All && len(s.IDs) == 0
}

// TalkGroupFilter narrows List.
type TalkGroupFilter struct {
    SystemID *uint64
    Scope    TalkGroupScope
}

const talkGroupColumns = `tg.id, tg.system_id, tg.dec_id, tg.alpha_tag, tg.common_name, tg.description,
    tg.slug, tg.is_public, tg.last_transmission, tg.recent_usage, tg.created_at, tg.updated_at, s.name`

const talkGroupFrom = ` FROM talkgroups tg JOIN systems s ON s.id = tg.system_id`

func scanTalkGroup(row rowScanner) (*model.TalkGroup, error) {
    var (
        t    model.TalkGroup
        last sql.NullTime
    )
    err := row.Scan(&t.ID, &t.SystemID, &t.DecID, &t.AlphaTag, &t.CommonName, &t.Description,
        &t.Slug, &t.IsPublic, &last, &t.RecentUsage, &t.CreatedAt, &t.UpdatedAt, &t.SystemName)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrTalkGroupNotFound
        }
        return nil, err
    }
    t.LastTransmission = nullTime(last)
    return &t, nil
}

// GetOrCreate returns the talkgroup (sys, decID), creating a public
// placeholder labelled "TG <decID>" when it does not exist yet.  A new
// talkgroup joins every access group flagged default_new_talkgroups in the
// same transaction as its insert.
//
// The row is looked up first so the common case never burns an
// AUTO_INCREMENT value.  Concurrent creators race on the (system_id, dec_id)
// unique key: the loser gets a duplicate-key error and re-reads the
// winner's row.  When the
// duplicate was on the slug instead (another system's talkgroup already has
// it) the insert is retried once with "-<decID>" appended.
func (r *TalkGroupRepo) GetOrCreate(ctx context.Context, sys *model.System, decID int64) (tg *model.TalkGroup, created bool, err error) {
    tg, err = r.GetBySystemDecID(ctx, sys.ID, decID)
    if err == nil {
        return tg, false, nil
    }
    if !errors.Is(err, ErrTalkGroupNotFound) {
        return nil, false, err
    }
    alpha := "TG " + strconv.FormatInt(decID, 10)
    slug := utils.JoinSlug(sys.Slug, utils.Slugify(alpha))
    for attempt := 0; attempt < 2; attempt++ {
        tg, err = r.insert(ctx, sys, decID, alpha, slug)
        if err == nil {
            return tg, true, nil
        }
        if !isDuplicate(err) {
            return nil, false, fmt.Errorf("insert talkgroup %d on %q: %w", decID, sys.Name, err)
        }
        tg, err = r.GetBySystemDecID(ctx, sys.ID, decID)
        if err == nil {
            return tg, false, nil
        }
        if !errors.Is(err, ErrTalkGroupNotFound) {
            return nil, false, err
        }
        slug = utils.JoinSlug(slug, strconv.FormatInt(decID, 10))
    }
    return nil, false, fmt.Errorf("insert talkgroup %d on %q: %w", decID, sys.Name, ErrConflict)
}

func (r *TalkGroupRepo) insert(ctx context.Context, sys *model.System, decID int64, alpha, slug string) (*model.TalkGroup, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    defer rollback(tx)

    ts := now()
    const q = `INSERT INTO talkgroups (system_id, dec_id, alpha_tag, common_name, description, slug, is_public,
        recent_usage, created_at, updated_at) VALUES (?, ?, ?, '', '', ?, 1, 0, ?, ?)`
    res, err := tx.ExecContext(ctx, q, sys.ID, decID, alpha, slug, ts, ts)
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    const join = `INSERT INTO talkgroup_access_members (access_id, talkgroup_id)
        SELECT id, ? FROM talkgroup_access WHERE default_new_talkgroups = 1`
    if _, err := tx.ExecContext(ctx, join, id); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    return &model.TalkGroup{
        ID: uint64(id), SystemID: sys.ID, DecID: decID, AlphaTag: alpha, Slug: slug,
        IsPublic: true, CreatedAt: ts, UpdatedAt: ts, SystemName: sys.Name,
    }, nil
}

// GetBySystemDecID fetches a talkgroup by its natural key.
func (r *TalkGroupRepo) GetBySystemDecID(ctx context.Context, systemID uint64, decID int64) (*model.TalkGroup, error) {
    const q = `SELECT ` + talkGroupColumns + talkGroupFrom + ` WHERE tg.system_id = ? AND tg.dec_id = ?`
    return scanTalkGroup(r.db.QueryRowContext(ctx, q, systemID, decID))
}

// GetBySlug fetches a talkgroup by its globally unique slug.
func (r *TalkGroupRepo) GetBySlug(ctx context.Context, slug string) (*model.TalkGroup, error) {
    const q = `SELECT ` + talkGroupColumns + talkGroupFrom + ` WHERE tg.slug = ?`
    return scanTalkGroup(r.db.QueryRowContext(ctx, q, slug))
}

// GetByID fetches a talkgroup by primary key.
func (r *TalkGroupRepo) GetByID(ctx context.Context, id uint64) (*model.TalkGroup, error) {
    const q = `SELECT ` + talkGroupColumns + talkGroupFrom + ` WHERE tg.id = ?`
    return scanTalkGroup(r.db.QueryRowContext(ctx, q, id))
}

// List returns talkgroups within f ordered by system then dec_id.
func (r *TalkGroupRepo) List(ctx context.Context, f TalkGroupFilter) ([]model.TalkGroup, error) {
    out := []model.TalkGroup{}
    if f.Scope.Empty() {
        return out, nil
    }
    q := `SELECT ` + talkGroupColumns + talkGroupFrom + ` WHERE 1=1`
    var args []any
    if f.SystemID != nil {
        q += ` AND tg.system_id = ?`
        args = append(args, *f.SystemID)
    }
    if !f.Scope.All {
        q += ` AND tg.id IN (` + placeholders(len(f.Scope.IDs)) + `)`
        args = append(args, uint64Args(f.Scope.IDs)...)
    }
    q += ` ORDER BY s.name ASC, tg.dec_id ASC`

    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        t, err := scanTalkGroup(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *t)
    }
    return out, rows.Err()
}

// AllIDs returns the id of every talkgroup.
func (r *TalkGroupRepo) AllIDs(ctx context.Context) ([]uint64, error) {
    return queryIDs(ctx, r.db, `SELECT id FROM talkgroups ORDER BY id`)
}

// PublicIDs returns the ids of talkgroups flagged is_public.
func (r *TalkGroupRepo) PublicIDs(ctx context.Context) ([]uint64, error) {
    return queryIDs(ctx, r.db, `SELECT id FROM talkgroups WHERE is_public = 1 ORDER BY id`)
}

// TalkGroupUpdate carries the editable label fields of a talkgroup.
type TalkGroupUpdate struct {
    AlphaTag    string
    CommonName  string
    Description string
    IsPublic    bool
}

// Update rewrites the label fields of a talkgroup.  Slugs are never
// regenerated, and transmissions keep the names they were imported with.
func (r *TalkGroupRepo) Update(ctx context.Context, id uint64, u TalkGroupUpdate) error {
    const q = `UPDATE talkgroups SET alpha_tag = ?, common_name = ?, description = ?, is_public = ?, updated_at = ?
        WHERE id = ?`
    res, err := r.db.ExecContext(ctx, q, u.AlphaTag, u.CommonName, u.Description, u.IsPublic, now(), id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrTalkGroupNotFound
    }
    return nil
}

// UpdateLastTransmissionTx records at as the talkgroup's most recent
// transmission time.  It is a single column write; the row is not
// reloaded.
func (r *TalkGroupRepo) UpdateLastTransmissionTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
    _, err := tx.ExecContext(ctx, `UPDATE talkgroups SET last_transmission = ? WHERE id = ?`, at.UTC(), id)
    return err
}

// RefreshRecentUsage recounts the talkgroup's transmissions that started
// at or after since and stores the result in recent_usage.
func (r *TalkGroupRepo) RefreshRecentUsage(ctx context.Context, id uint64, since time.Time) (int, error) {
    var n int
    const count = `SELECT COUNT(*) FROM transmissions WHERE talkgroup_id = ? AND start_datetime >= ?`
    if err := r.db.QueryRowContext(ctx, count, id, since.UTC()).Scan(&n); err != nil {
        return 0, err
    }
    if _, err := r.db.ExecContext(ctx, `UPDATE talkgroups SET recent_usage = ? WHERE id = ?`, n, id); err != nil {
        return 0, err
    }
    return n, nil
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]uint64, error) {
    rows, err := q.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []uint64{}
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        out = append(out, id)
    }
    return out, rows.Err()
}
