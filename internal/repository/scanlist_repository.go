package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/utils"
)

// ErrScanListNotFound is returned when a scanlist cannot be found in the DB.
var ErrScanListNotFound = errors.New("scanlist not found")

// ScanListRepo manages scanlists and their talkgroup membership.
type ScanListRepo struct {
    db *sql.DB
}

// NewScanListRepo constructs a ScanListRepo with the given DB handle.
func NewScanListRepo(db *sql.DB) *ScanListRepo {
    return &ScanListRepo{db: db}
}

const scanListColumns = `id, created_by, name, slug, description, public, created_at, updated_at`

func scanScanList(row rowScanner) (*model.ScanList, error) {
    var s model.ScanList
    err := row.Scan(&s.ID, &s.CreatedBy, &s.Name, &s.Slug, &s.Description, &s.Public, &s.CreatedAt, &s.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrScanListNotFound
        }
        return nil, err
    }
    return &s, nil
}

// Create inserts s with the given talkgroups in one transaction.  The slug
// is derived from the name; a name or slug already in use yields
// ErrConflict.
func (r *ScanListRepo) Create(ctx context.Context, s *model.ScanList, talkGroupIDs []uint64) error {
    s.Slug = utils.Slugify(s.Name)
    if s.Slug == "" {
        return fmt.Errorf("scanlist name %q has no usable characters", s.Name)
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer rollback(tx)

    ts := now()
    const q = `INSERT INTO scanlists (created_by, name, slug, description, public, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, s.CreatedBy, s.Name, s.Slug, s.Description, s.Public, ts, ts)
    if err != nil {
        if isDuplicate(err) {
            return fmt.Errorf("scanlist %q: %w", s.Name, ErrConflict)
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    s.ID, s.CreatedAt, s.UpdatedAt = uint64(id), ts, ts
    for _, tg := range talkGroupIDs {
        _, err := tx.ExecContext(ctx, `INSERT INTO scanlist_talkgroups (scanlist_id, talkgroup_id) VALUES (?, ?)`, s.ID, tg)
        if err != nil && !isDuplicate(err) {
            return err
        }
    }
    return tx.Commit()
}

// AddTalkGroup puts a talkgroup on a scanlist.  Live routing picks the
// change up on the next transmission.
func (r *ScanListRepo) AddTalkGroup(ctx context.Context, scanListID, talkGroupID uint64) error {
    _, err := r.db.ExecContext(ctx, `INSERT INTO scanlist_talkgroups (scanlist_id, talkgroup_id) VALUES (?, ?)`, scanListID, talkGroupID)
    if err != nil && !isDuplicate(err) {
        return err
    }
    return nil
}

// RemoveTalkGroup takes a talkgroup off a scanlist.
func (r *ScanListRepo) RemoveTalkGroup(ctx context.Context, scanListID, talkGroupID uint64) error {
    _, err := r.db.ExecContext(ctx, `DELETE FROM scanlist_talkgroups WHERE scanlist_id = ? AND talkgroup_id = ?`, scanListID, talkGroupID)
    return err
}

// GetBySlug fetches a scanlist and its talkgroups.
func (r *ScanListRepo) GetBySlug(ctx context.Context, slug string) (*model.ScanList, error) {
    s, err := scanScanList(r.db.QueryRowContext(ctx, `SELECT `+scanListColumns+` FROM scanlists WHERE slug = ?`, slug))
    if err != nil {
        return nil, err
    }
    const q = `SELECT tg.id, tg.dec_id, tg.slug FROM scanlist_talkgroups st JOIN talkgroups tg ON tg.id = st.talkgroup_id
        WHERE st.scanlist_id = ? ORDER BY tg.slug`
    rows, err := r.db.QueryContext(ctx, q, s.ID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    s.TalkGroups = []model.TalkGroupRef{}
    for rows.Next() {
        var ref model.TalkGroupRef
        if err := rows.Scan(&ref.ID, &ref.DecID, &ref.Slug); err != nil {
            return nil, err
        }
        s.TalkGroups = append(s.TalkGroups, ref)
    }
    return s, rows.Err()
}

// ListVisible returns public scanlists plus those created by userID (nil
// for anonymous callers), ordered by name.
func (r *ScanListRepo) ListVisible(ctx context.Context, userID *uint64) ([]model.ScanList, error) {
    q := `SELECT ` + scanListColumns + ` FROM scanlists WHERE public = 1`
    var args []any
    if userID != nil {
        q += ` OR created_by = ?`
        args = append(args, *userID)
    }
    q += ` ORDER BY name ASC`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.ScanList{}
    for rows.Next() {
        s, err := scanScanList(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *s)
    }
    return out, rows.Err()
}

// SlugsForTalkGroup returns the slug of every scanlist currently
// containing the talkgroup.  Fan-out calls it per transmission; the result
// is never cached.
func (r *ScanListRepo) SlugsForTalkGroup(ctx context.Context, talkGroupID uint64) ([]string, error) {
    const q = `SELECT s.slug FROM scanlist_talkgroups st JOIN scanlists s ON s.id = st.scanlist_id
        WHERE st.talkgroup_id = ? ORDER BY s.slug`
    rows, err := r.db.QueryContext(ctx, q, talkGroupID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []string{}
    for rows.Next() {
        var slug string
        if err := rows.Scan(&slug); err != nil {
            return nil, err
        }
        out = append(out, slug)
    }
    return out, rows.Err()
}
