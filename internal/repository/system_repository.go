package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/google/uuid"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/utils"
)

// ErrSystemNotFound is returned when a system cannot be found in the DB.
var ErrSystemNotFound = errors.New("system not found")

// SystemRepo encapsulates all database queries related to radio systems.
type SystemRepo struct {
    db *sql.DB
}

// NewSystemRepo constructs a SystemRepo with the provided DB handle.
func NewSystemRepo(db *sql.DB) *SystemRepo {
    return &SystemRepo{db: db}
}

const systemColumns = `id, name, description, slug, created_at, updated_at`

func scanSystem(row rowScanner) (*model.System, error) {
    var s model.System
    if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Slug, &s.CreatedAt, &s.UpdatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrSystemNotFound
        }
        return nil, err
    }
    return &s, nil
}

// GetOrCreate returns the system called name, creating it when missing.
// Existing systems are read without an insert; on a miss a duplicate-key
// error from the insert falls back to a read, so concurrent first imports of the same system converge on a
// single row.  created reports whether this call inserted it.
//
// A duplicate on the slug alone (two names folding to the same slug) is
// retried once with a random suffix.
func (r *SystemRepo) GetOrCreate(ctx context.Context, name string) (sys *model.System, created bool, err error) {
    sys, err = r.GetByName(ctx, name)
    if err == nil {
        return sys, false, nil
    }
    if !errors.Is(err, ErrSystemNotFound) {
        return nil, false, err
    }
    slug := utils.Slugify(name)
    if slug == "" {
        slug = "system"
    }
    for attempt := 0; attempt < 2; attempt++ {
        sys, err = r.insert(ctx, name, slug)
        if err == nil {
            return sys, true, nil
        }
        if !isDuplicate(err) {
            return nil, false, fmt.Errorf("insert system %q: %w", name, err)
        }
        sys, err = r.GetByName(ctx, name)
        if err == nil {
            return sys, false, nil
        }
        if !errors.Is(err, ErrSystemNotFound) {
            return nil, false, err
        }
        slug = utils.JoinSlug(slug, uuid.NewString()[:8])
    }
    return nil, false, fmt.Errorf("insert system %q: %w", name, ErrConflict)
}

func (r *SystemRepo) insert(ctx context.Context, name, slug string) (*model.System, error) {
    ts := now()
    const q = `INSERT INTO systems (name, description, slug, created_at, updated_at) VALUES (?, '', ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, name, slug, ts, ts)
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    return &model.System{ID: uint64(id), Name: name, Slug: slug, CreatedAt: ts, UpdatedAt: ts}, nil
}

// GetByName fetches a system by its unique name.
func (r *SystemRepo) GetByName(ctx context.Context, name string) (*model.System, error) {
    return scanSystem(r.db.QueryRowContext(ctx, `SELECT `+systemColumns+` FROM systems WHERE name = ?`, name))
}

// GetBySlug fetches a system by its slug.
func (r *SystemRepo) GetBySlug(ctx context.Context, slug string) (*model.System, error) {
    return scanSystem(r.db.QueryRowContext(ctx, `SELECT `+systemColumns+` FROM systems WHERE slug = ?`, slug))
}

// GetByID fetches a system by primary key.
func (r *SystemRepo) GetByID(ctx context.Context, id uint64) (*model.System, error) {
    return scanSystem(r.db.QueryRowContext(ctx, `SELECT `+systemColumns+` FROM systems WHERE id = ?`, id))
}

// List returns every system ordered by name.
func (r *SystemRepo) List(ctx context.Context) ([]model.System, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT `+systemColumns+` FROM systems ORDER BY name ASC`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.System{}
    for rows.Next() {
        s, err := scanSystem(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *s)
    }
    return out, rows.Err()
}
