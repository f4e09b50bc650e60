package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strconv"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/utils"
)

// ErrUnitNotFound is returned when a unit cannot be found in the DB.
var ErrUnitNotFound = errors.New("unit not found")

// UnitRepo manages persistence for radio units.
type UnitRepo struct {
    db *sql.DB
}

// NewUnitRepo constructs a UnitRepo with the given DB handle.
func NewUnitRepo(db *sql.DB) *UnitRepo {
    return &UnitRepo{db: db}
}

const unitColumns = `u.id, u.system_id, u.dec_id, u.description, u.unit_type, u.unit_number, u.slug,
    u.created_at, u.updated_at, s.name`

const unitFrom = ` FROM units u JOIN systems s ON s.id = u.system_id`

func scanUnit(row rowScanner) (*model.Unit, error) {
    var (
        u  model.Unit
        ut string
    )
    err := row.Scan(&u.ID, &u.SystemID, &u.DecID, &u.Description, &ut, &u.UnitNumber, &u.Slug,
        &u.CreatedAt, &u.UpdatedAt, &u.SystemName)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrUnitNotFound
        }
        return nil, err
    }
    u.UnitType = model.UnitType(ut)
    return &u, nil
}

// GetOrCreate returns the unit (sys, decID), creating a mobile unit with
// no description when it does not exist.  Existing units are read without
// attempting an insert.  Races are settled by the
// (system_id, dec_id) unique key exactly like TalkGroupRepo.GetOrCreate.
// Unit slugs are not unique, so there is no slug retry.
func (r *UnitRepo) GetOrCreate(ctx context.Context, sys *model.System, decID int64) (*model.Unit, bool, error) {
    u, err := r.GetBySystemDecID(ctx, sys.ID, decID)
    if err == nil {
        return u, false, nil
    }
    if !errors.Is(err, ErrUnitNotFound) {
        return nil, false, err
    }
    ts := now()
    slug := utils.JoinSlug(sys.Slug, strconv.FormatInt(decID, 10))
    const q = `INSERT INTO units (system_id, dec_id, description, unit_type, unit_number, slug, created_at, updated_at)
        VALUES (?, ?, '', ?, '', ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, sys.ID, decID, string(model.UnitMobile), slug, ts, ts)
    if err != nil {
        if !isDuplicate(err) {
            return nil, false, fmt.Errorf("insert unit %d on %q: %w", decID, sys.Name, err)
        }
        u, err = r.GetBySystemDecID(ctx, sys.ID, decID)
        if err != nil {
            return nil, false, err
        }
        return u, false, nil
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, false, err
    }
    return &model.Unit{
        ID: uint64(id), SystemID: sys.ID, DecID: decID, UnitType: model.UnitMobile, Slug: slug,
        CreatedAt: ts, UpdatedAt: ts, SystemName: sys.Name,
    }, true, nil
}

// GetBySystemDecID fetches a unit by its natural key.
func (r *UnitRepo) GetBySystemDecID(ctx context.Context, systemID uint64, decID int64) (*model.Unit, error) {
    const q = `SELECT ` + unitColumns + unitFrom + ` WHERE u.system_id = ? AND u.dec_id = ?`
    return scanUnit(r.db.QueryRowContext(ctx, q, systemID, decID))
}

// GetBySlug fetches a unit by slug.  Slugs are indexed but not unique; the
// oldest matching unit wins.
func (r *UnitRepo) GetBySlug(ctx context.Context, slug string) (*model.Unit, error) {
    const q = `SELECT ` + unitColumns + unitFrom + ` WHERE u.slug = ? ORDER BY u.id ASC LIMIT 1`
    return scanUnit(r.db.QueryRowContext(ctx, q, slug))
}

// List returns units, optionally limited to one system, ordered by dec_id.
func (r *UnitRepo) List(ctx context.Context, systemID *uint64) ([]model.Unit, error) {
    q := `SELECT ` + unitColumns + unitFrom
    var args []any
    if systemID != nil {
        q += ` WHERE u.system_id = ?`
        args = append(args, *systemID)
    }
    q += ` ORDER BY s.name ASC, u.dec_id ASC`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Unit{}
    for rows.Next() {
        u, err := scanUnit(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *u)
    }
    return out, rows.Err()
}
