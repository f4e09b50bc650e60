package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/utils"
)

// ErrIncidentNotFound is returned when an incident cannot be found in the DB.
var ErrIncidentNotFound = errors.New("incident not found")

// IncidentRepo manages incidents and the transmissions curated into them.
// Adding a transmission to an incident does not trigger live fan-out.
type IncidentRepo struct {
    db *sql.DB
}

// NewIncidentRepo constructs an IncidentRepo with the given DB handle.
func NewIncidentRepo(db *sql.DB) *IncidentRepo {
    return &IncidentRepo{db: db}
}

const incidentColumns = `id, name, slug, description, public, created_by, created_at, updated_at`

func scanIncident(row rowScanner) (*model.Incident, error) {
    var (
        i  model.Incident
        by sql.NullInt64
    )
    err := row.Scan(&i.ID, &i.Name, &i.Slug, &i.Description, &i.Public, &by, &i.CreatedAt, &i.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrIncidentNotFound
        }
        return nil, err
    }
    if by.Valid {
        u := uint64(by.Int64)
        i.CreatedBy = &u
    }
    return &i, nil
}

// Create inserts i and links the given transmissions in one transaction.
func (r *IncidentRepo) Create(ctx context.Context, i *model.Incident, transmissionIDs []uint64) error {
    i.Slug = utils.Slugify(i.Name)
    if i.Slug == "" {
        return fmt.Errorf("incident name %q has no usable characters", i.Name)
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer rollback(tx)

    ts := now()
    const q = `INSERT INTO incidents (name, slug, description, public, created_by, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, i.Name, i.Slug, i.Description, i.Public, i.CreatedBy, ts, ts)
    if err != nil {
        if isDuplicate(err) {
            return fmt.Errorf("incident %q: %w", i.Name, ErrConflict)
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    i.ID, i.CreatedAt, i.UpdatedAt = uint64(id), ts, ts
    for _, tid := range transmissionIDs {
        if err := addIncidentTransmission(ctx, tx, i.ID, tid); err != nil {
            return err
        }
    }
    return tx.Commit()
}

// AddTransmission links one transmission to an incident.
func (r *IncidentRepo) AddTransmission(ctx context.Context, incidentID, transmissionID uint64) error {
    return addIncidentTransmission(ctx, r.db, incidentID, transmissionID)
}

func addIncidentTransmission(ctx context.Context, q queryer, incidentID, transmissionID uint64) error {
    _, err := q.ExecContext(ctx, `INSERT INTO incident_transmissions (incident_id, transmission_id) VALUES (?, ?)`, incidentID, transmissionID)
    if err != nil && !isDuplicate(err) {
        return err
    }
    return nil
}

// GetBySlug fetches an incident by slug.
func (r *IncidentRepo) GetBySlug(ctx context.Context, slug string) (*model.Incident, error) {
    return scanIncident(r.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE slug = ?`, slug))
}

// ListVisible returns public incidents plus those created by userID (nil
// for anonymous callers), newest first.
func (r *IncidentRepo) ListVisible(ctx context.Context, userID *uint64) ([]model.Incident, error) {
    q := `SELECT ` + incidentColumns + ` FROM incidents WHERE public = 1`
    var args []any
    if userID != nil {
        q += ` OR created_by = ?`
        args = append(args, *userID)
    }
    q += ` ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Incident{}
    for rows.Next() {
        i, err := scanIncident(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *i)
    }
    return out, rows.Err()
}
