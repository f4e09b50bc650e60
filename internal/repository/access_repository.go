package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/trunk-player/internal/model"
)

var (
    // ErrPlanNotFound is returned when a plan cannot be found in the DB.
    ErrPlanNotFound = errors.New("plan not found")
    // ErrProfileNotFound is returned when a user has no profile.
    ErrProfileNotFound = errors.New("profile not found")
    // ErrAccessGroupNotFound is returned when an access group cannot be found.
    ErrAccessGroupNotFound = errors.New("access group not found")
)

// AccessRepo persists plans, talkgroup access groups and user profiles:
// everything the access resolver reads.
type AccessRepo struct {
    db *sql.DB
}

// NewAccessRepo constructs an AccessRepo with the given DB handle.
func NewAccessRepo(db *sql.DB) *AccessRepo {
    return &AccessRepo{db: db}
}

const planColumns = `id, name, description, history, is_default, created_at, updated_at`

func scanPlan(row rowScanner) (*model.Plan, error) {
    var p model.Plan
    if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.History, &p.IsDefault, &p.CreatedAt, &p.UpdatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrPlanNotFound
        }
        return nil, err
    }
    return &p, nil
}

// CreatePlan inserts p.  When p.IsDefault is set the flag is cleared on
// every other plan in the same transaction.
func (r *AccessRepo) CreatePlan(ctx context.Context, p *model.Plan) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer rollback(tx)

    ts := now()
    const q = `INSERT INTO plans (name, description, history, is_default, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`
    res, err := tx.ExecContext(ctx, q, p.Name, p.Description, p.History, ts, ts)
    if err != nil {
        if isDuplicate(err) {
            return fmt.Errorf("plan %q: %w", p.Name, ErrConflict)
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID, p.CreatedAt, p.UpdatedAt = uint64(id), ts, ts
    if p.IsDefault {
        if err := setDefaultPlanTx(ctx, tx, p.ID); err != nil {
            return err
        }
    }
    return tx.Commit()
}

// SetDefaultPlan flags plan id as the default and clears the flag on all
// others atomically, so at most one default exists at any time.
func (r *AccessRepo) SetDefaultPlan(ctx context.Context, id uint64) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer rollback(tx)
    if err := setDefaultPlanTx(ctx, tx, id); err != nil {
        return err
    }
    return tx.Commit()
}

func setDefaultPlanTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    res, err := tx.ExecContext(ctx, `UPDATE plans SET is_default = 1, updated_at = ? WHERE id = ?`, now(), id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrPlanNotFound
    }
    _, err = tx.ExecContext(ctx, `UPDATE plans SET is_default = 0 WHERE id <> ? AND is_default = 1`, id)
    return err
}

// GetPlan fetches a plan by primary key.
func (r *AccessRepo) GetPlan(ctx context.Context, id uint64) (*model.Plan, error) {
    return scanPlan(r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id))
}

// DefaultPlan returns the plan flagged default, or ErrPlanNotFound.
func (r *AccessRepo) DefaultPlan(ctx context.Context) (*model.Plan, error) {
    return scanPlan(r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE is_default = 1 ORDER BY id LIMIT 1`))
}

// ListPlans returns every plan ordered by name.
func (r *AccessRepo) ListPlans(ctx context.Context) ([]model.Plan, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY name ASC`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Plan{}
    for rows.Next() {
        p, err := scanPlan(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *p)
    }
    return out, rows.Err()
}

// CreateGroup inserts a talkgroup access group.
func (r *AccessRepo) CreateGroup(ctx context.Context, g *model.TalkGroupAccess) error {
    ts := now()
    const q = `INSERT INTO talkgroup_access (name, description, default_group, default_new_talkgroups, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, g.Name, g.Description, g.DefaultGroup, g.DefaultNewTalkGroups, ts, ts)
    if err != nil {
        if isDuplicate(err) {
            return fmt.Errorf("access group %q: %w", g.Name, ErrConflict)
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    g.ID, g.CreatedAt, g.UpdatedAt = uint64(id), ts, ts
    return nil
}

// AddTalkGroups puts talkgroups into an access group.  Existing members
// are left alone.
func (r *AccessRepo) AddTalkGroups(ctx context.Context, accessID uint64, talkGroupIDs ...uint64) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer rollback(tx)
    for _, tg := range talkGroupIDs {
        _, err := tx.ExecContext(ctx, `INSERT INTO talkgroup_access_members (access_id, talkgroup_id) VALUES (?, ?)`, accessID, tg)
        if err != nil && !isDuplicate(err) {
            return err
        }
    }
    return tx.Commit()
}

// GroupTalkGroupIDs lists the members of one access group.
func (r *AccessRepo) GroupTalkGroupIDs(ctx context.Context, accessID uint64) ([]uint64, error) {
    const q = `SELECT talkgroup_id FROM talkgroup_access_members WHERE access_id = ? ORDER BY talkgroup_id`
    return queryIDs(ctx, r.db, q, accessID)
}

// CreateProfile creates the profile for userID seeded with the default
// plan (if any) and every access group flagged default_group.  Calling it
// for a user that already has a profile returns the existing one.
func (r *AccessRepo) CreateProfile(ctx context.Context, userID uint64) (*model.Profile, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    defer rollback(tx)

    var planID *uint64
    var pid uint64
    err = tx.QueryRowContext(ctx, `SELECT id FROM plans WHERE is_default = 1 ORDER BY id LIMIT 1`).Scan(&pid)
    switch {
    case err == nil:
        planID = &pid
    case !errors.Is(err, sql.ErrNoRows):
        return nil, err
    }

    ts := now()
    const q = `INSERT INTO profiles (user_id, plan_id, show_unit_ids, is_approved, created_at, updated_at)
        VALUES (?, ?, 0, 0, ?, ?)`
    res, err := tx.ExecContext(ctx, q, userID, planID, ts, ts)
    if err != nil {
        if isDuplicate(err) {
            rollback(tx)
            return r.GetProfileByUser(ctx, userID)
        }
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    const seed = `INSERT INTO profile_access (profile_id, access_id) SELECT ?, id FROM talkgroup_access WHERE default_group = 1`
    if _, err := tx.ExecContext(ctx, seed, id); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    return r.GetProfileByUser(ctx, userID)
}

// GetProfileByUser returns the profile of userID with its plan loaded.
func (r *AccessRepo) GetProfileByUser(ctx context.Context, userID uint64) (*model.Profile, error) {
    const q = `SELECT p.id, p.user_id, p.plan_id, p.show_unit_ids, p.is_approved, p.created_at, p.updated_at,
            pl.id, pl.name, pl.description, pl.history, pl.is_default, pl.created_at, pl.updated_at
        FROM profiles p LEFT JOIN plans pl ON pl.id = p.plan_id
        WHERE p.user_id = ?`
    var (
        p                    model.Profile
        planID               sql.NullInt64
        plID, plHistory      sql.NullInt64
        plName, plDesc       sql.NullString
        plDefault            sql.NullBool
        plCreated, plUpdated sql.NullTime
    )
    err := r.db.QueryRowContext(ctx, q, userID).Scan(&p.ID, &p.UserID, &planID, &p.ShowUnitIDs, &p.IsApproved,
        &p.CreatedAt, &p.UpdatedAt, &plID, &plName, &plDesc, &plHistory, &plDefault, &plCreated, &plUpdated)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrProfileNotFound
        }
        return nil, err
    }
    if planID.Valid {
        id := uint64(planID.Int64)
        p.PlanID = &id
    }
    if plID.Valid {
        p.Plan = &model.Plan{
            ID: uint64(plID.Int64), Name: plName.String, Description: plDesc.String,
            History: int(plHistory.Int64), IsDefault: plDefault.Bool,
            CreatedAt: plCreated.Time, UpdatedAt: plUpdated.Time,
        }
    }
    return &p, nil
}

// SetProfilePlan assigns a plan (nil clears it) to the user's profile.
func (r *AccessRepo) SetProfilePlan(ctx context.Context, userID uint64, planID *uint64) error {
    res, err := r.db.ExecContext(ctx, `UPDATE profiles SET plan_id = ?, updated_at = ? WHERE user_id = ?`, planID, now(), userID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrProfileNotFound
    }
    return nil
}

// GrantGroup adds an access group to a profile.
func (r *AccessRepo) GrantGroup(ctx context.Context, profileID, accessID uint64) error {
    _, err := r.db.ExecContext(ctx, `INSERT INTO profile_access (profile_id, access_id) VALUES (?, ?)`, profileID, accessID)
    if err != nil && !isDuplicate(err) {
        return err
    }
    return nil
}

// ProfileGroupIDs lists the access groups held by a profile.
func (r *AccessRepo) ProfileGroupIDs(ctx context.Context, profileID uint64) ([]uint64, error) {
    return queryIDs(ctx, r.db, `SELECT access_id FROM profile_access WHERE profile_id = ? ORDER BY access_id`, profileID)
}

// ProfileTalkGroupIDs returns the union of talkgroups across every access
// group held by the profile.
func (r *AccessRepo) ProfileTalkGroupIDs(ctx context.Context, profileID uint64) ([]uint64, error) {
    const q = `SELECT DISTINCT m.talkgroup_id
        FROM profile_access pa JOIN talkgroup_access_members m ON m.access_id = pa.access_id
        WHERE pa.profile_id = ?
        ORDER BY m.talkgroup_id`
    return queryIDs(ctx, r.db, q, profileID)
}

// AddFavorite marks a talkgroup as a favorite of the profile.
func (r *AccessRepo) AddFavorite(ctx context.Context, profileID, talkGroupID uint64) error {
    _, err := r.db.ExecContext(ctx, `INSERT INTO profile_favorites (profile_id, talkgroup_id) VALUES (?, ?)`, profileID, talkGroupID)
    if err != nil && !isDuplicate(err) {
        return err
    }
    return nil
}

// RemoveFavorite unmarks a favorite talkgroup.  Removing a talkgroup that
// is not a favorite is not an error.
func (r *AccessRepo) RemoveFavorite(ctx context.Context, profileID, talkGroupID uint64) error {
    _, err := r.db.ExecContext(ctx, `DELETE FROM profile_favorites WHERE profile_id = ? AND talkgroup_id = ?`, profileID, talkGroupID)
    return err
}

// FavoriteTalkGroupIDs lists the profile's favorite talkgroups.
func (r *AccessRepo) FavoriteTalkGroupIDs(ctx context.Context, profileID uint64) ([]uint64, error) {
    return queryIDs(ctx, r.db, `SELECT talkgroup_id FROM profile_favorites WHERE profile_id = ? ORDER BY talkgroup_id`, profileID)
}
