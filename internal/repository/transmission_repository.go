package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"

    "github.com/google/uuid"

    "github.com/iliyamo/trunk-player/internal/model"
)

// ErrTransmissionNotFound indicates that a transmission was not located in the DB.
var ErrTransmissionNotFound = errors.New("transmission not found")

// TransmissionRepo manages persistence for transmissions and their unit
// junction rows.  Transmissions are only ever inserted; there is no update
// path.
type TransmissionRepo struct {
    db *sql.DB
}

// NewTransmissionRepo constructs a TransmissionRepo with the given DB handle.
func NewTransmissionRepo(db *sql.DB) *TransmissionRepo {
    return &TransmissionRepo{db: db}
}

const transmissionColumns = `t.id, t.slug, t.start_datetime, t.end_datetime, t.play_length, t.audio_file,
    t.audio_file_url_path, t.audio_file_type, t.has_audio, t.system_id, t.talkgroup_id, t.talkgroup_dec_id,
    t.talkgroup_name, t.system_name, t.units_json, t.freq, t.emergency, t.created_at, tg.slug`

const transmissionFrom = ` FROM transmissions t JOIN talkgroups tg ON tg.id = t.talkgroup_id`

func scanTransmission(row rowScanner) (*model.Transmission, error) {
    var (
        t     model.Transmission
        end   sql.NullTime
        freq  sql.NullInt64
        units string
    )
    err := row.Scan(&t.ID, &t.Slug, &t.StartDatetime, &end, &t.PlayLength, &t.AudioFile,
        &t.AudioFileURLPath, &t.AudioFileType, &t.HasAudio, &t.SystemID, &t.TalkGroupID, &t.TalkGroupDecID,
        &t.TalkGroupName, &t.SystemName, &units, &freq, &t.Emergency, &t.CreatedAt, &t.TalkGroupSlug)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrTransmissionNotFound
        }
        return nil, err
    }
    t.StartDatetime = t.StartDatetime.UTC()
    t.EndDatetime = nullTime(end)
    if freq.Valid {
        f := freq.Int64
        t.Freq = &f
    }
    t.Units, err = decodeUnits(units)
    if err != nil {
        return nil, fmt.Errorf("transmission %s: %w", t.Slug, err)
    }
    return &t, nil
}

func decodeUnits(raw string) ([]model.UnitSnapshot, error) {
    out := []model.UnitSnapshot{}
    if raw == "" {
        return out, nil
    }
    if err := json.Unmarshal([]byte(raw), &out); err != nil {
        return nil, fmt.Errorf("decode units_json: %w", err)
    }
    return out, nil
}

// CreateTx inserts t using the provided transaction.  A random slug is
// assigned when t.Slug is empty and created_at is stamped here; both are
// written back to t along with the generated ID.  The caller must commit
// or roll back the transaction.
func (r *TransmissionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transmission) error {
    if t.Slug == "" {
        t.Slug = uuid.NewString()
    }
    if t.Units == nil {
        t.Units = []model.UnitSnapshot{}
    }
    units, err := json.Marshal(t.Units)
    if err != nil {
        return fmt.Errorf("encode units_json: %w", err)
    }
    var end any
    if t.EndDatetime != nil {
        end = t.EndDatetime.UTC()
    }
    var freq any
    if t.Freq != nil {
        freq = *t.Freq
    }
    t.CreatedAt = now()

    const q = `INSERT INTO transmissions (slug, start_datetime, end_datetime, play_length, audio_file,
        audio_file_url_path, audio_file_type, has_audio, system_id, talkgroup_id, talkgroup_dec_id,
        talkgroup_name, system_name, units_json, freq, emergency, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, t.Slug, t.StartDatetime.UTC(), end, t.PlayLength, t.AudioFile,
        t.AudioFileURLPath, t.AudioFileType, t.HasAudio, t.SystemID, t.TalkGroupID, t.TalkGroupDecID,
        t.TalkGroupName, t.SystemName, string(units), freq, t.Emergency, t.CreatedAt)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    return nil
}

// AddUnitTx links a unit to a transmission at position ord using the
// provided transaction.
func (r *TransmissionRepo) AddUnitTx(ctx context.Context, tx *sql.Tx, transmissionID, unitID uint64, ord int) error {
    const q = `INSERT INTO transmission_units (transmission_id, unit_id, ord) VALUES (?, ?, ?)`
    _, err := tx.ExecContext(ctx, q, transmissionID, unitID, ord)
    return err
}

// UnitIDs returns the units linked to a transmission in recorder order.
func (r *TransmissionRepo) UnitIDs(ctx context.Context, transmissionID uint64) ([]uint64, error) {
    const q = `SELECT unit_id FROM transmission_units WHERE transmission_id = ? ORDER BY ord ASC`
    return queryIDs(ctx, r.db, q, transmissionID)
}

// GetBySlug fetches a transmission by its public identifier.
func (r *TransmissionRepo) GetBySlug(ctx context.Context, slug string) (*model.Transmission, error) {
    const q = `SELECT ` + transmissionColumns + transmissionFrom + ` WHERE t.slug = ?`
    return scanTransmission(r.db.QueryRowContext(ctx, q, slug))
}

// IDsBySlugs resolves public identifiers to primary keys.  Unknown slugs
// are skipped.
func (r *TransmissionRepo) IDsBySlugs(ctx context.Context, slugs []string) ([]uint64, error) {
    if len(slugs) == 0 {
        return []uint64{}, nil
    }
    args := make([]any, len(slugs))
    for i, s := range slugs {
        args[i] = s
    }
    q := `SELECT id FROM transmissions WHERE slug IN (` + placeholders(len(slugs)) + `) ORDER BY id`
    return queryIDs(ctx, r.db, q, args...)
}
