package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/trunk-player/internal/model"
)

// ErrTranscriptionNotFound is returned when a transmission has no transcription.
var ErrTranscriptionNotFound = errors.New("transcription not found")

// TranscriptionRepo stores at most one transcription per transmission.
type TranscriptionRepo struct {
    db *sql.DB
}

// NewTranscriptionRepo constructs a TranscriptionRepo with the given DB handle.
func NewTranscriptionRepo(db *sql.DB) *TranscriptionRepo {
    return &TranscriptionRepo{db: db}
}

// GetByTransmission fetches the transcription of one transmission.
func (r *TranscriptionRepo) GetByTransmission(ctx context.Context, transmissionID uint64) (*model.Transcription, error) {
    const q = `SELECT id, transmission_id, text, is_automated, confidence, language, created_by, created_at, updated_at
        FROM transcriptions WHERE transmission_id = ?`
    var (
        t    model.Transcription
        conf sql.NullFloat64
        by   sql.NullInt64
    )
    err := r.db.QueryRowContext(ctx, q, transmissionID).Scan(&t.ID, &t.TransmissionID, &t.Text, &t.IsAutomated,
        &conf, &t.Language, &by, &t.CreatedAt, &t.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrTranscriptionNotFound
        }
        return nil, err
    }
    if conf.Valid {
        t.Confidence = &conf.Float64
    }
    if by.Valid {
        u := uint64(by.Int64)
        t.CreatedBy = &u
    }
    return &t, nil
}

// Upsert creates the transcription for t.TransmissionID or replaces the
// text fields of the existing one.  created_by is kept from the first
// writer.
func (r *TranscriptionRepo) Upsert(ctx context.Context, t *model.Transcription) error {
    ts := now()
    const upd = `UPDATE transcriptions SET text = ?, is_automated = ?, confidence = ?, language = ?, updated_at = ?
        WHERE transmission_id = ?`
    res, err := r.db.ExecContext(ctx, upd, t.Text, t.IsAutomated, t.Confidence, t.Language, ts, t.TransmissionID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n > 0 {
        return r.reload(ctx, t)
    }

    const ins = `INSERT INTO transcriptions (transmission_id, text, is_automated, confidence, language, created_by, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    _, err = r.db.ExecContext(ctx, ins, t.TransmissionID, t.Text, t.IsAutomated, t.Confidence, t.Language, t.CreatedBy, ts, ts)
    if err != nil {
        if !isDuplicate(err) {
            return err
        }
        // a concurrent writer created it first; apply ours on top
        if _, err := r.db.ExecContext(ctx, upd, t.Text, t.IsAutomated, t.Confidence, t.Language, ts, t.TransmissionID); err != nil {
            return err
        }
    }
    return r.reload(ctx, t)
}

func (r *TranscriptionRepo) reload(ctx context.Context, t *model.Transcription) error {
    got, err := r.GetByTransmission(ctx, t.TransmissionID)
    if err != nil {
        return err
    }
    *t = *got
    return nil
}
