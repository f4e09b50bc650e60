package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/trunk-player/internal/model"
)

// ErrArchiveNotFound is returned when no archived transmission matches.
var ErrArchiveNotFound = errors.New("archived transmission not found")

// ArchiveRepo reads transmission_archive.  Rows are moved there by an
// external retention job; the server only reads them.
type ArchiveRepo struct {
    db *sql.DB
}

// NewArchiveRepo constructs an ArchiveRepo with the given DB handle.
func NewArchiveRepo(db *sql.DB) *ArchiveRepo {
    return &ArchiveRepo{db: db}
}

// GetBySlug fetches an archived transmission by its original public
// identifier.
func (r *ArchiveRepo) GetBySlug(ctx context.Context, slug string) (*model.TransmissionArchive, error) {
    const q = `SELECT id, original_id, slug, start_datetime, end_datetime, play_length, audio_file, system_id,
            system_name, talkgroup_id, talkgroup_dec_id, talkgroup_name, units_json, freq, emergency, created_at, archived_at
        FROM transmission_archive WHERE slug = ?`
    var (
        a     model.TransmissionArchive
        end   sql.NullTime
        freq  sql.NullInt64
        units string
    )
    err := r.db.QueryRowContext(ctx, q, slug).Scan(&a.ID, &a.OriginalID, &a.Slug, &a.StartDatetime, &end,
        &a.PlayLength, &a.AudioFile, &a.SystemID, &a.SystemName, &a.TalkGroupID, &a.TalkGroupDecID,
        &a.TalkGroupName, &units, &freq, &a.Emergency, &a.CreatedAt, &a.ArchivedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrArchiveNotFound
        }
        return nil, err
    }
    a.StartDatetime = a.StartDatetime.UTC()
    a.EndDatetime = nullTime(end)
    if freq.Valid {
        f := freq.Int64
        a.Freq = &f
    }
    if a.Units, err = decodeUnits(units); err != nil {
        return nil, fmt.Errorf("archived transmission %s: %w", slug, err)
    }
    return &a, nil
}
