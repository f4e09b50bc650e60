package service

import (
    "context"
    "crypto/subtle"
    "database/sql"
    "errors"
    "fmt"
    "math"
    "strings"
    "time"

    "github.com/rs/zerolog"

    "github.com/iliyamo/trunk-player/internal/metrics"
    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/repository"
)

// Hook runs after an import has committed.  Its error is logged and never
// reaches the recorder that sent the transmission.
type Hook struct {
    Name string
    Run  func(ctx context.Context, t *model.Transmission) error
}

// IngestOptions tunes the ingestion service.
type IngestOptions struct {
    ImportToken  string        // pre-shared recorder credential
    FixAudioName bool          // store "+" in audio filenames as "%2B"
    HookTimeout  time.Duration // upper bound for each post-commit hook
}

// Ingestor imports recorder transmissions.  Each import is one database
// transaction; referenced systems, talkgroups and units are resolved or
// created before it starts.
type Ingestor struct {
    db            *sql.DB
    systems       *repository.SystemRepo
    talkgroups    *repository.TalkGroupRepo
    units         *repository.UnitRepo
    transmissions *repository.TransmissionRepo
    opts          IngestOptions
    hooks         []Hook
    log           zerolog.Logger
    metrics       *metrics.Metrics
    now           func() time.Time
}

// NewIngestor wires the ingestion service.  m may be nil.
func NewIngestor(db *sql.DB, opts IngestOptions, log zerolog.Logger, m *metrics.Metrics) *Ingestor {
    if opts.HookTimeout <= 0 {
        opts.HookTimeout = 2 * time.Second
    }
    return &Ingestor{
        db:            db,
        systems:       repository.NewSystemRepo(db),
        talkgroups:    repository.NewTalkGroupRepo(db),
        units:         repository.NewUnitRepo(db),
        transmissions: repository.NewTransmissionRepo(db),
        opts:          opts,
        log:           log,
        metrics:       m,
        now:           func() time.Time { return time.Now().UTC() },
    }
}

// AddHook appends a post-commit hook.  Hooks run in registration order.
// It must be called before the service starts handling imports.
func (s *Ingestor) AddHook(h Hook) {
    s.hooks = append(s.hooks, h)
}

// Authorize checks the value of an "Authorization: Token <value>" header
// against the configured import token.
func (s *Ingestor) Authorize(header string) error {
    token, ok := strings.CutPrefix(header, "Token ")
    if !ok || s.opts.ImportToken == "" ||
        subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.ImportToken)) != 1 {
        return ErrUnauthorized
    }
    return nil
}

// ImportTransmission stores one transmission and then runs the post-commit
// hooks.  The returned transmission carries its public slug.
//
// Steps:
//  1. resolve or create the system, talkgroup and units (outside the
//     transaction; a race on any of them is settled by the unique keys)
//  2. in one transaction insert the transmission with its name snapshots,
//     link the units in recorder order and stamp the talkgroup's
//     last_transmission
//  3. after commit run every hook with its own timeout
func (s *Ingestor) ImportTransmission(ctx context.Context, req ImportRequest) (*model.Transmission, error) {
    began := time.Now()
    t, err := s.store(ctx, req)
    if err != nil {
        s.metrics.RecordImport(metrics.ResultError, time.Since(began))
        return nil, err
    }
    s.runHooks(ctx, t)
    s.metrics.RecordImport(metrics.ResultSuccess, time.Since(began))
    s.log.Info().
        Str("slug", t.Slug).
        Str("system", t.SystemName).
        Int64("talkgroup", t.TalkGroupDecID).
        Int("units", len(t.Units)).
        Msg("transmission imported")
    return t, nil
}

func (s *Ingestor) store(ctx context.Context, req ImportRequest) (*model.Transmission, error) {
    sys, created, err := s.systems.GetOrCreate(ctx, req.System)
    if err != nil {
        return nil, &PersistenceError{Op: "resolve system", Err: err}
    }
    if created {
        s.metrics.RecordEntityCreated("system")
        s.log.Info().Str("system", sys.Name).Msg("created system")
    }

    tg, created, err := s.talkgroups.GetOrCreate(ctx, sys, req.TalkGroup)
    if err != nil {
        return nil, &PersistenceError{Op: "resolve talkgroup", Err: err}
    }
    if created {
        s.metrics.RecordEntityCreated("talkgroup")
        s.log.Info().Str("system", sys.Name).Int64("talkgroup", tg.DecID).Str("slug", tg.Slug).Msg("created talkgroup")
    }

    units := make([]*model.Unit, 0, len(req.Units))
    for _, decID := range req.Units {
        u, created, err := s.units.GetOrCreate(ctx, sys, decID)
        if err != nil {
            return nil, &PersistenceError{Op: "resolve unit", Err: err}
        }
        if created {
            s.metrics.RecordEntityCreated("unit")
        }
        units = append(units, u)
    }

    t := s.build(req, sys, tg, units)

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, &PersistenceError{Op: "begin import", Err: err}
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := s.transmissions.CreateTx(ctx, tx, t); err != nil {
        return nil, &PersistenceError{Op: "insert transmission", Err: err}
    }
    for i, u := range units {
        if err := s.transmissions.AddUnitTx(ctx, tx, t.ID, u.ID, i); err != nil {
            return nil, &PersistenceError{Op: "link unit", Err: err}
        }
    }
    if err := s.talkgroups.UpdateLastTransmissionTx(ctx, tx, tg.ID, s.now()); err != nil {
        return nil, &PersistenceError{Op: "update last transmission", Err: err}
    }
    if err := tx.Commit(); err != nil {
        return nil, &PersistenceError{Op: "commit import", Err: err}
    }
    committed = true
    return t, nil
}

// build computes every stored field from the request and the resolved
// entities.  Names are copied now and never re-read.
func (s *Ingestor) build(req ImportRequest, sys *model.System, tg *model.TalkGroup, units []*model.Unit) *model.Transmission {
    start := epoch(req.StartTime)
    end := epoch(req.StopTime)

    playLength := req.PlayLength
    if playLength <= 0 {
        playLength = end.Sub(start).Seconds()
    }

    audio := req.AudioFilename
    if s.opts.FixAudioName {
        audio = strings.ReplaceAll(audio, "+", "%2B")
    }

    snaps := make([]model.UnitSnapshot, 0, len(units))
    for _, u := range units {
        snaps = append(snaps, u.Snapshot())
    }

    return &model.Transmission{
        StartDatetime:    start,
        EndDatetime:      &end,
        PlayLength:       playLength,
        AudioFile:        audio,
        AudioFileURLPath: req.AudioFileURLPath,
        AudioFileType:    req.AudioFileType,
        HasAudio:         req.HasAudio,
        SystemID:         sys.ID,
        TalkGroupID:      tg.ID,
        TalkGroupDecID:   tg.DecID,
        TalkGroupName:    tg.DisplayName(),
        SystemName:       sys.Name,
        Units:            snaps,
        Freq:             req.Freq,
        Emergency:        req.Emergency,
        TalkGroupSlug:    tg.Slug,
    }
}

// epoch converts fractional epoch seconds to a UTC instant with
// microsecond precision.
func epoch(sec float64) time.Time {
    whole, frac := math.Modf(sec)
    return time.Unix(int64(whole), int64(frac*1e9)).UTC().Truncate(time.Microsecond)
}

// runHooks runs every hook after commit.  The hook context is detached
// from the request so a recorder hanging up does not cancel delivery.
func (s *Ingestor) runHooks(ctx context.Context, t *model.Transmission) {
    base := context.WithoutCancel(ctx)
    for _, h := range s.hooks {
        hctx, cancel := context.WithTimeout(base, s.opts.HookTimeout)
        began := time.Now()
        err := safeRun(hctx, h, t)
        cancel()

        result := metrics.ResultSuccess
        switch {
        case errors.Is(err, context.DeadlineExceeded):
            result = metrics.ResultTimeout
        case err != nil:
            result = metrics.ResultError
        }
        s.metrics.RecordHook(h.Name, result, time.Since(began))
        if err != nil {
            s.log.Warn().Err(err).Str("hook", h.Name).Str("slug", t.Slug).Msg("post-import hook failed")
        }
    }
}

// safeRun turns a panicking hook into an error.
func safeRun(ctx context.Context, h Hook, t *model.Transmission) (err error) {
    defer func() {
        if r := recover(); r != nil {
            err = fmt.Errorf("hook panicked: %v", r)
        }
    }()
    return h.Run(ctx, t)
}
