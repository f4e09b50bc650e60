package service

import (
    "context"
    "database/sql"
    "errors"
    "sync"
    "sync/atomic"
    "testing"
    "time"

    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/repository"
    "github.com/iliyamo/trunk-player/internal/testutil"
)

func newIngestor(t *testing.T, opts IngestOptions) (*Ingestor, *sql.DB) {
    t.Helper()
    db := testutil.NewDB(t)
    if opts.ImportToken == "" {
        opts.ImportToken = "secret"
    }
    return NewIngestor(db, opts, zerolog.Nop(), nil), db
}

func request(tg int64, units ...int64) ImportRequest {
    return ImportRequest{
        System:        "Metro",
        TalkGroup:     tg,
        StartTime:     1700000000.5,
        StopTime:      1700000004,
        AudioFilename: "1001-1700000000.m4a",
        HasAudio:      true,
        Units:         units,
    }
}

func TestImportTransmissionStoresEverything(t *testing.T) {
    ing, db := newIngestor(t, IngestOptions{})
    ctx := context.Background()

    tr, err := ing.ImportTransmission(ctx, request(1001, 7, 9))
    require.NoError(t, err)
    assert.NotEmpty(t, tr.Slug)
    assert.Equal(t, "TG 1001", tr.TalkGroupName)
    assert.Equal(t, "Metro", tr.SystemName)
    assert.Equal(t, "metro-tg-1001", tr.TalkGroupSlug)
    assert.InDelta(t, 3.5, tr.PlayLength, 1e-9)
    assert.Equal(t, time.Unix(1700000000, 500000000).UTC(), tr.StartDatetime)

    assert.Equal(t, 1, testutil.Count(t, db, "systems", ""))
    assert.Equal(t, 1, testutil.Count(t, db, "talkgroups", ""))
    assert.Equal(t, 2, testutil.Count(t, db, "units", ""))
    assert.Equal(t, 1, testutil.Count(t, db, "transmissions", ""))

    stored, err := repository.NewTransmissionRepo(db).GetBySlug(ctx, tr.Slug)
    require.NoError(t, err)
    require.Len(t, stored.Units, 2)
    assert.Equal(t, int64(7), stored.Units[0].DecID)
    assert.Equal(t, int64(9), stored.Units[1].DecID)

    ids, err := repository.NewTransmissionRepo(db).UnitIDs(ctx, tr.ID)
    require.NoError(t, err)
    assert.Equal(t, []uint64{stored.Units[0].ID, stored.Units[1].ID}, ids)

    tg, err := repository.NewTalkGroupRepo(db).GetByID(ctx, tr.TalkGroupID)
    require.NoError(t, err)
    assert.NotNil(t, tg.LastTransmission)
}

func TestImportTransmissionReusesEntities(t *testing.T) {
    ing, db := newIngestor(t, IngestOptions{})
    ctx := context.Background()

    _, err := ing.ImportTransmission(ctx, request(1001, 7))
    require.NoError(t, err)
    _, err = ing.ImportTransmission(ctx, request(1001, 7))
    require.NoError(t, err)

    assert.Equal(t, 1, testutil.Count(t, db, "talkgroups", ""))
    assert.Equal(t, 1, testutil.Count(t, db, "units", ""))
    assert.Equal(t, 2, testutil.Count(t, db, "transmissions", ""))
}

func TestImportTransmissionIsAtomic(t *testing.T) {
    ing, db := newIngestor(t, IngestOptions{})
    testutil.Exec(t, db, `DROP TABLE transmission_units`)

    _, err := ing.ImportTransmission(context.Background(), request(1001, 7))
    var perr *PersistenceError
    require.ErrorAs(t, err, &perr)
    assert.Equal(t, "link unit", perr.Op)

    assert.Equal(t, 0, testutil.Count(t, db, "transmissions", ""))
    assert.Equal(t, 0, testutil.Count(t, db, "talkgroups", "last_transmission IS NOT NULL"))
}

func TestImportTransmissionKeepsNameSnapshots(t *testing.T) {
    ing, db := newIngestor(t, IngestOptions{})
    ctx := context.Background()

    tr, err := ing.ImportTransmission(ctx, request(1001, 7))
    require.NoError(t, err)

    testutil.Exec(t, db, `UPDATE talkgroups SET common_name = 'Fire Dispatch'`)
    testutil.Exec(t, db, `UPDATE units SET description = 'Engine 7'`)
    testutil.Exec(t, db, `UPDATE systems SET name = 'Renamed'`)

    stored, err := repository.NewTransmissionRepo(db).GetBySlug(ctx, tr.Slug)
    require.NoError(t, err)
    assert.Equal(t, "TG 1001", stored.TalkGroupName)
    assert.Equal(t, "Metro", stored.SystemName)
    assert.Equal(t, "Unit 7", stored.Units[0].Name)

    next, err := ing.ImportTransmission(ctx, ImportRequest{
        System: "Renamed", TalkGroup: 1001, StartTime: 1700000100, StopTime: 1700000101,
        AudioFilename: "b.m4a", HasAudio: true, Units: []int64{7},
    })
    require.NoError(t, err)
    assert.Equal(t, "Fire Dispatch", next.TalkGroupName)
    assert.Equal(t, "Engine 7", next.Units[0].Name)
}

func TestImportTransmissionFixAudioName(t *testing.T) {
    req := request(1001)
    req.AudioFilename = "1001-1700000000_8.5+08.m4a"

    plain, _ := newIngestor(t, IngestOptions{})
    tr, err := plain.ImportTransmission(context.Background(), req)
    require.NoError(t, err)
    assert.Equal(t, "1001-1700000000_8.5+08.m4a", tr.AudioFile)

    fixed, _ := newIngestor(t, IngestOptions{FixAudioName: true})
    tr, err = fixed.ImportTransmission(context.Background(), req)
    require.NoError(t, err)
    assert.Equal(t, "1001-1700000000_8.5%2B08.m4a", tr.AudioFile)
}

func TestImportTransmissionSuppliedPlayLength(t *testing.T) {
    ing, _ := newIngestor(t, IngestOptions{})
    req := request(1001)
    req.PlayLength = 2.25
    tr, err := ing.ImportTransmission(context.Background(), req)
    require.NoError(t, err)
    assert.InDelta(t, 2.25, tr.PlayLength, 1e-9)
}

func TestImportTransmissionConcurrentSameTalkGroup(t *testing.T) {
    ing, db := newIngestor(t, IngestOptions{})

    var wg sync.WaitGroup
    errs := make([]error, 2)
    for i := range errs {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, errs[i] = ing.ImportTransmission(context.Background(), request(2002, 5))
        }(i)
    }
    wg.Wait()

    for _, err := range errs {
        require.NoError(t, err)
    }
    assert.Equal(t, 1, testutil.Count(t, db, "talkgroups", "dec_id = ?", 2002))
    assert.Equal(t, 1, testutil.Count(t, db, "units", "dec_id = ?", 5))
    assert.Equal(t, 2, testutil.Count(t, db, "transmissions", ""))
}

func TestImportTransmissionHooks(t *testing.T) {
    ing, db := newIngestor(t, IngestOptions{HookTimeout: 50 * time.Millisecond})

    var ran atomic.Int32
    var sawCommitted atomic.Bool
    ing.AddHook(Hook{Name: "fail", Run: func(context.Context, *model.Transmission) error {
        ran.Add(1)
        return errors.New("broker down")
    }})
    ing.AddHook(Hook{Name: "panic", Run: func(context.Context, *model.Transmission) error {
        ran.Add(1)
        panic("boom")
    }})
    ing.AddHook(Hook{Name: "slow", Run: func(ctx context.Context, _ *model.Transmission) error {
        ran.Add(1)
        <-ctx.Done()
        return ctx.Err()
    }})
    ing.AddHook(Hook{Name: "check", Run: func(ctx context.Context, tr *model.Transmission) error {
        ran.Add(1)
        var n int
        err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transmissions WHERE slug = ?`, tr.Slug).Scan(&n)
        sawCommitted.Store(err == nil && n == 1)
        return err
    }})

    tr, err := ing.ImportTransmission(context.Background(), request(1001))
    require.NoError(t, err)
    assert.NotEmpty(t, tr.Slug)
    assert.Equal(t, int32(4), ran.Load())
    assert.True(t, sawCommitted.Load())
}

func TestImportTransmissionCancelledContextRunsHooks(t *testing.T) {
    ing, _ := newIngestor(t, IngestOptions{})
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    ing.AddHook(Hook{Name: "cancel", Run: func(context.Context, *model.Transmission) error {
        cancel()
        return nil
    }})
    var hookErr error
    ing.AddHook(Hook{Name: "ctx", Run: func(ctx context.Context, _ *model.Transmission) error {
        hookErr = ctx.Err()
        return nil
    }})
    _, err := ing.ImportTransmission(ctx, request(1001))
    require.NoError(t, err)
    assert.NoError(t, hookErr)
}

func TestAuthorize(t *testing.T) {
    ing, _ := newIngestor(t, IngestOptions{ImportToken: "s3cret"})
    assert.NoError(t, ing.Authorize("Token s3cret"))
    for _, h := range []string{"", "s3cret", "Token wrong", "Bearer s3cret", "Token  s3cret"} {
        assert.ErrorIs(t, ing.Authorize(h), ErrUnauthorized, h)
    }

    empty := NewIngestor(nil, IngestOptions{}, zerolog.Nop(), nil)
    assert.ErrorIs(t, empty.Authorize("Token "), ErrUnauthorized)
}

func TestEpochKeepsMicroseconds(t *testing.T) {
    got := epoch(1700000000.123456)
    assert.Equal(t, int64(1700000000), got.Unix())
    assert.InDelta(t, 123456, got.Nanosecond()/1000, 1)
    assert.Equal(t, time.UTC, got.Location())
}
