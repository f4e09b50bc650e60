package repository

import (
    "context"
    "database/sql"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/testutil"
)

func seedSystem(t *testing.T, db *sql.DB, name string) *model.System {
    t.Helper()
    sys, _, err := NewSystemRepo(db).GetOrCreate(context.Background(), name)
    require.NoError(t, err)
    return sys
}

func seedTalkGroup(t *testing.T, db *sql.DB, sys *model.System, decID int64) *model.TalkGroup {
    t.Helper()
    tg, _, err := NewTalkGroupRepo(db).GetOrCreate(context.Background(), sys, decID)
    require.NoError(t, err)
    return tg
}

func seedTransmission(t *testing.T, db *sql.DB, tg *model.TalkGroup, start time.Time, emergency bool) *model.Transmission {
    t.Helper()
    ctx := context.Background()
    repo := NewTransmissionRepo(db)
    tx, err := db.BeginTx(ctx, nil)
    require.NoError(t, err)
    tr := &model.Transmission{
        StartDatetime:  start,
        AudioFile:      "a.mp3",
        HasAudio:       true,
        SystemID:       tg.SystemID,
        TalkGroupID:    tg.ID,
        TalkGroupDecID: tg.DecID,
        TalkGroupName:  tg.DisplayName(),
        SystemName:     tg.SystemName,
        Emergency:      emergency,
    }
    require.NoError(t, repo.CreateTx(ctx, tx, tr))
    require.NoError(t, tx.Commit())
    return tr
}

func TestSystemGetOrCreate(t *testing.T) {
    db := testutil.NewDB(t)
    repo := NewSystemRepo(db)
    ctx := context.Background()

    first, created, err := repo.GetOrCreate(ctx, "Metro County")
    require.NoError(t, err)
    assert.True(t, created)
    assert.Equal(t, "metro-county", first.Slug)

    again, created, err := repo.GetOrCreate(ctx, "Metro County")
    require.NoError(t, err)
    assert.False(t, created)
    assert.Equal(t, first.ID, again.ID)

    // same slug, different name
    other, created, err := repo.GetOrCreate(ctx, "metro county")
    require.NoError(t, err)
    assert.True(t, created)
    assert.NotEqual(t, first.Slug, other.Slug)
    assert.Contains(t, other.Slug, "metro-county-")
}

func TestTalkGroupGetOrCreateConcurrent(t *testing.T) {
    db := testutil.NewDB(t)
    sys := seedSystem(t, db, "Metro")
    repo := NewTalkGroupRepo(db)

    const workers = 8
    var (
        wg      sync.WaitGroup
        mu      sync.Mutex
        ids     = map[uint64]bool{}
        creates int
    )
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            tg, created, err := repo.GetOrCreate(context.Background(), sys, 1000)
            if !assert.NoError(t, err) {
                return
            }
            mu.Lock()
            defer mu.Unlock()
            ids[tg.ID] = true
            if created {
                creates++
            }
        }()
    }
    wg.Wait()

    assert.Len(t, ids, 1)
    assert.Equal(t, 1, creates)
    assert.Equal(t, 1, testutil.Count(t, db, "talkgroups", "system_id = ? AND dec_id = ?", sys.ID, 1000))
}

func TestTalkGroupPlaceholderAndSlugRetry(t *testing.T) {
    db := testutil.NewDB(t)
    metro := seedSystem(t, db, "Metro")
    other := seedSystem(t, db, "Other")

    // another system already owns the slug the new talkgroup would get
    testutil.Exec(t, db, `INSERT INTO talkgroups (system_id, dec_id, alpha_tag, common_name, description, slug,
        is_public, recent_usage, created_at, updated_at) VALUES (?, 5, 'x', '', '', 'metro-tg-1000', 1, 0, ?, ?)`,
        other.ID, time.Now().UTC(), time.Now().UTC())

    tg := seedTalkGroup(t, db, metro, 1000)
    assert.Equal(t, "TG 1000", tg.AlphaTag)
    assert.Equal(t, "metro-tg-1000-1000", tg.Slug)
    assert.True(t, tg.IsPublic)
    assert.Equal(t, "TG 1000", tg.DisplayName())

    got, err := NewTalkGroupRepo(db).GetBySlug(context.Background(), "metro-tg-1000-1000")
    require.NoError(t, err)
    assert.Equal(t, tg.ID, got.ID)
    assert.Equal(t, "Metro", got.SystemName)
}

func TestNewTalkGroupJoinsDefaultAccessGroups(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    access := NewAccessRepo(db)

    auto := &model.TalkGroupAccess{Name: "everyone", DefaultNewTalkGroups: true}
    manual := &model.TalkGroupAccess{Name: "staff"}
    require.NoError(t, access.CreateGroup(ctx, auto))
    require.NoError(t, access.CreateGroup(ctx, manual))

    tg := seedTalkGroup(t, db, seedSystem(t, db, "Metro"), 200)

    ids, err := access.GroupTalkGroupIDs(ctx, auto.ID)
    require.NoError(t, err)
    assert.Equal(t, []uint64{tg.ID}, ids)

    ids, err = access.GroupTalkGroupIDs(ctx, manual.ID)
    require.NoError(t, err)
    assert.Empty(t, ids)
}

func TestUnitGetOrCreate(t *testing.T) {
    db := testutil.NewDB(t)
    sys := seedSystem(t, db, "Metro")
    repo := NewUnitRepo(db)
    ctx := context.Background()

    u, created, err := repo.GetOrCreate(ctx, sys, 4521)
    require.NoError(t, err)
    assert.True(t, created)
    assert.Equal(t, "metro-4521", u.Slug)
    assert.Equal(t, model.UnitMobile, u.UnitType)
    assert.Equal(t, "Unit 4521", u.DisplayName())

    again, created, err := repo.GetOrCreate(ctx, sys, 4521)
    require.NoError(t, err)
    assert.False(t, created)
    assert.Equal(t, u.ID, again.ID)
}

func TestGetOrCreateReadsExistingRowsWithoutInsert(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    sys := seedSystem(t, db, "Metro")
    tg := seedTalkGroup(t, db, sys, 1000)
    u, _, err := NewUnitRepo(db).GetOrCreate(ctx, sys, 4521)
    require.NoError(t, err)

    // any insert from here on fails, so hits must come from the lookup
    for _, table := range []string{"systems", "talkgroups", "units"} {
        testutil.Exec(t, db, `CREATE TRIGGER no_insert_`+table+` BEFORE INSERT ON `+table+
            ` BEGIN SELECT RAISE(ABORT, 'insert attempted'); END`)
    }

    gotSys, created, err := NewSystemRepo(db).GetOrCreate(ctx, "Metro")
    require.NoError(t, err)
    assert.False(t, created)
    assert.Equal(t, sys.ID, gotSys.ID)

    gotTG, created, err := NewTalkGroupRepo(db).GetOrCreate(ctx, sys, 1000)
    require.NoError(t, err)
    assert.False(t, created)
    assert.Equal(t, tg.ID, gotTG.ID)

    gotUnit, created, err := NewUnitRepo(db).GetOrCreate(ctx, sys, 4521)
    require.NoError(t, err)
    assert.False(t, created)
    assert.Equal(t, u.ID, gotUnit.ID)

    _, _, err = NewTalkGroupRepo(db).GetOrCreate(ctx, sys, 1001)
    assert.ErrorContains(t, err, "insert attempted")
}

func TestTransmissionListOrderScopeAndFilters(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    sys := seedSystem(t, db, "Metro")
    tgA := seedTalkGroup(t, db, sys, 1)
    tgB := seedTalkGroup(t, db, sys, 2)
    repo := NewTransmissionRepo(db)

    base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
    oldA := seedTransmission(t, db, tgA, base, false)
    newA := seedTransmission(t, db, tgA, base.Add(2*time.Minute), true)
    midB := seedTransmission(t, db, tgB, base.Add(time.Minute), false)

    all, err := repo.Recent(ctx, TalkGroupScope{All: true}, nil, 10)
    require.NoError(t, err)
    require.Len(t, all, 3)
    assert.Equal(t, []string{newA.Slug, midB.Slug, oldA.Slug}, []string{all[0].Slug, all[1].Slug, all[2].Slug})
    assert.Equal(t, tgA.Slug, all[0].TalkGroupSlug)

    onlyB, err := repo.Recent(ctx, TalkGroupScope{IDs: []uint64{tgB.ID}}, nil, 10)
    require.NoError(t, err)
    require.Len(t, onlyB, 1)
    assert.Equal(t, midB.Slug, onlyB[0].Slug)

    none, err := repo.Recent(ctx, TalkGroupScope{}, nil, 10)
    require.NoError(t, err)
    assert.Empty(t, none)

    forA, err := repo.ForTalkGroup(ctx, tgA.ID, TalkGroupScope{All: true}, nil, 10)
    require.NoError(t, err)
    assert.Len(t, forA, 2)

    since := base.Add(30 * time.Second)
    recent, err := repo.ForTalkGroup(ctx, tgA.ID, TalkGroupScope{All: true}, &since, 10)
    require.NoError(t, err)
    require.Len(t, recent, 1)
    assert.Equal(t, newA.Slug, recent[0].Slug)

    ranged, err := repo.InDateRange(ctx, TalkGroupScope{All: true}, base, base.Add(2*time.Minute), 10)
    require.NoError(t, err)
    assert.Len(t, ranged, 2)

    emergency := true
    page, err := repo.List(ctx, TransmissionQuery{Scope: TalkGroupScope{All: true}, Emergency: &emergency})
    require.NoError(t, err)
    assert.EqualValues(t, 1, page.Total)
    assert.Equal(t, newA.Slug, page.Items[0].Slug)

    page, err = repo.List(ctx, TransmissionQuery{Scope: TalkGroupScope{All: true}, Limit: 1, Offset: 1})
    require.NoError(t, err)
    assert.EqualValues(t, 3, page.Total)
    require.Len(t, page.Items, 1)
    assert.Equal(t, midB.Slug, page.Items[0].Slug)
}

func TestTransmissionUnitAndScanListFilters(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    sys := seedSystem(t, db, "Metro")
    tgA := seedTalkGroup(t, db, sys, 1)
    tgB := seedTalkGroup(t, db, sys, 2)
    repo := NewTransmissionRepo(db)

    unit, _, err := NewUnitRepo(db).GetOrCreate(ctx, sys, 77)
    require.NoError(t, err)

    withUnit := seedTransmission(t, db, tgA, time.Now().UTC(), false)
    seedTransmission(t, db, tgB, time.Now().UTC(), false)

    tx, err := db.BeginTx(ctx, nil)
    require.NoError(t, err)
    require.NoError(t, repo.AddUnitTx(ctx, tx, withUnit.ID, unit.ID, 0))
    require.NoError(t, tx.Commit())

    page, err := repo.List(ctx, TransmissionQuery{Scope: TalkGroupScope{All: true}, UnitID: &unit.ID})
    require.NoError(t, err)
    require.Len(t, page.Items, 1)
    assert.Equal(t, withUnit.Slug, page.Items[0].Slug)

    sl := &model.ScanList{Name: "Fire Ops", CreatedBy: 1, Public: true}
    require.NoError(t, NewScanListRepo(db).Create(ctx, sl, []uint64{tgB.ID}))
    page, err = repo.List(ctx, TransmissionQuery{Scope: TalkGroupScope{All: true}, ScanListID: &sl.ID})
    require.NoError(t, err)
    require.Len(t, page.Items, 1)
    assert.Equal(t, tgB.ID, page.Items[0].TalkGroupID)

    inc := &model.Incident{Name: "Structure Fire", Public: true}
    require.NoError(t, NewIncidentRepo(db).Create(ctx, inc, []uint64{withUnit.ID}))
    page, err = repo.List(ctx, TransmissionQuery{Scope: TalkGroupScope{All: true}, IncidentID: &inc.ID})
    require.NoError(t, err)
    require.Len(t, page.Items, 1)
    assert.Equal(t, withUnit.Slug, page.Items[0].Slug)
}

func TestTransmissionCreateStoresSnapshots(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    tg := seedTalkGroup(t, db, seedSystem(t, db, "Metro"), 9)
    repo := NewTransmissionRepo(db)

    freq := int64(851012500)
    end := time.Date(2024, 5, 1, 12, 0, 4, 0, time.UTC)
    tr := &model.Transmission{
        StartDatetime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), EndDatetime: &end, PlayLength: 4,
        AudioFile: "9-1714564800.mp3", SystemID: tg.SystemID, TalkGroupID: tg.ID, TalkGroupDecID: 9,
        TalkGroupName: "TG 9", SystemName: "Metro", Freq: &freq,
        Units: []model.UnitSnapshot{{ID: 3, DecID: 1001, Name: "Engine 1"}},
    }
    tx, err := db.BeginTx(ctx, nil)
    require.NoError(t, err)
    require.NoError(t, repo.CreateTx(ctx, tx, tr))
    require.NoError(t, tx.Commit())
    assert.Len(t, tr.Slug, 36)

    got, err := repo.GetBySlug(ctx, tr.Slug)
    require.NoError(t, err)
    assert.Equal(t, tr.Units, got.Units)
    require.NotNil(t, got.Freq)
    assert.Equal(t, freq, *got.Freq)
    require.NotNil(t, got.EndDatetime)
    assert.True(t, end.Equal(*got.EndDatetime))
    assert.True(t, tr.StartDatetime.Equal(got.StartDatetime))

    _, err = repo.GetBySlug(ctx, "missing")
    assert.ErrorIs(t, err, ErrTransmissionNotFound)
}

func TestUpdateLastTransmissionAndRecentUsage(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    tg := seedTalkGroup(t, db, seedSystem(t, db, "Metro"), 9)
    repo := NewTalkGroupRepo(db)

    at := time.Now().UTC().Truncate(time.Second)
    tx, err := db.BeginTx(ctx, nil)
    require.NoError(t, err)
    require.NoError(t, repo.UpdateLastTransmissionTx(ctx, tx, tg.ID, at))
    require.NoError(t, tx.Commit())

    got, err := repo.GetByID(ctx, tg.ID)
    require.NoError(t, err)
    require.NotNil(t, got.LastTransmission)
    assert.True(t, at.Equal(*got.LastTransmission))

    seedTransmission(t, db, tg, at.Add(-time.Hour), false)
    seedTransmission(t, db, tg, at.Add(-time.Minute), false)
    n, err := repo.RefreshRecentUsage(ctx, tg.ID, at.Add(-15*time.Minute))
    require.NoError(t, err)
    assert.Equal(t, 1, n)

    got, err = repo.GetByID(ctx, tg.ID)
    require.NoError(t, err)
    assert.Equal(t, 1, got.RecentUsage)
}

func TestTalkGroupUpdateKeepsSlug(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    tg := seedTalkGroup(t, db, seedSystem(t, db, "Metro"), 9)
    repo := NewTalkGroupRepo(db)

    require.NoError(t, repo.Update(ctx, tg.ID, TalkGroupUpdate{AlphaTag: "PD Disp", CommonName: "Police Dispatch"}))
    got, err := repo.GetByID(ctx, tg.ID)
    require.NoError(t, err)
    assert.Equal(t, tg.Slug, got.Slug)
    assert.Equal(t, "Police Dispatch", got.DisplayName())
    assert.False(t, got.IsPublic)

    assert.ErrorIs(t, repo.Update(ctx, 9999, TalkGroupUpdate{}), ErrTalkGroupNotFound)
}

func TestSetDefaultPlanClearsOthers(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    repo := NewAccessRepo(db)

    free := &model.Plan{Name: "free", History: 60, IsDefault: true}
    paid := &model.Plan{Name: "paid"}
    require.NoError(t, repo.CreatePlan(ctx, free))
    require.NoError(t, repo.CreatePlan(ctx, paid))

    def, err := repo.DefaultPlan(ctx)
    require.NoError(t, err)
    assert.Equal(t, free.ID, def.ID)

    require.NoError(t, repo.SetDefaultPlan(ctx, paid.ID))
    def, err = repo.DefaultPlan(ctx)
    require.NoError(t, err)
    assert.Equal(t, paid.ID, def.ID)
    assert.Equal(t, 1, testutil.Count(t, db, "plans", "is_default = 1"))

    assert.ErrorIs(t, repo.SetDefaultPlan(ctx, 999), ErrPlanNotFound)
    assert.ErrorIs(t, repo.CreatePlan(ctx, &model.Plan{Name: "free"}), ErrConflict)
}

func TestCreateProfileSeedsDefaults(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    repo := NewAccessRepo(db)

    plan := &model.Plan{Name: "basic", History: 120, IsDefault: true}
    require.NoError(t, repo.CreatePlan(ctx, plan))
    everyone := &model.TalkGroupAccess{Name: "everyone", DefaultGroup: true}
    special := &model.TalkGroupAccess{Name: "special"}
    require.NoError(t, repo.CreateGroup(ctx, everyone))
    require.NoError(t, repo.CreateGroup(ctx, special))

    sys := seedSystem(t, db, "Metro")
    tg1 := seedTalkGroup(t, db, sys, 1)
    tg2 := seedTalkGroup(t, db, sys, 2)
    require.NoError(t, repo.AddTalkGroups(ctx, everyone.ID, tg1.ID))
    require.NoError(t, repo.AddTalkGroups(ctx, special.ID, tg1.ID, tg2.ID))

    p, err := repo.CreateProfile(ctx, 42)
    require.NoError(t, err)
    require.NotNil(t, p.Plan)
    assert.Equal(t, 120, p.HistoryLimit())

    groups, err := repo.ProfileGroupIDs(ctx, p.ID)
    require.NoError(t, err)
    assert.Equal(t, []uint64{everyone.ID}, groups)

    tgs, err := repo.ProfileTalkGroupIDs(ctx, p.ID)
    require.NoError(t, err)
    assert.Equal(t, []uint64{tg1.ID}, tgs)

    require.NoError(t, repo.GrantGroup(ctx, p.ID, special.ID))
    tgs, err = repo.ProfileTalkGroupIDs(ctx, p.ID)
    require.NoError(t, err)
    assert.Equal(t, []uint64{tg1.ID, tg2.ID}, tgs)

    again, err := repo.CreateProfile(ctx, 42)
    require.NoError(t, err)
    assert.Equal(t, p.ID, again.ID)

    require.NoError(t, repo.SetProfilePlan(ctx, 42, nil))
    p, err = repo.GetProfileByUser(ctx, 42)
    require.NoError(t, err)
    assert.Nil(t, p.Plan)
    assert.Equal(t, 0, p.HistoryLimit())

    _, err = repo.GetProfileByUser(ctx, 7)
    assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestFavorites(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    repo := NewAccessRepo(db)
    tg := seedTalkGroup(t, db, seedSystem(t, db, "Metro"), 1)

    p, err := repo.CreateProfile(ctx, 5)
    require.NoError(t, err)
    assert.Nil(t, p.Plan)

    require.NoError(t, repo.AddFavorite(ctx, p.ID, tg.ID))
    require.NoError(t, repo.AddFavorite(ctx, p.ID, tg.ID))
    favs, err := repo.FavoriteTalkGroupIDs(ctx, p.ID)
    require.NoError(t, err)
    assert.Equal(t, []uint64{tg.ID}, favs)

    require.NoError(t, repo.RemoveFavorite(ctx, p.ID, tg.ID))
    favs, err = repo.FavoriteTalkGroupIDs(ctx, p.ID)
    require.NoError(t, err)
    assert.Empty(t, favs)
}

func TestScanListMembership(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    repo := NewScanListRepo(db)
    sys := seedSystem(t, db, "Metro")
    tg1 := seedTalkGroup(t, db, sys, 1)
    tg2 := seedTalkGroup(t, db, sys, 2)

    fire := &model.ScanList{Name: "Fire Ops", CreatedBy: 1, Public: true}
    private := &model.ScanList{Name: "Mine", CreatedBy: 2}
    require.NoError(t, repo.Create(ctx, fire, []uint64{tg1.ID}))
    require.NoError(t, repo.Create(ctx, private, []uint64{tg1.ID, tg2.ID}))
    assert.Equal(t, "fire-ops", fire.Slug)

    slugs, err := repo.SlugsForTalkGroup(ctx, tg1.ID)
    require.NoError(t, err)
    assert.Equal(t, []string{"fire-ops", "mine"}, slugs)

    require.NoError(t, repo.AddTalkGroup(ctx, fire.ID, tg2.ID))
    slugs, err = repo.SlugsForTalkGroup(ctx, tg2.ID)
    require.NoError(t, err)
    assert.Equal(t, []string{"fire-ops", "mine"}, slugs)

    require.NoError(t, repo.RemoveTalkGroup(ctx, private.ID, tg2.ID))
    slugs, err = repo.SlugsForTalkGroup(ctx, tg2.ID)
    require.NoError(t, err)
    assert.Equal(t, []string{"fire-ops"}, slugs)

    got, err := repo.GetBySlug(ctx, "fire-ops")
    require.NoError(t, err)
    assert.Len(t, got.TalkGroups, 2)

    anon, err := repo.ListVisible(ctx, nil)
    require.NoError(t, err)
    assert.Len(t, anon, 1)
    owner := uint64(2)
    mine, err := repo.ListVisible(ctx, &owner)
    require.NoError(t, err)
    assert.Len(t, mine, 2)

    assert.ErrorIs(t, repo.Create(ctx, &model.ScanList{Name: "Fire Ops", CreatedBy: 3}, nil), ErrConflict)
}

func TestTranscriptionUpsert(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    tg := seedTalkGroup(t, db, seedSystem(t, db, "Metro"), 1)
    tr := seedTransmission(t, db, tg, time.Now().UTC(), false)
    repo := NewTranscriptionRepo(db)

    _, err := repo.GetByTransmission(ctx, tr.ID)
    assert.ErrorIs(t, err, ErrTranscriptionNotFound)

    conf := 0.8
    by := uint64(3)
    first := &model.Transcription{TransmissionID: tr.ID, Text: "engine one responding", IsAutomated: true,
        Confidence: &conf, Language: "en", CreatedBy: &by}
    require.NoError(t, repo.Upsert(ctx, first))
    assert.NotZero(t, first.ID)

    second := &model.Transcription{TransmissionID: tr.ID, Text: "Engine 1 responding", Language: "en"}
    require.NoError(t, repo.Upsert(ctx, second))
    assert.Equal(t, first.ID, second.ID)
    assert.Equal(t, "Engine 1 responding", second.Text)
    assert.False(t, second.IsAutomated)
    assert.Nil(t, second.Confidence)
    require.NotNil(t, second.CreatedBy)
    assert.Equal(t, by, *second.CreatedBy)
}

func TestArchiveGetBySlug(t *testing.T) {
    db := testutil.NewDB(t)
    ctx := context.Background()
    ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
    testutil.Exec(t, db, `INSERT INTO transmission_archive (original_id, slug, start_datetime, play_length, audio_file,
        system_id, system_name, talkgroup_id, talkgroup_dec_id, talkgroup_name, units_json, emergency, created_at, archived_at)
        VALUES (10, 'old-slug', ?, 3.5, 'old.mp3', 99, 'Gone', 98, 100, 'TG 100', '[{"id":1,"dec_id":5,"name":"Unit 5"}]', 0, ?, ?)`,
        ts, ts, ts)

    a, err := NewArchiveRepo(db).GetBySlug(ctx, "old-slug")
    require.NoError(t, err)
    assert.Equal(t, uint64(98), a.TalkGroupID)
    assert.Equal(t, []model.UnitSnapshot{{ID: 1, DecID: 5, Name: "Unit 5"}}, a.Units)
    assert.Nil(t, a.Freq)

    _, err = NewArchiveRepo(db).GetBySlug(ctx, "nope")
    assert.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestIsDuplicate(t *testing.T) {
    assert.False(t, isDuplicate(nil))
    assert.False(t, isDuplicate(sql.ErrNoRows))
    assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
    assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1452}))
    assert.True(t, isDuplicate(errors.New("UNIQUE constraint failed: talkgroups.system_id, talkgroups.dec_id")))
}
