package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ray-0411/vtuber-data-analyze/pkg/fixture"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

func newStore(t *testing.T) *Storage {
	t.Helper()
	s, err := Create(filepath.Join(t.TempDir(), "snap.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	err = s.Seed(context.Background(),
		[]model.Entity{fixture.Entity(2, "UC2", "B"), fixture.Entity(1, "UC1", "A")},
		[]model.Observation{
			fixture.YT(1, "UC1", "2025-07-01", "20:03:10", 7, 100),
			fixture.Null(fixture.TW(2, "UC2", "2025-07-01", "20:07", 9, 0), model.Twitch),
			fixture.Both(3, "UC1", "2025-07-02", "21:00", 8, 50, 11, 20),
		})
	require.NoError(t, err)
	return s
}

func TestCreateRefusesExisting(t *testing.T) {
	s := newStore(t)
	_, err := Create(s.Path(), Options{})
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.db"), Options{})
	assert.Error(t, err)

	_, err = Open(s.Path(), Options{Driver: "postgres"})
	assert.Error(t, err)
}

func TestObservationsRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	entities, err := s.Entities(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, int64(1), entities[0].ID, "streamer order is by id")
	assert.Equal(t, "A", entities[0].Group)

	obs, err := s.Observations(ctx)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, "20:03:10", obs[0].Time)
	assert.Equal(t, int64(7), obs[0].Sessions[model.YouTube])
	_, valid := obs[1].Viewer(model.Twitch)
	assert.False(t, valid, "null viewer count survives the round trip")
	assert.True(t, obs[2].Live(model.Twitch))
}

func TestDeleteAndRewrite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	n, err := s.DeleteObservations(ctx, []int64{2, 99})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	o := fixture.YT(1, "UC1", "2025-07-01", "20:00", 7, 90)
	require.NoError(t, s.RewriteObservations(ctx, []model.Observation{o}))

	obs, err := s.Observations(ctx)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "20:00", obs[0].Time)
	v, _ := obs[0].Viewer(model.YouTube)
	assert.Equal(t, int64(90), v)

	require.NoError(t, s.DeleteEntities(ctx, []int64{2}))
	entities, err := s.Entities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestEnsureIndexes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureIndexes(ctx))
	require.NoError(t, s.EnsureIndexes(ctx), "index creation is repeatable")

	for _, name := range []string{"idx_main_yt", "idx_main_tw"} {
		var n int
		err := s.db.QueryRow(`select count(*) from sqlite_master where type = 'index' and name = ?`, name).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, name)
	}
}

func TestStats(t *testing.T) {
	s := newStore(t)
	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entities)
	assert.Equal(t, 3, st.Observations)
	assert.Equal(t, 3, st.LiveObservations)
	assert.Equal(t, "2025-07-01", st.FirstDate)
	assert.Equal(t, "2025-07-02", st.LastDate)
}

func TestDerivedTablesReadEmptyBeforeProduced(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Empty(t, st)

	prof, err := s.TimeProfiles(ctx, model.YouTube)
	require.NoError(t, err)
	assert.Empty(t, prof)

	p, err := s.Pressure(ctx)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestReplaceStatisticsDropsStaleRows(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := []model.ChannelStatistics{
		{EntityID: 2, ChannelID: "UC2", ChannelName: "two"},
		{EntityID: 1, ChannelID: "UC1", ChannelName: "one", Platforms: [2]model.PlatformStats{
			{Count: 4, Avg: 100, Std: 35.355, Min: 50, Max: 150, LnCount: 4, LnAvg: 4.5, LnStd: 0.4, GeoAvg: 90},
		}},
	}
	require.NoError(t, s.ReplaceStatistics(ctx, first))
	got, err := s.Statistics(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "UC1", got[0].ChannelID, "rows come back in streamer order")
	assert.Equal(t, first[1], got[0])

	require.NoError(t, s.ReplaceStatistics(ctx, first[:1]))
	got, err = s.Statistics(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTimeProfilesMaterializeSlots(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rows := []model.TimeProfile{
		{EntityID: 1, ChannelID: "UC1", ChannelName: "one", Time: "20:00", LiveCount: 3, AvgViewers: 110, DiffPercent: 10, DiffMethod: "geometric"},
		{EntityID: 1, ChannelID: "UC1", ChannelName: "one", Time: "00:00", DiffMethod: "geometric"},
	}
	require.NoError(t, s.ReplaceTimeProfiles(ctx, model.Twitch, rows))

	var slots int
	require.NoError(t, s.db.QueryRow(`select count(*) from time_slots`).Scan(&slots))
	assert.Equal(t, 96, slots)

	got, err := s.TimeProfiles(ctx, model.Twitch)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "00:00", got[0].Time)
	assert.Equal(t, model.Twitch, got[1].Platform)
	assert.InDelta(t, 10, got[1].DiffPercent, 1e-9)

	bad := []model.TimeProfile{{EntityID: 1, ChannelID: "UC1", Time: "20:07", DiffMethod: "geometric"}}
	assert.Error(t, s.ReplaceTimeProfiles(ctx, model.Twitch, bad), "times outside the slot dimension are rejected")
}

func TestGlobalProfileColumns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	row := model.GlobalTimeProfile{Time: "12:00", DiffMethod: "geometric"}
	row.Platforms[model.YouTube] = model.GlobalSlot{LiveCount: 4, WeightedAvg: 120, ArithDiff: 5, GeoDiff: 4.6}
	row.Platforms[model.Twitch] = model.GlobalSlot{LiveCount: 1, WeightedAvg: 30, ArithDiff: -2, GeoDiff: -2}
	row.All = model.GlobalSlot{LiveCount: 5, WeightedAvg: 102, ArithDiff: 3.6, GeoDiff: 3.2}
	require.NoError(t, s.ReplaceGlobalProfile(ctx, []model.GlobalTimeProfile{row}))

	got, err := s.GlobalProfile(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, row, got[0])
}

func TestConcurrencyAndPressureView(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	records := []model.ConcurrencyRecord{
		{Date: "2025-07-01", Time: "20:00", LiveCount: 2, IDs: []int64{1, 2}, GeoPerf: sql.NullFloat64{Float64: -5, Valid: true}},
		{Date: "2025-07-02", Time: "21:00", LiveCount: 1, IDs: []int64{3}},
	}
	effects := []model.ConcurrencyEffect{{LiveCount: 1, AvgGeoPerf: 2, Samples: 10}, {LiveCount: 2, AvgGeoPerf: -6, Samples: 4}}
	require.NoError(t, s.ReplaceConcurrency(ctx, records, effects))

	gotRecords, err := s.ConcurrencyRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, gotRecords)

	dist := []model.SlotDistribution{{
		Time: "20:00", TotalDays: 10, AvgLiveCount: 0.7,
		Levels: []model.LevelCount{{Level: 0, Days: 5}, {Level: 1, Days: 3}, {Level: 2, Days: 1}, {Level: 3, Days: 1}},
	}}
	require.NoError(t, s.ReplaceDistribution(ctx, dist))

	gotDist, err := s.Distribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, dist, gotDist)

	// (3*2 + 1*-6 + 1*0) / 10: level 3 has no effect and counts as zero
	p, err := s.Pressure(ctx)
	require.NoError(t, err)
	require.Len(t, p, 1)
	assert.InDelta(t, 0.0, p[0].Expected, 1e-9)

	// rebuilding concurrency keeps the view
	effects[1].AvgGeoPerf = -1
	require.NoError(t, s.ReplaceConcurrency(ctx, records, effects))
	p, err = s.Pressure(ctx)
	require.NoError(t, err)
	require.Len(t, p, 1)
	assert.InDelta(t, 0.5, p[0].Expected, 1e-9)
}

func TestSessionsRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	at := func(v string) time.Time {
		ts, err := time.Parse(sessionTimeLayout, v)
		require.NoError(t, err)
		return ts
	}
	rows := []model.SessionSummary{{
		Platform: model.Twitch, SessionID: 11, Channel: "UC1",
		Start: at("2025-07-02 21:00"), End: at("2025-07-02 22:00"), AvgViewers: 20.5,
		MaxViewers: 30, MaxAt: at("2025-07-02 21:15"), MinViewers: 10, MinAt: at("2025-07-02 22:00"),
		ExpectedPoints: 5, ActualPoints: 4, MissingPoints: 1,
	}}
	require.NoError(t, s.ReplaceSessions(ctx, rows))

	got, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
