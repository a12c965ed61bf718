package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ray-0411/vtuber-data-analyze/pkg/fixture"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

func seeded() *Storage {
	return New(
		[]model.Entity{fixture.Entity(2, "UC2", "B"), fixture.Entity(1, "UC1", "A")},
		[]model.Observation{
			fixture.YT(3, "UC1", "2025-07-01", "20:00", 7, 100),
			fixture.YT(1, "UC1", "2025-07-01", "20:05", 7, 120),
			fixture.TW(2, "UC2", "2025-07-02", "21:00", 9, 40),
		},
	)
}

func TestMemoryStorage_Ordering(t *testing.T) {
	store := seeded()
	defer store.Close()
	ctx := context.Background()

	entities, err := store.Entities(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, int64(1), entities[0].ID)

	obs, err := store.Observations(ctx)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{obs[0].ID, obs[1].ID, obs[2].ID})
}

func TestMemoryStorage_DeleteAndRewrite(t *testing.T) {
	store := seeded()
	ctx := context.Background()

	n, err := store.DeleteObservations(ctx, []int64{2, 42})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rewrite := fixture.YT(1, "UC1", "2025-07-01", "20:00", 7, 110)
	require.NoError(t, store.RewriteObservations(ctx, []model.Observation{rewrite}))

	obs, err := store.Observations(ctx)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "20:00", obs[0].Time)
	v, ok := obs[0].Viewer(model.YouTube)
	assert.True(t, ok)
	assert.Equal(t, int64(110), v)

	require.NoError(t, store.DeleteEntities(ctx, []int64{2}))
	entities, _ := store.Entities(ctx)
	assert.Len(t, entities, 1)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	store := seeded()
	ctx := context.Background()

	obs, _ := store.Observations(ctx)
	obs[0].Time = "mutated"

	again, _ := store.Observations(ctx)
	assert.NotEqual(t, "mutated", again[0].Time)
}

func TestMemoryStorage_DerivedTables(t *testing.T) {
	store := seeded()
	ctx := context.Background()

	require.NoError(t, store.ReplaceStatistics(ctx, []model.ChannelStatistics{{EntityID: 1}, {EntityID: 2}}))
	require.NoError(t, store.ReplaceStatistics(ctx, []model.ChannelStatistics{{EntityID: 1}}))
	st, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Len(t, st, 1, "replace drops earlier rows")

	require.NoError(t, store.ReplaceTimeProfiles(ctx, model.Twitch, []model.TimeProfile{{Time: "00:00"}}))
	yt, _ := store.TimeProfiles(ctx, model.YouTube)
	tw, _ := store.TimeProfiles(ctx, model.Twitch)
	assert.Empty(t, yt)
	assert.Len(t, tw, 1)

	require.NoError(t, store.EnsureIndexes(ctx))
	assert.True(t, store.Indexed())
}

func TestMemoryStorage_Stats(t *testing.T) {
	store := seeded()
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 3, stats.Observations)
	assert.Equal(t, 3, stats.LiveObservations)
	assert.Equal(t, "2025-07-01", stats.FirstDate)
	assert.Equal(t, "2025-07-02", stats.LastDate)
}

func TestMemoryStorage_CanceledContext(t *testing.T) {
	store := seeded()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Observations(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.DeleteObservations(ctx, []int64{1})
	assert.ErrorIs(t, err, context.Canceled)
}
