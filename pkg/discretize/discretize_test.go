package discretize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ray-0411/vtuber-data-analyze/pkg/fixture"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/timeslot"
)

func TestAggregate(t *testing.T) {
	var a Aggregate
	assert.Equal(t, int64(0), a.Average())
	for _, v := range []int64{5, 1, 9, 6} {
		a.Add(v)
	}
	assert.Equal(t, int64(21), a.Sum)
	assert.Equal(t, int64(4), a.Count)
	assert.Equal(t, int64(1), a.Min)
	assert.Equal(t, int64(9), a.Max)
	assert.Equal(t, int64(5), a.Average(), "21/4 truncates to 5")
	assert.Equal(t, int64(8), a.Spread())
}

func TestApplySnapsAndAverages(t *testing.T) {
	obs := []model.Observation{
		fixture.YT(1, "UC1", "2025-07-01", "20:03:12", 812, 1240),
		fixture.YT(2, "UC1", "2025-07-01", "20:08:47", 812, 1310),
		fixture.YT(3, "UC1", "2025-07-01", "20:13:05", 812, 1295),
		fixture.YT(4, "UC1", "2025-07-01", "20:15:00", 812, 1000), // next slot
		fixture.YT(5, "UC1", "2025-07-01", "20:01:00", 999, 10),   // other session
		fixture.Null(fixture.YT(6, "UC1", "2025-07-01", "20:05", 812, 0), model.YouTube),
	}

	res, err := Apply(obs, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)

	byID := make(map[int64]model.Observation)
	for _, o := range res.Changed {
		byID[o.ID] = o
	}
	for _, id := range []int64{1, 2, 3, 6} {
		o, ok := byID[id]
		require.True(t, ok, "row %d rewritten", id)
		assert.Equal(t, "20:00", o.Time)
		v, valid := o.Viewer(model.YouTube)
		assert.True(t, valid)
		assert.Equal(t, int64(1281), v, "(1240+1310+1295)/3 truncated")
	}

	assert.Equal(t, "20:15", byID[4].Time)
	v, _ := byID[4].Viewer(model.YouTube)
	assert.Equal(t, int64(1000), v)

	v, _ = byID[5].Viewer(model.YouTube)
	assert.Equal(t, int64(10), v, "sessions are averaged separately")

	assert.Equal(t, 3, res.Groups[model.YouTube])
	assert.Equal(t, 1, res.Merged[model.YouTube])
	assert.Equal(t, int64(70), res.MaxSpread[model.YouTube], "1310-1240 within the 20:00 slot")
	assert.Zero(t, res.MaxSpread[model.Twitch])
}

func TestApplyPlatformsIndependent(t *testing.T) {
	obs := []model.Observation{
		fixture.Both(1, "UC1", "2025-07-01", "20:00", 1, 100, 2, 10),
		fixture.Both(2, "UC1", "2025-07-01", "20:10", 1, 200, 0, 999),
	}
	res, err := Apply(obs, nil)
	require.NoError(t, err)

	got := make(map[int64]model.Observation)
	for _, o := range res.Changed {
		got[o.ID] = o
	}
	yt, _ := got[1].Viewer(model.YouTube)
	assert.Equal(t, int64(150), yt)
	tw, _ := got[2].Viewer(model.Twitch)
	assert.Equal(t, int64(999), tw, "inactive platform columns are left alone")
}

func TestApplyIsIdempotent(t *testing.T) {
	_, obs := fixture.Generate(fixture.DefaultOptions())

	first, err := Apply(obs, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first.Changed)

	once := append([]model.Observation(nil), obs...)
	changed := make(map[int64]model.Observation)
	for _, o := range first.Changed {
		changed[o.ID] = o
	}
	for i, o := range once {
		if c, ok := changed[o.ID]; ok {
			once[i] = c
		}
	}

	second, err := Apply(once, nil)
	require.NoError(t, err)
	assert.Empty(t, second.Changed, "second pass is a no-op")
}

func TestApplyMalformedAborts(t *testing.T) {
	tests := []struct {
		name string
		obs  model.Observation
		want error
	}{
		{"bad time", fixture.YT(2, "UC1", "2025-07-01", "25:00", 1, 10), timeslot.ErrMalformedTime},
		{"bad date", fixture.YT(2, "UC1", "07/01/2025", "20:00", 1, 10), timeslot.ErrMalformedDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := []model.Observation{fixture.YT(1, "UC1", "2025-07-01", "20:00", 1, 10), tt.obs}
			res, err := Apply(obs, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.Contains(t, err.Error(), "observation 2")
			assert.Empty(t, res.Changed)
		})
	}
}

func TestApplyReportsProgress(t *testing.T) {
	obs := make([]model.Observation, 4500)
	for i := range obs {
		obs[i] = fixture.YT(int64(i+1), "UC1", "2025-07-01", "20:00", 1, 10)
	}
	var calls []int
	_, err := Apply(obs, func(done, total int) {
		assert.Equal(t, 4500, total)
		calls = append(calls, done)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2000, 4000, 4500}, calls)
}
