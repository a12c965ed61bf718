package profile

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ray-0411/vtuber-data-analyze/pkg/fixture"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stats"
)

func series(values ...int64) stats.Series {
	var s stats.Series
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func TestArithmeticRatio(t *testing.T) {
	base := model.PlatformStats{Avg: 100, LnAvg: math.Log(100)}
	assert.InDelta(t, 20, ArithmeticRatio{}.Diff(series(110, 130), base), 1e-9)
	assert.InDelta(t, -50, ArithmeticRatio{}.Diff(series(50), base), 1e-9)
	assert.Equal(t, 0.0, ArithmeticRatio{}.Diff(series(), base))
	assert.Equal(t, 0.0, ArithmeticRatio{}.Diff(series(10), model.PlatformStats{}))
}

func TestLogGeometricRatio(t *testing.T) {
	base := model.PlatformStats{Avg: 100, LnAvg: math.Log(100)}
	// geometric mean of 50 and 200 is 100
	assert.InDelta(t, 0, LogGeometricRatio{}.Diff(series(50, 200), base), 1e-9)
	assert.InDelta(t, 25, LogGeometricRatio{}.Diff(series(125), base), 1e-9)
	assert.Equal(t, 0.0, LogGeometricRatio{}.Diff(series(0, 0), base), "non-positive slot mean")

	arith := ArithmeticRatio{}.Diff(series(50, 200), base)
	assert.InDelta(t, 25, arith, 1e-9, "the strategies disagree on the same data")
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("geometric")
	require.NoError(t, err)
	assert.Equal(t, LogGeometricRatio{}, s)
	_, err = ParseStrategy("harmonic")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestBuild(t *testing.T) {
	entities := []model.Entity{
		fixture.Entity(2, "UC2", "A"),
		fixture.Entity(1, "UC1", "A"),
		fixture.Entity(3, "UC3", "A"), // never live on YouTube
	}
	obs := []model.Observation{
		fixture.YT(1, "UC1", "2025-07-01", "20:00", 1, 100),
		fixture.YT(2, "UC1", "2025-07-02", "20:00", 2, 300),
		fixture.YT(3, "UC1", "2025-07-01", "21:00", 1, 100),
		fixture.YT(4, "UC2", "2025-07-01", "20:00", 3, 40),
		fixture.TW(5, "UC3", "2025-07-01", "20:00", 4, 40),
	}
	st := stats.Recompute(entities, obs)
	rows := Build(model.YouTube, st, obs, ArithmeticRatio{})

	require.Len(t, rows, 2*96, "UC3 has no YouTube baseline and is excluded")
	assert.Equal(t, "UC1", rows[0].ChannelID, "streamer order")
	assert.Equal(t, "00:00", rows[0].Time)
	assert.Equal(t, "UC2", rows[96].ChannelID)

	var slot20, empty model.TimeProfile
	for _, r := range rows[:96] {
		switch r.Time {
		case "20:00":
			slot20 = r
		case "03:00":
			empty = r
		}
	}
	// UC1 baseline avg = 500/3
	assert.Equal(t, int64(2), slot20.LiveCount)
	assert.InDelta(t, 200, slot20.AvgViewers, 1e-9)
	assert.InDelta(t, (200-500.0/3)/(500.0/3)*100, slot20.DiffPercent, 1e-9)
	assert.Equal(t, "arithmetic", slot20.DiffMethod)

	assert.Equal(t, model.TimeProfile{
		EntityID: 1, ChannelID: "UC1", ChannelName: "UC1 ch", Platform: model.YouTube,
		Time: "03:00", DiffMethod: "arithmetic",
	}, empty)
}

func TestDiffSignFollowsSlotMean(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	entities := []model.Entity{fixture.Entity(1, "UC1", "A")}
	var obs []model.Observation
	for id := int64(1); id <= 600; id++ {
		slot := []string{"18:00", "19:00", "20:00", "21:00", "22:00"}[rng.Intn(5)]
		obs = append(obs, fixture.YT(id, "UC1", "2025-07-01", slot, 1, 1+int64(rng.ExpFloat64()*200)))
	}
	st := stats.Recompute(entities, obs)
	base := st[0].For(model.YouTube)

	for _, strategy := range []DiffStrategy{ArithmeticRatio{}, LogGeometricRatio{}} {
		rows := Build(model.YouTube, st, obs, strategy)
		slots := map[string]*stats.Series{}
		for _, o := range obs {
			if slots[o.Time] == nil {
				slots[o.Time] = &stats.Series{}
			}
			v, _ := o.Viewer(model.YouTube)
			slots[o.Time].Add(v)
		}
		for _, r := range rows {
			s, ok := slots[r.Time]
			if !ok {
				continue
			}
			slotMean, baseMean := s.Linear.Mean(), base.Avg
			if strategy.Name() == "geometric" {
				slotMean, baseMean = s.Log.Mean(), base.LnAvg
			}
			switch {
			case slotMean > baseMean:
				assert.Greater(t, r.DiffPercent, 0.0, "%s %s", strategy.Name(), r.Time)
			case slotMean < baseMean:
				assert.Less(t, r.DiffPercent, 0.0, "%s %s", strategy.Name(), r.Time)
			}
		}
	}
}

// +10% with weight 3 and -10% with weight 1
func TestGlobalWeightedRegression(t *testing.T) {
	yt := []model.TimeProfile{
		{ChannelID: "UC1", Platform: model.YouTube, Time: "20:00", LiveCount: 3, AvgViewers: 110, DiffPercent: 10, DiffMethod: "geometric"},
		{ChannelID: "UC2", Platform: model.YouTube, Time: "20:00", LiveCount: 1, AvgViewers: 90, DiffPercent: -10, DiffMethod: "geometric"},
	}
	rows, err := Global(yt, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	g := rows[0].Platforms[model.YouTube]

	assert.InDelta(t, 5.0, g.ArithDiff, 1e-12)

	want := (math.Exp((3*math.Log(1.1)+math.Log(0.9))/4) - 1) * 100
	assert.InDelta(t, want, g.GeoDiff, 1e-12)
	assert.InDelta(t, 4.6177, g.GeoDiff, 1e-4)
	assert.NotEqual(t, g.ArithDiff, g.GeoDiff)

	assert.Equal(t, int64(4), g.LiveCount)
	assert.InDelta(t, 105, g.WeightedAvg, 1e-9)
	assert.Equal(t, g, rows[0].All, "all equals youtube when twitch is empty")
	assert.Equal(t, model.GlobalSlot{}, rows[0].Platforms[model.Twitch])
}

func TestGlobalCombinesPlatforms(t *testing.T) {
	yt := []model.TimeProfile{{Platform: model.YouTube, Time: "12:00", LiveCount: 1, AvgViewers: 100, DiffPercent: 20, DiffMethod: "geometric"}}
	tw := []model.TimeProfile{
		{Platform: model.Twitch, Time: "12:00", LiveCount: 1, AvgViewers: 50, DiffPercent: -20, DiffMethod: "geometric"},
		{Platform: model.Twitch, Time: "00:00", DiffMethod: "geometric"},
	}
	rows, err := Global(yt, tw)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "00:00", rows[0].Time)
	assert.Equal(t, model.GlobalSlot{}, rows[0].All, "zero weight stores zeros")

	all := rows[1].All
	assert.Equal(t, int64(2), all.LiveCount)
	assert.InDelta(t, 0, all.ArithDiff, 1e-12)
	assert.InDelta(t, (math.Sqrt(1.2*0.8)-1)*100, all.GeoDiff, 1e-12)
}

func TestGlobalSkipsNonPositiveRatios(t *testing.T) {
	yt := []model.TimeProfile{
		{Platform: model.YouTube, Time: "12:00", LiveCount: 2, DiffPercent: -100, DiffMethod: "arithmetic"},
		{Platform: model.YouTube, Time: "12:00", LiveCount: 1, DiffPercent: 50, DiffMethod: "arithmetic"},
	}
	rows, err := Global(yt, nil)
	require.NoError(t, err)
	g := rows[0].Platforms[model.YouTube]
	assert.InDelta(t, 50, g.GeoDiff, 1e-9, "-100% has no log ratio and is left out")
	assert.InDelta(t, 50, g.ArithDiff, 1e-9, "the arithmetic mean leaves out the same rows")
	assert.Equal(t, int64(3), g.LiveCount, "silent rows still count as live")
	assert.Equal(t, 50.0, math.Round(WeightedGeometric(yt)))
}

func TestGlobalRejectsMixedStrategies(t *testing.T) {
	yt := []model.TimeProfile{{Platform: model.YouTube, Time: "12:00", DiffMethod: "arithmetic"}}
	tw := []model.TimeProfile{{Platform: model.Twitch, Time: "12:00", DiffMethod: "geometric"}}
	_, err := Global(yt, tw)
	assert.ErrorIs(t, err, ErrMixedStrategies)
}
