// Package concurrency scores how channels perform when they broadcast at
// the same time as others.
//
// Records groups the rows live at each (date, time) and measures the
// cohort's geometric performance against each channel's own baseline.
// Effects averages those scores per concurrency level. Distribution counts,
// per slot, how many days a date window spent at each level, and
// ExpectedPressure combines the two into one expected effect per slot.
package concurrency

import (
	"database/sql"
	"math"
	"sort"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stats"
)

// Deviation returns ln(v) minus the channel's log baseline for the first
// platform, YouTube before Twitch, that is live with a positive count.
func Deviation(o model.Observation, s model.ChannelStatistics) (float64, bool) {
	for _, p := range model.Platforms {
		v, ok := stats.Qualifies(o, p)
		if !ok || v <= 0 {
			continue
		}
		return math.Log(float64(v)) - s.For(p).LnAvg, true
	}
	return 0, false
}

type stamp struct {
	Date string
	Time string
}

// Records builds one record per (date, time) with at least one live row of
// a channel that has statistics. GeoPerf is null when no row in the cohort
// has a positive count.
func Records(statistics []model.ChannelStatistics, obs []model.Observation) []model.ConcurrencyRecord {
	idx := stats.Index(statistics)

	type cohort struct {
		ids  []int64
		devs stats.Moments
	}
	groups := make(map[stamp]*cohort)
	for _, o := range obs {
		if !o.LiveAny() {
			continue
		}
		s, ok := idx[o.Channel]
		if !ok {
			continue
		}
		k := stamp{o.Date, o.Time}
		c, exists := groups[k]
		if !exists {
			c = &cohort{}
			groups[k] = c
		}
		c.ids = append(c.ids, o.ID)
		if d, ok := Deviation(o, s); ok {
			c.devs.Add(d)
		}
	}

	out := make([]model.ConcurrencyRecord, 0, len(groups))
	for k, c := range groups {
		sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
		r := model.ConcurrencyRecord{Date: k.Date, Time: k.Time, LiveCount: len(c.ids), IDs: c.ids}
		if c.devs.N > 0 {
			r.GeoPerf = sql.NullFloat64{Float64: (math.Exp(c.devs.Mean()) - 1) * 100, Valid: true}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// Effects averages cohort performance per concurrency level in log space:
// (exp(avg(ln(1 + p/100))) - 1) * 100. Records without a score are skipped.
func Effects(records []model.ConcurrencyRecord) []model.ConcurrencyEffect {
	levels := make(map[int]*stats.Moments)
	for _, r := range records {
		if !r.GeoPerf.Valid {
			continue
		}
		ratio := 1 + r.GeoPerf.Float64/100
		if ratio <= 0 {
			continue
		}
		m, ok := levels[r.LiveCount]
		if !ok {
			m = &stats.Moments{}
			levels[r.LiveCount] = m
		}
		m.Add(math.Log(ratio))
	}

	out := make([]model.ConcurrencyEffect, 0, len(levels))
	for level, m := range levels {
		out = append(out, model.ConcurrencyEffect{
			LiveCount:  level,
			AvgGeoPerf: (math.Exp(m.Mean()) - 1) * 100,
			Samples:    int(m.N),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LiveCount < out[j].LiveCount })
	return out
}
