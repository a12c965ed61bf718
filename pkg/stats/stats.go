// Package stats computes per-channel population statistics.
//
// Recompute is a pure function of the current entities and observations;
// callers replace the stored statistics table with its output whenever the
// observation set changes.
package stats

import (
	"math"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// Series accumulates linear and log-space moments of one platform.
type Series struct {
	Linear Moments
	Log    Moments
	Min    int64
	Max    int64
}

// Add folds one viewer count in. Only strictly positive values reach the
// log-space moments.
func (s *Series) Add(v int64) {
	if s.Linear.N == 0 || v < s.Min {
		s.Min = v
	}
	if s.Linear.N == 0 || v > s.Max {
		s.Max = v
	}
	s.Linear.Add(float64(v))
	if v > 0 {
		s.Log.Add(math.Log(float64(v)))
	}
}

// Stats converts the accumulated moments. Empty series yield zeros.
func (s Series) Stats() model.PlatformStats {
	ps := model.PlatformStats{
		Count:   s.Linear.N,
		Avg:     s.Linear.Mean(),
		Std:     s.Linear.Std(),
		Min:     s.Min,
		Max:     s.Max,
		LnCount: s.Log.N,
		LnAvg:   s.Log.Mean(),
		LnStd:   s.Log.Std(),
	}
	if s.Log.N > 0 {
		ps.GeoAvg = math.Exp(ps.LnAvg)
	}
	return ps
}

// Qualifies reports whether an observation contributes to a platform's
// statistics: the session must be active and the count present.
func Qualifies(o model.Observation, p model.Platform) (int64, bool) {
	if !o.Live(p) {
		return 0, false
	}
	return o.Viewer(p)
}

// Recompute builds one ChannelStatistics row per entity, in entity id order.
// Observations of channels without an entity are ignored; entities without
// qualifying observations get all-zero statistics.
func Recompute(entities []model.Entity, obs []model.Observation) []model.ChannelStatistics {
	series := make(map[string]*[2]Series, len(entities))
	for _, e := range entities {
		series[e.ChannelID] = &[2]Series{}
	}

	for _, o := range obs {
		s, ok := series[o.Channel]
		if !ok {
			continue
		}
		for _, p := range model.Platforms {
			if v, ok := Qualifies(o, p); ok {
				s[p].Add(v)
			}
		}
	}

	ordered := sortedEntities(entities)
	out := make([]model.ChannelStatistics, 0, len(ordered))
	for _, e := range ordered {
		s := series[e.ChannelID]
		row := model.ChannelStatistics{EntityID: e.ID, ChannelID: e.ChannelID, ChannelName: e.ChannelName}
		for _, p := range model.Platforms {
			row.Platforms[p] = s[p].Stats()
		}
		out = append(out, row)
	}
	return out
}

// Index maps channel id to its statistics.
func Index(rows []model.ChannelStatistics) map[string]model.ChannelStatistics {
	out := make(map[string]model.ChannelStatistics, len(rows))
	for _, r := range rows {
		out[r.ChannelID] = r
	}
	return out
}
