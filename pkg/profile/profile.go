// Package profile aggregates viewer counts by time of day.
//
// Build produces one row per (channel, slot) for a platform, comparing the
// slot against the channel's own baseline. Global folds those rows across
// channels, weighting each by how often the channel was live in the slot.
package profile

import (
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stats"
	"github.com/ray-0411/vtuber-data-analyze/pkg/timeslot"
)

// Build computes the time profile of every channel with a positive baseline
// on platform p. Rows come in statistics order (streamer id), then slot
// order. Slots without observations get a zero row.
func Build(p model.Platform, statistics []model.ChannelStatistics, obs []model.Observation, strategy DiffStrategy) []model.TimeProfile {
	type slotKey struct {
		Channel string
		Slot    string
	}
	slots := make(map[slotKey]*stats.Series)
	for _, o := range obs {
		v, ok := stats.Qualifies(o, p)
		if !ok {
			continue
		}
		k := slotKey{o.Channel, o.Time}
		s, exists := slots[k]
		if !exists {
			s = &stats.Series{}
			slots[k] = s
		}
		s.Add(v)
	}

	labels := timeslot.Labels()
	var out []model.TimeProfile
	for _, c := range statistics {
		base := c.For(p)
		if base.Avg <= 0 {
			continue
		}
		for _, l := range labels {
			row := model.TimeProfile{
				EntityID:    c.EntityID,
				ChannelID:   c.ChannelID,
				ChannelName: c.ChannelName,
				Platform:    p,
				Time:        l,
				DiffMethod:  strategy.Name(),
			}
			if s, ok := slots[slotKey{c.ChannelID, l}]; ok {
				row.LiveCount = s.Linear.N
				row.AvgViewers = s.Linear.Mean()
				row.DiffPercent = strategy.Diff(*s, base)
			}
			out = append(out, row)
		}
	}
	return out
}
