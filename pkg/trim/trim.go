// Package trim removes outlying observations and recomputes statistics.
//
// A pass walks YouTube first and then Twitch over whatever YouTube left,
// judging both against the statistics computed before the pass. Removing a
// row removes it for both platforms. The recomputed statistics are part of
// the result: statistics from before a pass are never valid after it.
package trim

import (
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stats"
)

// Result describes one or more trimming passes.
type Result struct {
	Policy string

	// Removed counts rows per platform pass
	Removed    [2]int
	RemovedIDs []int64

	// Passes holds per-pass removals; a pass that removes nothing ends the run
	Passes [][2]int

	Remaining  []model.Observation
	Statistics []model.ChannelStatistics
}

// Total returns the rows removed over every pass and platform.
func (r Result) Total() int {
	return r.Removed[model.YouTube] + r.Removed[model.Twitch]
}

// Apply runs one pass against the given statistics.
func Apply(entities []model.Entity, obs []model.Observation, pre []model.ChannelStatistics, policy Policy) Result {
	idx := stats.Index(pre)
	res := Result{Policy: policy.Name()}
	remaining := obs

	for _, p := range model.Platforms {
		kept := make([]model.Observation, 0, len(remaining))
		for _, o := range remaining {
			if isOutlier(o, p, idx, policy) {
				res.Removed[p]++
				res.RemovedIDs = append(res.RemovedIDs, o.ID)
				continue
			}
			kept = append(kept, o)
		}
		remaining = kept
	}

	res.Passes = [][2]int{res.Removed}
	res.Remaining = remaining
	res.Statistics = stats.Recompute(entities, remaining)
	return res
}

func isOutlier(o model.Observation, p model.Platform, idx map[string]model.ChannelStatistics, policy Policy) bool {
	v, ok := stats.Qualifies(o, p)
	if !ok {
		return false
	}
	row, ok := idx[o.Channel]
	if !ok {
		return false
	}
	s := row.For(p)
	return policy.Eligible(s) && policy.Outlier(p, v, s)
}

// Iterate recomputes statistics from obs and runs up to passes passes,
// feeding each pass the statistics of the previous one.
func Iterate(entities []model.Entity, obs []model.Observation, policy Policy, passes int) Result {
	total := Result{
		Policy:     policy.Name(),
		Remaining:  obs,
		Statistics: stats.Recompute(entities, obs),
	}
	for i := 0; i < passes; i++ {
		r := Apply(entities, total.Remaining, total.Statistics, policy)
		total.Passes = append(total.Passes, r.Removed)
		total.Remaining = r.Remaining
		total.Statistics = r.Statistics
		total.RemovedIDs = append(total.RemovedIDs, r.RemovedIDs...)
		for _, p := range model.Platforms {
			total.Removed[p] += r.Removed[p]
		}
		if r.Total() == 0 {
			break
		}
	}
	return total
}
