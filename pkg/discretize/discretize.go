package discretize

import (
	"fmt"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/timeslot"
)

// Progress receives the number of rows processed so far.
type Progress func(done, total int)

// Apply rewrites every time to its slot label and every live viewer count to
// the truncated mean of its group. Any malformed date or time aborts the
// pass without a partial result.
func Apply(obs []model.Observation, progress Progress) (Result, error) {
	res := Result{Total: len(obs)}
	out := make([]model.Observation, len(obs))
	groups := [2]map[groupKey]*Aggregate{
		make(map[groupKey]*Aggregate),
		make(map[groupKey]*Aggregate),
	}

	for i, o := range obs {
		if _, err := timeslot.ParseDate(o.Date); err != nil {
			return Result{}, fmt.Errorf("observation %d: %w", o.ID, err)
		}
		slot, err := timeslot.Truncate(o.Time)
		if err != nil {
			return Result{}, fmt.Errorf("observation %d: %w", o.ID, err)
		}
		o.Time = slot
		out[i] = o

		for _, p := range model.Platforms {
			v, ok := o.Viewer(p)
			if !o.Live(p) {
				continue
			}
			k := groupKey{Channel: o.Channel, Date: o.Date, Slot: slot, Session: o.Sessions[p]}
			agg, exists := groups[p][k]
			if !exists {
				agg = &Aggregate{}
				groups[p][k] = agg
			}
			if ok {
				agg.Add(v)
			}
		}

		if progress != nil && ((i+1)%config.ProgressInterval == 0 || i+1 == len(obs)) {
			progress(i+1, len(obs))
		}
	}

	for _, p := range model.Platforms {
		res.Groups[p] = len(groups[p])
		for _, agg := range groups[p] {
			if agg.Count > 1 {
				res.Merged[p]++
			}
			if sp := agg.Spread(); agg.Count > 0 && sp > res.MaxSpread[p] {
				res.MaxSpread[p] = sp
			}
		}
	}

	for i := range out {
		o := &out[i]
		for _, p := range model.Platforms {
			if !o.Live(p) {
				continue
			}
			agg := groups[p][groupKey{Channel: o.Channel, Date: o.Date, Slot: o.Time, Session: o.Sessions[p]}]
			if agg.Count == 0 {
				// nothing to average; a null stays null
				continue
			}
			o.SetViewer(p, agg.Average())
		}
		if *o != obs[i] {
			res.Changed = append(res.Changed, *o)
		}
	}
	return res, nil
}
