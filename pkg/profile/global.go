package profile

import (
	"fmt"
	"math"
	"sort"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// weighted accumulates live-count weighted sums for one slot.
type weighted struct {
	weight    float64
	viewerSum float64

	// diff sums only cover rows with 1 + diff/100 > 0; a -100% row means the
	// channel had no audience at all and is left out of both means
	diffWeight float64
	diffSum    float64
	logSum     float64
}

func (w *weighted) add(r model.TimeProfile) {
	if r.LiveCount <= 0 {
		return
	}
	c := float64(r.LiveCount)
	w.weight += c
	w.viewerSum += r.AvgViewers * c
	if ratio := 1 + r.DiffPercent/100; ratio > 0 {
		w.diffWeight += c
		w.diffSum += r.DiffPercent * c
		w.logSum += math.Log(ratio) * c
	}
}

func (w weighted) slot() model.GlobalSlot {
	s := model.GlobalSlot{LiveCount: int64(w.weight)}
	if w.weight > 0 {
		s.WeightedAvg = w.viewerSum / w.weight
	}
	if w.diffWeight > 0 {
		s.ArithDiff = w.diffSum / w.diffWeight
		s.GeoDiff = (math.Exp(w.logSum/w.diffWeight) - 1) * 100
	}
	return s
}

// WeightedGeometric is the live-count weighted geometric mean of percentage
// ratios: (exp(sum(ln(1+d/100)*w) / sum(w)) - 1) * 100.
func WeightedGeometric(rows []model.TimeProfile) float64 {
	var w weighted
	for _, r := range rows {
		w.add(r)
	}
	return w.slot().GeoDiff
}

// Global aggregates per-platform time profiles across channels. Every slot
// present in either input gets a row; a slot with no weight stores zeros.
// Inputs must share one diff strategy.
func Global(yt, tw []model.TimeProfile) ([]model.GlobalTimeProfile, error) {
	method := ""
	for _, rows := range [][]model.TimeProfile{yt, tw} {
		for _, r := range rows {
			if method == "" {
				method = r.DiffMethod
			}
			if r.DiffMethod != method {
				return nil, fmt.Errorf("%w: %q and %q", ErrMixedStrategies, method, r.DiffMethod)
			}
		}
	}

	type acc struct {
		platforms [2]weighted
		all       weighted
	}
	bySlot := make(map[string]*acc)
	for _, rows := range [][]model.TimeProfile{yt, tw} {
		for _, r := range rows {
			a, ok := bySlot[r.Time]
			if !ok {
				a = &acc{}
				bySlot[r.Time] = a
			}
			a.platforms[r.Platform].add(r)
			a.all.add(r)
		}
	}

	out := make([]model.GlobalTimeProfile, 0, len(bySlot))
	for slot, a := range bySlot {
		g := model.GlobalTimeProfile{Time: slot, DiffMethod: method, All: a.all.slot()}
		for _, p := range model.Platforms {
			g.Platforms[p] = a.platforms[p].slot()
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}
