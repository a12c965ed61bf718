package cleaning

import (
	"sort"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// Reason explains why Filter rejected a row.
type Reason int

const (
	Keep Reason = iota
	NoSession
	BelowFloor
)

// Classify decides whether a row survives the quality filter. A null viewer
// count counts as below the floor.
func Classify(o model.Observation, floor int64) Reason {
	if !o.LiveAny() {
		return NoSession
	}
	below := true
	for _, p := range model.Platforms {
		if v, ok := o.Viewer(p); ok && v >= floor {
			below = false
		}
	}
	if below {
		return BelowFloor
	}
	return Keep
}

// FilterResult lists rejected ids by reason.
type FilterResult struct {
	NoSession  []int64
	BelowFloor []int64
}

// IDs returns every rejected id in ascending order.
func (r FilterResult) IDs() []int64 {
	out := make([]int64, 0, len(r.NoSession)+len(r.BelowFloor))
	out = append(out, r.NoSession...)
	out = append(out, r.BelowFloor...)
	sortIDs(out)
	return out
}

// Filter applies Classify to every row.
func Filter(obs []model.Observation, floor int64) FilterResult {
	var r FilterResult
	for _, o := range obs {
		switch Classify(o, floor) {
		case NoSession:
			r.NoSession = append(r.NoSession, o.ID)
		case BelowFloor:
			r.BelowFloor = append(r.BelowFloor, o.ID)
		}
	}
	return r
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
