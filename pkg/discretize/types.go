package discretize

import "github.com/ray-0411/vtuber-data-analyze/pkg/model"

// Aggregate accumulates the viewer counts of one group
type Aggregate struct {
	Sum   int64
	Count int64
	Min   int64
	Max   int64
}

// Add folds a value into the aggregate
func (a *Aggregate) Add(v int64) {
	if a.Count == 0 || v < a.Min {
		a.Min = v
	}
	if a.Count == 0 || v > a.Max {
		a.Max = v
	}
	a.Sum += v
	a.Count++
}

// Average returns the truncated mean
func (a *Aggregate) Average() int64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / a.Count
}

// Spread is the range of values folded into the aggregate
func (a *Aggregate) Spread() int64 {
	return a.Max - a.Min
}

// groupKey identifies one broadcast slice on one platform
type groupKey struct {
	Channel string
	Date    string
	Slot    string
	Session int64
}

// Result describes a discretization pass.
type Result struct {
	// Changed holds rewritten rows only
	Changed []model.Observation

	// Total rows examined
	Total int

	// Groups per platform, and how many of them held more than one value
	Groups [2]int
	Merged [2]int

	// Widest max-min range folded into one slot, per platform
	MaxSpread [2]int64
}
