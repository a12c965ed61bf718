package concurrency

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/timeslot"
)

const windowLayout = "2006-01-02 15:04"

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Days is the number of whole days in the window.
func (w Window) Days() int {
	if !w.To.After(w.From) {
		return 0
	}
	return int(w.To.Sub(w.From) / (24 * time.Hour))
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// ParseBound accepts "YYYY-MM-DD HH:MM" or a bare date meaning midnight.
func ParseBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(windowLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(config.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid window bound %q: want YYYY-MM-DD [HH:MM]", s)
	}
	return t, nil
}

// ParseWindow parses both bounds and checks their order.
func ParseWindow(from, to string) (Window, error) {
	f, err := ParseBound(from)
	if err != nil {
		return Window{}, err
	}
	t, err := ParseBound(to)
	if err != nil {
		return Window{}, err
	}
	if !t.After(f) {
		return Window{}, fmt.Errorf("window end %s is not after start %s", to, from)
	}
	return Window{From: f, To: t}, nil
}

// DefaultWindow covers every day that has a record, midnight to midnight.
func DefaultWindow(records []model.ConcurrencyRecord) (Window, bool) {
	if len(records) == 0 {
		return Window{}, false
	}
	first, last := records[0].Date, records[0].Date
	for _, r := range records {
		if r.Date < first {
			first = r.Date
		}
		if r.Date > last {
			last = r.Date
		}
	}
	f, err := timeslot.ParseDate(first)
	if err != nil {
		return Window{}, false
	}
	l, err := timeslot.ParseDate(last)
	if err != nil {
		return Window{}, false
	}
	return Window{From: f, To: l.AddDate(0, 0, 1)}, true
}

// Distribution counts, for each slot, how many days in the window saw each
// concurrency level. Level 0 is the remaining days of the window. Every slot
// label is present; levels are not capped.
func Distribution(records []model.ConcurrencyRecord, w Window) ([]model.SlotDistribution, error) {
	total := w.Days()
	counts := make(map[string]map[int]int)
	for _, l := range timeslot.Labels() {
		counts[l] = make(map[int]int)
	}

	for _, r := range records {
		at, err := timeslot.At(r.Date, r.Time)
		if err != nil {
			return nil, fmt.Errorf("live_concurrent %s %s: %w", r.Date, r.Time, err)
		}
		if !w.Contains(at) || r.LiveCount <= 0 {
			continue
		}
		if counts[r.Time] == nil {
			counts[r.Time] = make(map[int]int)
		}
		counts[r.Time][r.LiveCount]++
	}

	out := make([]model.SlotDistribution, 0, len(counts))
	for slot, levels := range counts {
		d := model.SlotDistribution{Time: slot, TotalDays: total}
		live, weighted := 0, 0
		for level, days := range levels {
			d.Levels = append(d.Levels, model.LevelCount{Level: level, Days: days})
			live += days
			weighted += level * days
		}
		idle := total - live
		if idle < 0 {
			idle = 0
		}
		d.Levels = append(d.Levels, model.LevelCount{Level: 0, Days: idle})
		sort.Slice(d.Levels, func(i, j int) bool { return d.Levels[i].Level < d.Levels[j].Level })
		if total > 0 {
			d.AvgLiveCount = float64(weighted) / float64(total)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// ExpectedPressure weights each level's effect by the days the slot spent at
// that level and divides by the window length. Levels without an effect,
// level 0 included, contribute nothing.
func ExpectedPressure(dist []model.SlotDistribution, effects []model.ConcurrencyEffect) []model.Pressure {
	effect := make(map[int]float64, len(effects))
	for _, e := range effects {
		effect[e.LiveCount] = e.AvgGeoPerf
	}

	out := make([]model.Pressure, 0, len(dist))
	for _, d := range dist {
		p := model.Pressure{Time: d.Time}
		if d.TotalDays > 0 {
			var sum float64
			for _, l := range d.Levels {
				sum += float64(l.Days) * effect[l.Level]
			}
			p.Expected = sum / float64(d.TotalDays)
		}
		out = append(out, p)
	}
	return out
}
