package fixture

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// Options shapes a synthetic raw dataset.
type Options struct {
	Channels int
	Days     int
	Start    time.Time
	Seed     int64

	// Fraction of rows emitted twice
	DuplicateRate float64

	// Fraction of rows with a negligible audience
	NoiseRate float64
}

// DefaultOptions is a small dataset that exercises every stage.
func DefaultOptions() Options {
	return Options{
		Channels:      6,
		Days:          14,
		Start:         time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC),
		Seed:          1,
		DuplicateRate: 0.02,
		NoiseRate:     0.03,
	}
}

// Generate simulates scraper output: every channel streams on some days,
// each stream is sampled every 5 minutes with second-level jitter, audience
// follows a log-normal around a per-channel baseline with an evening bump.
// Odd channels stream on Twitch, even channels on YouTube, and every third
// channel simulcasts on both.
func Generate(opts Options) ([]model.Entity, []model.Observation) {
	rng := rand.New(rand.NewSource(opts.Seed))

	entities := make([]model.Entity, 0, opts.Channels)
	var obs []model.Observation
	var nextID, nextSession int64 = 1, 1000

	emit := func(o model.Observation) {
		o.ID = nextID
		nextID++
		obs = append(obs, o)
	}

	for c := 0; c < opts.Channels; c++ {
		channel := fmt.Sprintf("UC%04d", c+1)
		group := "A"
		if c%2 == 1 {
			group = "B"
		}
		entities = append(entities, Entity(int64(c+1), channel, group))

		baseline := math.Log(float64(150 * (c + 1)))
		for d := 0; d < opts.Days; d++ {
			if rng.Float64() > 0.6 {
				continue
			}
			day := opts.Start.AddDate(0, 0, d)
			start := day.Add(time.Duration(12+rng.Intn(11))*time.Hour + time.Duration(rng.Intn(4)*15)*time.Minute)
			length := time.Duration(90+rng.Intn(150)) * time.Minute

			nextSession++
			ytSession, twSession := nextSession, int64(0)
			if c%2 == 1 {
				ytSession, twSession = 0, nextSession
			}
			if c%3 == 2 {
				nextSession++
				twSession = nextSession
			}

			for at := start; at.Before(start.Add(length)); at = at.Add(5 * time.Minute) {
				ts := at.Add(time.Duration(rng.Intn(50)) * time.Second)
				bump := 0.3 * math.Sin(float64(ts.Hour()-14)/24*2*math.Pi)
				v := func() int64 { return int64(math.Exp(baseline + bump + 0.35*rng.NormFloat64())) }

				var yt, tw int64
				if ytSession != 0 {
					yt = v()
				}
				if twSession != 0 {
					tw = v() / 3
				}
				if rng.Float64() < opts.NoiseRate {
					yt, tw = int64(rng.Intn(10)), int64(rng.Intn(10))
				}

				o := Both(0, channel, ts.Format("2006-01-02"), ts.Format("15:04:05"), ytSession, yt, twSession, tw)
				emit(o)
				if rng.Float64() < opts.DuplicateRate {
					emit(o)
				}
			}
			// offline ping after the stream ends
			end := start.Add(length)
			emit(Both(0, channel, end.Format("2006-01-02"), end.Format("15:04:05"), 0, 0, 0, 0))
		}
	}
	return entities, obs
}
