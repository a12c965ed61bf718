// Package session summarizes individual broadcasts.
//
// A broadcast is the set of rows sharing (channel, session id) on one
// platform. Its summary records when it started and ended, its average,
// peak and trough audience and how many 15-minute samples are missing.
package session

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/timeslot"
)

type sample struct {
	at      time.Time
	viewers int64
}

type key struct {
	Channel string
	Session int64
}

// Progress receives the number of sessions summarized so far.
type Progress func(done, total int)

// Summarize builds one summary per broadcast on platform p, ordered by
// session id then channel. Rows with a null count are ignored; a broadcast
// with no counted rows yields no summary.
func Summarize(obs []model.Observation, p model.Platform, progress Progress) ([]model.SessionSummary, error) {
	streams := make(map[key][]sample)
	for _, o := range obs {
		if !o.Live(p) {
			continue
		}
		v, ok := o.Viewer(p)
		if !ok {
			continue
		}
		at, err := timeslot.At(o.Date, o.Time)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", o.ID, err)
		}
		k := key{o.Channel, o.Sessions[p]}
		streams[k] = append(streams[k], sample{at: at.Truncate(time.Minute), viewers: v})
	}

	keys := make([]key, 0, len(streams))
	for k := range streams {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Session != keys[j].Session {
			return keys[i].Session < keys[j].Session
		}
		return keys[i].Channel < keys[j].Channel
	})

	out := make([]model.SessionSummary, 0, len(keys))
	for i, k := range keys {
		out = append(out, summarize(p, k, streams[k]))
		if progress != nil && ((i+1)%config.SessionProgressInterval == 0 || i+1 == len(keys)) {
			progress(i+1, len(keys))
		}
	}
	return out, nil
}

func summarize(p model.Platform, k key, samples []sample) model.SessionSummary {
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })

	s := model.SessionSummary{
		Platform:   p,
		SessionID:  k.Session,
		Channel:    k.Channel,
		Start:      samples[0].at,
		End:        samples[len(samples)-1].at,
		MaxViewers: samples[0].viewers,
		MaxAt:      samples[0].at,
		MinViewers: samples[0].viewers,
		MinAt:      samples[0].at,
	}

	var sum int64
	for _, x := range samples {
		sum += x.viewers
		// strict comparisons keep the earliest time an extreme is reached
		if x.viewers > s.MaxViewers {
			s.MaxViewers, s.MaxAt = x.viewers, x.at
		}
		if x.viewers < s.MinViewers {
			s.MinViewers, s.MinAt = x.viewers, x.at
		}
	}
	s.AvgViewers = math.Round(float64(sum)/float64(len(samples))*10) / 10

	minutes := int(s.End.Sub(s.Start) / time.Minute)
	s.ExpectedPoints = minutes/config.SlotMinutes + 1
	s.ActualPoints = len(samples)
	s.MissingPoints = s.ExpectedPoints - s.ActualPoints
	return s
}

// SummarizeAll runs Summarize for YouTube and then Twitch.
func SummarizeAll(obs []model.Observation, progress Progress) ([]model.SessionSummary, error) {
	var out []model.SessionSummary
	for _, p := range model.Platforms {
		rows, err := Summarize(obs, p, progress)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}
