package cleaning

import "github.com/ray-0411/vtuber-data-analyze/pkg/model"

// CohortResult lists what falls outside a group.
type CohortResult struct {
	EntityIDs      []int64
	ObservationIDs []int64

	// Channels kept, for trimming derived rows
	Channels map[string]struct{}
}

// Cohort keeps streamers whose group equals group and the observations of
// those streamers. Observations of unknown channels are dropped too.
func Cohort(entities []model.Entity, obs []model.Observation, group string) CohortResult {
	r := CohortResult{Channels: make(map[string]struct{})}
	for _, e := range entities {
		if e.Group == group {
			r.Channels[e.ChannelID] = struct{}{}
			continue
		}
		r.EntityIDs = append(r.EntityIDs, e.ID)
	}
	for _, o := range obs {
		if _, ok := r.Channels[o.Channel]; !ok {
			r.ObservationIDs = append(r.ObservationIDs, o.ID)
		}
	}
	sortIDs(r.EntityIDs)
	sortIDs(r.ObservationIDs)
	return r
}
