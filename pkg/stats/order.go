package stats

import (
	"sort"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// sortedEntities returns a copy ordered by id, the canonical streamer order.
func sortedEntities(entities []model.Entity) []model.Entity {
	out := append([]model.Entity(nil), entities...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
