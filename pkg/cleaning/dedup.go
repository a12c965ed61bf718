package cleaning

import (
	"database/sql"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// dedupKey holds the seven measured fields. Null viewer counts compare equal
// to each other and differ from any present value.
type dedupKey struct {
	Date     string
	Time     string
	Channel  string
	Sessions [2]int64
	Viewers  [2]sql.NullInt64
}

func keyOf(o model.Observation) dedupKey {
	k := dedupKey{Date: o.Date, Time: o.Time, Channel: o.Channel, Sessions: o.Sessions}
	for _, p := range model.Platforms {
		if o.Viewers[p].Valid {
			k.Viewers[p] = o.Viewers[p]
		}
	}
	return k
}

// Dedup returns the ids to delete so that exactly one row, the one with the
// lowest id, survives per group of identical rows. Input order does not
// matter; the result is sorted ascending.
func Dedup(obs []model.Observation) []int64 {
	keep := make(map[dedupKey]int64, len(obs))
	for _, o := range obs {
		k := keyOf(o)
		if id, ok := keep[k]; !ok || o.ID < id {
			keep[k] = o.ID
		}
	}

	var drop []int64
	for _, o := range obs {
		if keep[keyOf(o)] != o.ID {
			drop = append(drop, o.ID)
		}
	}
	sortIDs(drop)
	return drop
}
