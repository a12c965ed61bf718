// Package fixture builds observations and entities for tests and demo
// snapshots.
package fixture

import (
	"database/sql"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// Entity returns a streamer row.
func Entity(id int64, channelID, group string) model.Entity {
	return model.Entity{ID: id, ChannelID: channelID, ChannelName: channelID + " ch", Group: group}
}

// YT returns a row live on YouTube only.
func YT(id int64, channel, date, clock string, session, viewers int64) model.Observation {
	return Both(id, channel, date, clock, session, viewers, 0, 0)
}

// TW returns a row live on Twitch only.
func TW(id int64, channel, date, clock string, session, viewers int64) model.Observation {
	return Both(id, channel, date, clock, 0, 0, session, viewers)
}

// Both returns a row with both platform columns set. Viewer counts are
// non-null even when the session is inactive.
func Both(id int64, channel, date, clock string, ytSession, yt, twSession, tw int64) model.Observation {
	return model.Observation{
		ID:       id,
		Date:     date,
		Time:     clock,
		Channel:  channel,
		Sessions: [2]int64{ytSession, twSession},
		Viewers: [2]sql.NullInt64{
			{Int64: yt, Valid: true},
			{Int64: tw, Valid: true},
		},
	}
}

// Null clears the viewer count of a platform.
func Null(o model.Observation, p model.Platform) model.Observation {
	o.Viewers[p] = sql.NullInt64{}
	return o
}
