package model

import (
	"database/sql"
	"time"
)

// Entity is a tracked channel (a streamer row). ID defines the canonical
// processing and display order.
type Entity struct {
	ID          int64
	ChannelID   string
	ChannelName string
	Group       string
}

// Observation is one audience sample (a main row). Sessions and Viewers are
// indexed by Platform.
type Observation struct {
	ID       int64
	Date     string
	Time     string
	Channel  string
	Sessions [2]int64
	Viewers  [2]sql.NullInt64
}

// Live reports whether the platform session is active for this row.
func (o Observation) Live(p Platform) bool {
	return o.Sessions[p] != 0
}

// LiveAny reports whether any platform session is active.
func (o Observation) LiveAny() bool {
	return o.Sessions[YouTube] != 0 || o.Sessions[Twitch] != 0
}

// Viewer returns the viewer count for a platform and whether it is set.
func (o Observation) Viewer(p Platform) (int64, bool) {
	v := o.Viewers[p]
	return v.Int64, v.Valid
}

// SetViewer stores a non-null viewer count.
func (o *Observation) SetViewer(p Platform, v int64) {
	o.Viewers[p] = sql.NullInt64{Int64: v, Valid: true}
}

// PlatformStats are the population statistics of one entity on one platform.
// Ln* fields are computed over strictly positive values only.
type PlatformStats struct {
	Count   int64
	Avg     float64
	Std     float64
	Min     int64
	Max     int64
	LnCount int64
	LnAvg   float64
	LnStd   float64
	GeoAvg  float64
}

// ChannelStatistics is one channel_avg row.
type ChannelStatistics struct {
	EntityID    int64
	ChannelID   string
	ChannelName string
	Platforms   [2]PlatformStats
}

// For returns the statistics of a platform.
func (c ChannelStatistics) For(p Platform) PlatformStats {
	return c.Platforms[p]
}

// TimeProfile is one row of a per-platform time profile table.
type TimeProfile struct {
	EntityID    int64
	ChannelID   string
	ChannelName string
	Platform    Platform
	Time        string
	LiveCount   int64
	AvgViewers  float64
	DiffPercent float64
	DiffMethod  string
}

// GlobalSlot is the cross-entity aggregate of one slot on one platform (or
// both platforms combined).
type GlobalSlot struct {
	LiveCount   int64
	WeightedAvg float64
	ArithDiff   float64
	GeoDiff     float64
}

// GlobalTimeProfile is one time_global_profile row.
type GlobalTimeProfile struct {
	Time       string
	DiffMethod string
	Platforms  [2]GlobalSlot
	All        GlobalSlot
}

// ConcurrencyRecord describes the rows live at one (date, time).
type ConcurrencyRecord struct {
	Date      string
	Time      string
	LiveCount int
	IDs       []int64
	GeoPerf   sql.NullFloat64
}

// ConcurrencyEffect is the average geometric performance observed at one
// concurrency level.
type ConcurrencyEffect struct {
	LiveCount  int
	AvgGeoPerf float64
	Samples    int
}

// LevelCount is the number of days a slot saw exactly Level live rows.
type LevelCount struct {
	Level int
	Days  int
}

// SlotDistribution is the distribution of concurrency levels of one slot
// over a date window. Levels are sorted by level and include level 0.
type SlotDistribution struct {
	Time         string
	TotalDays    int
	AvgLiveCount float64
	Levels       []LevelCount
}

// Pressure is the expected concurrency effect of a slot.
type Pressure struct {
	Time     string
	Expected float64
}

// SessionSummary describes one broadcast session on one platform.
type SessionSummary struct {
	Platform       Platform
	SessionID      int64
	Channel        string
	Start          time.Time
	End            time.Time
	AvgViewers     float64
	MaxViewers     int64
	MaxAt          time.Time
	MinViewers     int64
	MinAt          time.Time
	ExpectedPoints int
	ActualPoints   int
	MissingPoints  int
}
