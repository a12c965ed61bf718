package storage

import (
	"context"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// Storage is one open snapshot. A stage owns its Storage exclusively for the
// duration of the run, so implementations need not guard against concurrent
// writers. Implementations: memory (tests, dry runs), sqlite (snapshot files).
type Storage interface {
	// Entities returns all streamers ordered by id.
	Entities(ctx context.Context) ([]model.Entity, error)

	// Observations returns all main rows ordered by id.
	Observations(ctx context.Context) ([]model.Observation, error)

	// DeleteObservations removes rows by id and reports how many existed.
	DeleteObservations(ctx context.Context, ids []int64) (int64, error)

	// RewriteObservations overwrites time and viewer counts of existing rows.
	RewriteObservations(ctx context.Context, obs []model.Observation) error

	// DeleteEntities removes streamers by id.
	DeleteEntities(ctx context.Context, ids []int64) error

	// EnsureIndexes builds the per-platform (date, time, session) lookup
	// indexes on the main table.
	EnsureIndexes(ctx context.Context) error

	// Derived tables. Replace* drops and rebuilds the table.
	ReplaceStatistics(ctx context.Context, rows []model.ChannelStatistics) error
	Statistics(ctx context.Context) ([]model.ChannelStatistics, error)

	ReplaceTimeProfiles(ctx context.Context, p model.Platform, rows []model.TimeProfile) error
	TimeProfiles(ctx context.Context, p model.Platform) ([]model.TimeProfile, error)

	ReplaceGlobalProfile(ctx context.Context, rows []model.GlobalTimeProfile) error
	GlobalProfile(ctx context.Context) ([]model.GlobalTimeProfile, error)

	ReplaceConcurrency(ctx context.Context, records []model.ConcurrencyRecord, effects []model.ConcurrencyEffect) error
	ConcurrencyRecords(ctx context.Context) ([]model.ConcurrencyRecord, error)
	ConcurrencyEffects(ctx context.Context) ([]model.ConcurrencyEffect, error)

	ReplaceDistribution(ctx context.Context, rows []model.SlotDistribution) error
	Distribution(ctx context.Context) ([]model.SlotDistribution, error)

	ReplaceSessions(ctx context.Context, rows []model.SessionSummary) error
	Sessions(ctx context.Context) ([]model.SessionSummary, error)

	// Stats summarizes the snapshot contents.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the snapshot.
	Close() error
}

// Stats provides a quick view of a snapshot's size.
type Stats struct {
	Entities     int
	Observations int

	// Observations with at least one active session
	LiveObservations int

	// Date range covered by observations (empty when there are none)
	FirstDate string
	LastDate  string
}

// Summarize computes Stats from loaded rows. Backends share it.
func Summarize(entities []model.Entity, obs []model.Observation) *Stats {
	st := &Stats{Entities: len(entities), Observations: len(obs)}
	for _, o := range obs {
		if o.LiveAny() {
			st.LiveObservations++
		}
		if st.FirstDate == "" || o.Date < st.FirstDate {
			st.FirstDate = o.Date
		}
		if o.Date > st.LastDate {
			st.LastDate = o.Date
		}
	}
	return st
}
