package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage"
)

// Storage keeps a snapshot in memory. Data is lost on Close.
// Useful for testing and dry runs.
type Storage struct {
	mu sync.RWMutex

	entities     []model.Entity
	observations []model.Observation
	indexed      bool

	statistics []model.ChannelStatistics
	profiles   [2][]model.TimeProfile
	global     []model.GlobalTimeProfile
	records    []model.ConcurrencyRecord
	effects    []model.ConcurrencyEffect
	dist       []model.SlotDistribution
	sessions   []model.SessionSummary
}

var _ storage.Storage = (*Storage)(nil)

// New creates an in-memory snapshot seeded with the given rows.
func New(entities []model.Entity, obs []model.Observation) *Storage {
	s := &Storage{
		entities:     append([]model.Entity(nil), entities...),
		observations: append([]model.Observation(nil), obs...),
	}
	sort.Slice(s.entities, func(i, j int) bool { return s.entities[i].ID < s.entities[j].ID })
	sort.Slice(s.observations, func(i, j int) bool { return s.observations[i].ID < s.observations[j].ID })
	return s
}

// Seed appends rows, keeping id order.
func (s *Storage) Seed(ctx context.Context, entities []model.Entity, obs []model.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, entities...)
	s.observations = append(s.observations, obs...)
	sort.Slice(s.entities, func(i, j int) bool { return s.entities[i].ID < s.entities[j].ID })
	sort.Slice(s.observations, func(i, j int) bool { return s.observations[i].ID < s.observations[j].ID })
	return nil
}

// Entities returns streamers ordered by id
func (s *Storage) Entities(ctx context.Context) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Entity(nil), s.entities...), nil
}

// Observations returns main rows ordered by id
func (s *Storage) Observations(ctx context.Context) ([]model.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Observation(nil), s.observations...), nil
}

// DeleteObservations removes rows by id
func (s *Storage) DeleteObservations(ctx context.Context, ids []int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.observations[:0]
	var removed int64
	for _, o := range s.observations {
		if _, ok := drop[o.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	s.observations = kept
	return removed, nil
}

// RewriteObservations overwrites time and viewer counts of existing rows
func (s *Storage) RewriteObservations(ctx context.Context, obs []model.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	byID := make(map[int64]model.Observation, len(obs))
	for _, o := range obs {
		byID[o.ID] = o
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, o := range s.observations {
		n, ok := byID[o.ID]
		if !ok {
			continue
		}
		s.observations[i].Time = n.Time
		s.observations[i].Viewers = n.Viewers
	}
	return nil
}

// DeleteEntities removes streamers by id
func (s *Storage) DeleteEntities(ctx context.Context, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entities[:0]
	for _, e := range s.entities {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	s.entities = kept
	return nil
}

// EnsureIndexes records that the lookup indexes exist
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	s.mu.Lock()
	s.indexed = true
	s.mu.Unlock()
	return ctx.Err()
}

// Indexed reports whether EnsureIndexes was called.
func (s *Storage) Indexed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexed
}

func (s *Storage) ReplaceStatistics(ctx context.Context, rows []model.ChannelStatistics) error {
	return s.replace(ctx, func() { s.statistics = append([]model.ChannelStatistics(nil), rows...) })
}

func (s *Storage) Statistics(ctx context.Context) ([]model.ChannelStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ChannelStatistics(nil), s.statistics...), ctx.Err()
}

func (s *Storage) ReplaceTimeProfiles(ctx context.Context, p model.Platform, rows []model.TimeProfile) error {
	return s.replace(ctx, func() { s.profiles[p] = append([]model.TimeProfile(nil), rows...) })
}

func (s *Storage) TimeProfiles(ctx context.Context, p model.Platform) ([]model.TimeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TimeProfile(nil), s.profiles[p]...), ctx.Err()
}

func (s *Storage) ReplaceGlobalProfile(ctx context.Context, rows []model.GlobalTimeProfile) error {
	return s.replace(ctx, func() { s.global = append([]model.GlobalTimeProfile(nil), rows...) })
}

func (s *Storage) GlobalProfile(ctx context.Context) ([]model.GlobalTimeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.GlobalTimeProfile(nil), s.global...), ctx.Err()
}

func (s *Storage) ReplaceConcurrency(ctx context.Context, records []model.ConcurrencyRecord, effects []model.ConcurrencyEffect) error {
	return s.replace(ctx, func() {
		s.records = append([]model.ConcurrencyRecord(nil), records...)
		s.effects = append([]model.ConcurrencyEffect(nil), effects...)
	})
}

func (s *Storage) ConcurrencyRecords(ctx context.Context) ([]model.ConcurrencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ConcurrencyRecord(nil), s.records...), ctx.Err()
}

func (s *Storage) ConcurrencyEffects(ctx context.Context) ([]model.ConcurrencyEffect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ConcurrencyEffect(nil), s.effects...), ctx.Err()
}

func (s *Storage) ReplaceDistribution(ctx context.Context, rows []model.SlotDistribution) error {
	return s.replace(ctx, func() { s.dist = append([]model.SlotDistribution(nil), rows...) })
}

func (s *Storage) Distribution(ctx context.Context) ([]model.SlotDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SlotDistribution(nil), s.dist...), ctx.Err()
}

func (s *Storage) ReplaceSessions(ctx context.Context, rows []model.SessionSummary) error {
	return s.replace(ctx, func() { s.sessions = append([]model.SessionSummary(nil), rows...) })
}

func (s *Storage) Sessions(ctx context.Context) ([]model.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SessionSummary(nil), s.sessions...), ctx.Err()
}

// Stats summarizes the snapshot
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return storage.Summarize(s.entities, s.observations), ctx.Err()
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

func (s *Storage) replace(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	return nil
}
