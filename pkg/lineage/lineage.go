// Package lineage records which stage produced which snapshot.
//
// Every successful stage run appends a Run keyed by its destination path,
// so the chain of stages behind any snapshot file can be walked back to the
// raw input. Runs live in BadgerDB next to the snapshots.
package lineage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
)

// ErrNotFound is returned by Latest when no run produced the path.
var ErrNotFound = errors.New("no recorded run for snapshot")

// Run is one stage execution.
type Run struct {
	ID                uuid.UUID         `json:"id"`
	Stage             string            `json:"stage"`
	Source            string            `json:"source"`
	Destination       string            `json:"destination"`
	SourceDigest      string            `json:"source_digest"`
	DestinationDigest string            `json:"destination_digest"`
	DestinationBytes  int64             `json:"destination_bytes"`
	Counters          map[string]int64  `json:"counters,omitempty"`
	Params            map[string]string `json:"params,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store keeps runs in BadgerDB
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = config.DefaultLineageMemoryMB)
	MaxMemoryMB int64
}

// Open creates or opens a lineage store
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	limit := cfg.MaxMemoryMB
	if limit <= 0 {
		limit = config.DefaultLineageMemoryMB
	}
	memTableSize := limit * 1024 * 1024

	// Lineage holds a few hundred small records; keep every cache minimal.
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(2).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogFileSize(16 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open lineage store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// normalize makes equal paths produce equal keys.
func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// makeKey creates a sortable key: [destination_hash:8][started_at:8]
func makeKey(destination string, startedAt time.Time) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], xxhash.Sum64String(normalize(destination)))
	binary.BigEndian.PutUint64(key[8:16], uint64(startedAt.UnixNano()))
	return key
}

func prefixOf(destination string) []byte {
	return makeKey(destination, time.Unix(0, 0))[:8]
}

// Append stores a run. Missing ids and timestamps are filled in.
func (s *Store) Append(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(run.Destination, run.StartedAt), value)
	}); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}
	return nil
}

func (s *Store) scan(ctx context.Context, prefix []byte) ([]Run, error) {
	var runs []Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return fmt.Errorf("failed to decode run: %w", err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

// List returns every run ordered by start time.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	runs, err := s.scan(ctx, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs, nil
}

// Latest returns the most recent run that wrote destination.
func (s *Store) Latest(ctx context.Context, destination string) (Run, error) {
	runs, err := s.scan(ctx, prefixOf(destination))
	if err != nil {
		return Run{}, err
	}
	want := normalize(destination)
	for i := len(runs) - 1; i >= 0; i-- {
		if normalize(runs[i].Destination) == want {
			return runs[i], nil
		}
	}
	return Run{}, fmt.Errorf("%w: %s", ErrNotFound, destination)
}

// Chain walks back from destination through the runs that produced each
// source and returns them oldest first. A snapshot with no recorded run
// yields an empty chain.
func (s *Store) Chain(ctx context.Context, destination string) ([]Run, error) {
	var chain []Run
	seen := make(map[uuid.UUID]bool)
	for path := destination; ; {
		run, err := s.Latest(ctx, path)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		if seen[run.ID] {
			break
		}
		seen[run.ID] = true
		chain = append(chain, run)
		path = run.Source
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// RunGC rewrites value log files until none has more than discardRatio of
// stale data, and returns how many it rewrote. In-memory stores have no
// value log and report zero.
func (s *Store) RunGC(discardRatio float64) (int, error) {
	var rewritten int
	for {
		err := s.db.RunValueLogGC(discardRatio)
		switch {
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return rewritten, nil
		case err != nil:
			return rewritten, fmt.Errorf("failed to collect lineage garbage: %w", err)
		}
		rewritten++
	}
}
