package stage

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/lineage"
	"github.com/ray-0411/vtuber-data-analyze/pkg/logging"
	"github.com/ray-0411/vtuber-data-analyze/pkg/snapshot"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage/sqlite"
)

// Opener opens a snapshot file for a stage.
type Opener func(path string) (storage.Storage, error)

// Runner executes stages between snapshot files.
type Runner struct {
	Config config.Config
	Log    *zap.SugaredLogger

	// Lineage records committed runs when set
	Lineage *lineage.Store

	// Open defaults to the sqlite backend with Config.Driver
	Open Opener
}

// NewRunner returns a Runner opening snapshots with the configured driver.
func NewRunner(cfg config.Config, log *zap.SugaredLogger, store *lineage.Store) *Runner {
	return &Runner{Config: cfg, Log: log, Lineage: store}
}

func (r *Runner) open(path string) (storage.Storage, error) {
	if r.Open != nil {
		return r.Open(path)
	}
	return sqlite.Open(path, sqlite.Options{Driver: r.Config.Driver})
}

// Run applies stage name to a copy of src written at dst. On any error the
// destination is removed and src is left untouched.
func (r *Runner) Run(ctx context.Context, name, src, dst string, params map[string]string) (*lineage.Run, error) {
	st, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := r.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := r.Log.With("stage", name)
	started := time.Now().UTC()
	log.Infow("stage started", "source", src, "destination", dst)

	co, err := snapshot.Take(src, dst, snapshot.Options{Force: r.Config.Force, MakeDirs: true})
	if err != nil {
		return nil, err
	}

	counters, err := r.apply(ctx, st, co.Destination, Env{Config: r.Config, Log: log, Params: params})
	if err != nil {
		if derr := co.Discard(); derr != nil {
			log.Warnw("failed to remove partial destination", "destination", dst, "error", derr)
		}
		log.Errorw("stage failed", "error", err)
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}

	info, err := co.Commit()
	if err != nil {
		if derr := co.Discard(); derr != nil {
			log.Warnw("failed to remove partial destination", "destination", dst, "error", derr)
		}
		return nil, fmt.Errorf("stage %s: failed to commit: %w", name, err)
	}

	run := &lineage.Run{
		Stage:             name,
		Source:            src,
		Destination:       dst,
		SourceDigest:      co.Source.Digest,
		DestinationDigest: info.Digest,
		DestinationBytes:  info.Bytes,
		Counters:          counters,
		Params:            r.params(name, params),
		StartedAt:         started,
		FinishedAt:        time.Now().UTC(),
	}
	if r.Lineage != nil {
		if err := r.Lineage.Append(ctx, run); err != nil {
			log.Warnw("failed to record lineage", "error", err)
		}
	}

	fields := []any{"elapsed", run.Duration().Round(time.Millisecond), "bytes", logging.Count(info.Bytes)}
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, k, counters[k])
	}
	log.Infow("stage finished", fields...)
	return run, nil
}

func (r *Runner) apply(ctx context.Context, st Stage, path string, env Env) (Counters, error) {
	store, err := r.open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	counters, err := st.Run(ctx, store, env)
	if cerr := store.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close snapshot: %w", cerr)
	}
	return counters, err
}

// params records the settings that shaped a run.
func (r *Runner) params(name string, extra map[string]string) map[string]string {
	out := make(map[string]string, len(extra)+4)
	for k, v := range extra {
		out[k] = v
	}
	out["driver"] = r.Config.Driver
	switch name {
	case "filter":
		out["viewer_floor"] = strconv.Itoa(r.Config.ViewerFloor)
	case "trim":
		out["policy"] = r.Config.TrimPolicy
		out["passes"] = strconv.Itoa(r.Config.TrimPasses)
	case "profile":
		out["diff_method"] = r.Config.DiffMethod
	}
	return out
}

// ChainPath names the destination of the i-th canonical stage in dir.
func ChainPath(dir string, i int, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%02d_%s.db", i+1, name))
}

// RunChain applies stages in order, each reading the previous destination.
// It stops at the first failure and returns the runs that committed.
func (r *Runner) RunChain(ctx context.Context, src, dir string, stages []string, params map[string]string) ([]*lineage.Run, error) {
	var runs []*lineage.Run
	prev := src
	for i, name := range stages {
		dst := ChainPath(dir, i, name)
		run, err := r.Run(ctx, name, prev, dst, params)
		if err != nil {
			return runs, err
		}
		runs = append(runs, run)
		prev = dst
	}
	return runs, nil
}
