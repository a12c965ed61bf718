// Package stage defines the pipeline steps and runs them between snapshots.
//
// Each stage reads one snapshot and writes the next: the Runner copies the
// source to the destination, opens the copy, applies the stage and commits
// it. A failing stage leaves no destination behind.
package stage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage"
)

var (
	ErrUnknownStage = errors.New("unknown stage")

	// ErrNoStatistics is returned by stages that need channel statistics
	// from a snapshot whose stats stage has not run.
	ErrNoStatistics = errors.New("snapshot has no channel statistics")

	// ErrMissingParam is returned when a stage parameter is required but unset.
	ErrMissingParam = errors.New("missing stage parameter")
)

// Stage parameter names
const (
	ParamGroup = "group"
	ParamFrom  = "from"
	ParamTo    = "to"
)

// Counters are the per-stage numbers logged and recorded in lineage.
type Counters map[string]int64

// Env is what a stage may read besides its snapshot.
type Env struct {
	Config config.Config
	Log    *zap.SugaredLogger
	Params map[string]string
}

// Param returns a stage parameter or "".
func (e Env) Param(name string) string {
	return e.Params[name]
}

// Stage is one pipeline step.
type Stage struct {
	Name        string
	Description string
	Run         func(ctx context.Context, store storage.Storage, env Env) (Counters, error)
}

var registry = map[string]Stage{}

func register(s Stage) {
	if _, dup := registry[s.Name]; dup {
		panic("stage registered twice: " + s.Name)
	}
	registry[s.Name] = s
}

// Lookup returns a registered stage.
func Lookup(name string) (Stage, error) {
	s, ok := registry[name]
	if !ok {
		return Stage{}, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return s, nil
}

// All returns every registered stage ordered by name.
func All() []Stage {
	out := make([]Stage, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Canonical is the order the run command applies stages in. Sessions are
// summarized before trimming so missing points count scraper gaps only.
var Canonical = []string{
	"filter", "discretize", "dedup", "sessions", "stats",
	"trim", "profile", "global", "concurrency", "distribution",
}
