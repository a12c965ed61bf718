package profile

import (
	"errors"
	"fmt"
	"math"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stats"
)

var (
	// ErrUnknownStrategy is returned by ParseStrategy.
	ErrUnknownStrategy = errors.New("unknown diff strategy")

	// ErrMixedStrategies is returned when profiles computed with different
	// strategies are aggregated together.
	ErrMixedStrategies = errors.New("time profiles use different diff strategies")
)

// DiffStrategy turns a slot's observations and the channel baseline into a
// relative performance percentage. The two strategies are not numerically
// interchangeable; one run uses one of them throughout.
type DiffStrategy interface {
	Name() string
	Diff(slot stats.Series, base model.PlatformStats) float64
}

// ArithmeticRatio is (slot_mean - avg) / avg * 100.
type ArithmeticRatio struct{}

func (ArithmeticRatio) Name() string { return "arithmetic" }

func (ArithmeticRatio) Diff(slot stats.Series, base model.PlatformStats) float64 {
	if slot.Linear.N == 0 || base.Avg <= 0 {
		return 0
	}
	return (slot.Linear.Mean() - base.Avg) / base.Avg * 100
}

// LogGeometricRatio is (exp(slot_ln_mean - ln_avg) - 1) * 100, the ratio of
// the slot's geometric mean to the channel's.
type LogGeometricRatio struct{}

func (LogGeometricRatio) Name() string { return "geometric" }

func (LogGeometricRatio) Diff(slot stats.Series, base model.PlatformStats) float64 {
	if base.Avg <= 0 || slot.Linear.Mean() <= 0 || slot.Log.N == 0 {
		return 0
	}
	return (math.Exp(slot.Log.Mean()-base.LnAvg) - 1) * 100
}

// ParseStrategy returns the strategy with the given name.
func ParseStrategy(name string) (DiffStrategy, error) {
	switch name {
	case "arithmetic":
		return ArithmeticRatio{}, nil
	case "geometric":
		return LogGeometricRatio{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}
