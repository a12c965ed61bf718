package trim

import (
	"errors"
	"fmt"
	"math"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
)

// ErrUnknownPolicy is returned by ParsePolicy.
var ErrUnknownPolicy = errors.New("unknown trim policy")

// Policy decides which observations are outliers against their channel's
// statistics.
type Policy interface {
	Name() string

	// Eligible reports whether a channel/platform has a defined z-score.
	// Channels with zero spread are exempt.
	Eligible(s model.PlatformStats) bool

	// Outlier reports whether a viewer count should be removed.
	Outlier(p model.Platform, v int64, s model.PlatformStats) bool
}

// logZ returns the log-space z-score of v. Non-positive counts have no log
// and never count as outliers.
func logZ(v int64, s model.PlatformStats) (float64, bool) {
	if v <= 0 || s.LnStd <= 0 {
		return 0, false
	}
	return (math.Log(float64(v)) - s.LnAvg) / s.LnStd, true
}

// SymmetricLogSigma removes counts whose log-space z-score exceeds K in
// either direction.
type SymmetricLogSigma struct {
	K float64
}

func (SymmetricLogSigma) Name() string { return "log-sigma" }

func (SymmetricLogSigma) Eligible(s model.PlatformStats) bool { return s.LnStd > 0 }

func (t SymmetricLogSigma) Outlier(_ model.Platform, v int64, s model.PlatformStats) bool {
	z, ok := logZ(v, s)
	return ok && math.Abs(z) > t.K
}

// LowerLogSigma removes only under-performing counts: z < -K. Spikes above
// the baseline are kept.
type LowerLogSigma struct {
	K float64
}

func (LowerLogSigma) Name() string { return "log-sigma-lower" }

func (LowerLogSigma) Eligible(s model.PlatformStats) bool { return s.LnStd > 0 }

func (t LowerLogSigma) Outlier(_ model.Platform, v int64, s model.PlatformStats) bool {
	z, ok := logZ(v, s)
	return ok && z < -t.K
}

// LinearSigma removes counts farther than K standard deviations from the
// arithmetic mean, with K chosen per platform.
type LinearSigma struct {
	K [2]float64
}

func (LinearSigma) Name() string { return "linear-sigma" }

func (LinearSigma) Eligible(s model.PlatformStats) bool { return s.Std > 0 }

func (t LinearSigma) Outlier(p model.Platform, v int64, s model.PlatformStats) bool {
	return math.Abs(float64(v)-s.Avg) > t.K[p]*s.Std
}

// Thresholds carries the configurable k values.
type Thresholds struct {
	Symmetric float64
	Lower     float64
	YouTube   float64
	Twitch    float64
}

// ParsePolicy builds a policy from its name.
func ParsePolicy(name string, k Thresholds) (Policy, error) {
	switch name {
	case "log-sigma", "symmetric":
		return SymmetricLogSigma{K: k.Symmetric}, nil
	case "log-sigma-lower", "lower":
		return LowerLogSigma{K: k.Lower}, nil
	case "linear-sigma", "linear":
		return LinearSigma{K: [2]float64{model.YouTube: k.YouTube, model.Twitch: k.Twitch}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}
