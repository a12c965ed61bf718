package stats

import "math"

// Moments accumulates the first two raw moments of a series.
type Moments struct {
	N     int64
	Sum   float64
	SumSq float64
}

// Add folds one value in.
func (m *Moments) Add(v float64) {
	m.N++
	m.Sum += v
	m.SumSq += v * v
}

// Mean returns AVG(v), or 0 for an empty series.
func (m Moments) Mean() float64 {
	if m.N == 0 {
		return 0
	}
	return m.Sum / float64(m.N)
}

// Variance returns the population variance AVG(v^2) - AVG(v)^2. Cancellation
// can push the difference slightly below zero; it is clamped.
func (m Moments) Variance() float64 {
	if m.N == 0 {
		return 0
	}
	mean := m.Mean()
	v := m.SumSq/float64(m.N) - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// Std returns the population standard deviation.
func (m Moments) Std() float64 {
	return math.Sqrt(m.Variance())
}
