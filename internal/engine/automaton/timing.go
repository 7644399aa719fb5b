package automaton

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ErrInvalidTiming is returned when an edge's timing distribution is unusable.
var ErrInvalidTiming = errors.New("invalid timing model")

const symmetryTolerance = 1e-9

// maxDelay is the largest time.Duration as a float64.
const maxDelay = float64(math.MaxInt64)

// Timing is the multivariate normal guard learned for an edge. The first
// dimension is the inter-arrival time expressed in Unit.
type Timing struct {
	Mu   []float64
	Cov  [][]float64
	Unit time.Duration
}

// NewTiming checks the distribution parameters and builds a Timing.
func NewTiming(mu []float64, cov [][]float64, unit time.Duration) (Timing, error) {
	if len(mu) == 0 {
		return Timing{}, fmt.Errorf("%w: empty mean vector", ErrInvalidTiming)
	}
	if len(cov) != len(mu) {
		return Timing{}, fmt.Errorf("%w: covariance has %d rows, mean has %d dimensions", ErrInvalidTiming, len(cov), len(mu))
	}
	for i, row := range cov {
		if len(row) != len(mu) {
			return Timing{}, fmt.Errorf("%w: covariance row %d has %d columns, want %d", ErrInvalidTiming, i, len(row), len(mu))
		}
	}
	for i := range mu {
		if math.IsNaN(mu[i]) || math.IsInf(mu[i], 0) {
			return Timing{}, fmt.Errorf("%w: mean[%d] is not finite", ErrInvalidTiming, i)
		}
		if cov[i][i] < 0 || math.IsNaN(cov[i][i]) || math.IsInf(cov[i][i], 0) {
			return Timing{}, fmt.Errorf("%w: variance[%d] = %v", ErrInvalidTiming, i, cov[i][i])
		}
		for j := 0; j < i; j++ {
			if math.Abs(cov[i][j]-cov[j][i]) > symmetryTolerance*math.Max(1, math.Abs(cov[i][j])) {
				return Timing{}, fmt.Errorf("%w: covariance is not symmetric at (%d,%d)", ErrInvalidTiming, i, j)
			}
		}
	}
	if unit <= 0 {
		return Timing{}, fmt.Errorf("%w: non-positive time unit", ErrInvalidTiming)
	}
	if mu[0]*float64(unit) >= maxDelay {
		return Timing{}, fmt.Errorf("%w: mean inter-arrival %v %v does not fit a duration", ErrInvalidTiming, mu[0], unit)
	}
	return Timing{Mu: clone(mu), Cov: cloneMatrix(cov), Unit: unit}, nil
}

// Delay draws one inter-arrival time from the marginal of the first
// dimension. Exactly one normal variate is consumed per call; negative
// draws are clamped to zero and draws beyond the range of time.Duration
// saturate.
func (t Timing) Delay(rng *rand.Rand) time.Duration {
	z := rng.NormFloat64()
	v := t.Mu[0] + math.Sqrt(t.Cov[0][0])*z
	if v <= 0 {
		return 0
	}
	d := v * float64(t.Unit)
	if d >= maxDelay {
		return math.MaxInt64
	}
	return time.Duration(d)
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = clone(row)
	}
	return out
}
