// Package metrics computes discretization error norms between a computed
// scalar field and a reference solution on the same grid.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fieldval/internal/field"
)

// epsZero is the threshold below which a reference norm counts as zero and
// the relative norm falls back to its unnormalized form.
const epsZero = 1e-14

// ErrShapeMismatch marks computed/reference fields on different grids.
var ErrShapeMismatch = errors.New("field shape mismatch")

// ErrNonFinite marks NaN or Inf samples in either input field. These are
// rejected outright: skipping them could mask solver divergence.
var ErrNonFinite = errors.New("non-finite sample")

// ErrorMetrics holds the error norms for one (computed, reference) pair.
// L1 and L2 are spacing-weighted integral norms, relative to the reference
// unless Unnormalized is set; Linf is the max-ratio norm. All values are
// finite and non-negative.
type ErrorMetrics struct {
	L1        float64 `json:"l1"`
	L2        float64 `json:"l2"`
	Linf      float64 `json:"linf"`
	MeanAbs   float64 `json:"mean_abs"`
	MedianAbs float64 `json:"median_abs"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`

	// Unnormalized is set when the reference norm is numerically zero and
	// the norms are absolute rather than relative.
	Unnormalized bool `json:"unnormalized,omitempty"`
}

// Validate rejects metrics that are negative or non-finite.
func (m ErrorMetrics) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"L1", m.L1}, {"L2", m.L2}, {"Linf", m.Linf},
		{"mean_abs", m.MeanAbs}, {"median_abs", m.MedianAbs},
		{"p95", m.P95}, {"p99", m.P99},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) || v.val < 0 {
			return fmt.Errorf("invalid metric %s = %g", v.name, v.val)
		}
	}
	return nil
}

// Compute evaluates all error norms for computed against exact. The fields
// must share shape and spacing; any non-finite sample is a hard error.
func Compute(computed, exact *field.Snapshot) (ErrorMetrics, error) {
	var m ErrorMetrics

	if err := computed.Validate(); err != nil {
		return m, err
	}
	if err := exact.Validate(); err != nil {
		return m, err
	}
	if !computed.SameGrid(exact) {
		return m, fmt.Errorf("%w: computed %v spacing %v vs reference %v spacing %v",
			ErrShapeMismatch, computed.Shape, computed.Spacing, exact.Shape, exact.Spacing)
	}

	n := computed.Len()
	dv := computed.CellVolume()

	var (
		sumAbsDiff  float64
		sumSqDiff   float64
		sumAbsExact float64
		sumSqExact  float64
		maxDiff     float64
		maxExact    float64
	)
	absDiff := make([]float64, n)

	for i := 0; i < n; i++ {
		c, e := computed.Values[i], exact.Values[i]
		if !isFinite(c) {
			return m, fmt.Errorf("%w at index %d of %s", ErrNonFinite, i, computed.Source)
		}
		if !isFinite(e) {
			return m, fmt.Errorf("%w at index %d of %s", ErrNonFinite, i, exact.Source)
		}

		d := math.Abs(c - e)
		ae := math.Abs(e)
		absDiff[i] = d

		sumAbsDiff += d
		sumSqDiff += d * d
		sumAbsExact += ae
		sumSqExact += e * e
		if d > maxDiff {
			maxDiff = d
		}
		if ae > maxExact {
			maxExact = ae
		}
	}

	// Relative norms, falling back to absolute when the reference is zero.
	if sumAbsExact*dv < epsZero {
		m.Unnormalized = true
		m.L1 = sumAbsDiff * dv / float64(n)
		m.L2 = math.Sqrt(sumSqDiff*dv) / math.Sqrt(float64(n))
		m.Linf = maxDiff
	} else {
		m.L1 = (sumAbsDiff * dv) / (sumAbsExact * dv)
		m.L2 = math.Sqrt(sumSqDiff*dv) / math.Sqrt(sumSqExact*dv)
		if maxExact < epsZero {
			m.Linf = maxDiff
		} else {
			m.Linf = maxDiff / maxExact
		}
	}

	m.MeanAbs = sumAbsDiff / float64(n)
	sort.Float64s(absDiff)
	m.MedianAbs = stat.Quantile(0.5, stat.Empirical, absDiff, nil)
	m.P95 = stat.Quantile(0.95, stat.Empirical, absDiff, nil)
	m.P99 = stat.Quantile(0.99, stat.Empirical, absDiff, nil)

	if err := m.Validate(); err != nil {
		return ErrorMetrics{}, err
	}
	return m, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
