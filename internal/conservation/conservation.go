// Package conservation tracks the integral of a scalar field over time and
// reports drift against an initial-mass baseline.
package conservation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fieldval/internal/field"
)

// epsZero is the threshold below which the initial mass counts as zero and
// drift falls back to absolute changes.
const epsZero = 1e-14

// ErrNoSnapshots marks a check invoked with an empty sequence.
var ErrNoSnapshots = errors.New("no snapshots to check")

// ErrNonFinite marks NaN or Inf samples in a snapshot.
var ErrNonFinite = errors.New("non-finite sample")

// Result summarizes mass conservation across a snapshot sequence.
type Result struct {
	Times  []float64 `json:"times"`
	Masses []float64 `json:"masses"`

	InitialMass float64 `json:"initial_mass"`
	FinalMass   float64 `json:"final_mass"`

	// MaxRelDrift is max_i |m_i - m_0| / |m_0| (absolute when Unnormalized),
	// attained at snapshot index MaxDriftIndex.
	MaxRelDrift   float64 `json:"max_relative_drift"`
	MaxDriftIndex int     `json:"max_drift_index"`

	// DriftRate is the slope of drift vs time. A steady leak shows a rate
	// comparable to total drift / elapsed time; a one-time jump does not.
	DriftRate float64 `json:"drift_rate"`
	DriftR2   float64 `json:"drift_r_squared"`

	Conserved    bool    `json:"is_conserved"`
	Unnormalized bool    `json:"unnormalized,omitempty"`
	Tolerance    float64 `json:"tolerance"`
}

// TotalMass integrates a snapshot: spacing-weighted sum over all samples.
func TotalMass(s *field.Snapshot) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	dv := s.CellVolume()
	sum := 0.0
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w at index %d of %s", ErrNonFinite, i, s.Source)
		}
		sum += v
	}
	return sum * dv, nil
}

// Check computes the mass trace for a snapshot sequence and tests drift
// against the tolerance. Snapshots are ordered by time internally.
func Check(snaps []*field.Snapshot, tolerance float64) (Result, error) {
	var res Result
	if len(snaps) == 0 {
		return res, ErrNoSnapshots
	}

	ordered := make([]*field.Snapshot, len(snaps))
	copy(ordered, snaps)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time < ordered[j].Time })

	res.Times = make([]float64, len(ordered))
	res.Masses = make([]float64, len(ordered))
	for i, s := range ordered {
		m, err := TotalMass(s)
		if err != nil {
			return Result{}, err
		}
		res.Times[i] = s.Time
		res.Masses[i] = m
	}

	m0 := res.Masses[0]
	res.InitialMass = m0
	res.FinalMass = res.Masses[len(res.Masses)-1]
	res.Tolerance = tolerance
	res.Unnormalized = math.Abs(m0) < epsZero

	drift := make([]float64, len(res.Masses))
	for i, m := range res.Masses {
		d := m - m0
		if !res.Unnormalized {
			d /= m0
		}
		drift[i] = d
		if ad := math.Abs(d); ad > res.MaxRelDrift {
			res.MaxRelDrift = ad
			res.MaxDriftIndex = i
		}
	}
	res.Conserved = res.MaxRelDrift <= tolerance

	if len(drift) >= 2 {
		alpha, beta := stat.LinearRegression(res.Times, drift, nil, false)
		res.DriftRate = beta
		if stat.Variance(drift, nil) > 0 {
			res.DriftR2 = stat.RSquared(res.Times, drift, nil, alpha, beta)
		} else {
			res.DriftR2 = 1 // flat trace, exact fit
		}
	}

	return res, nil
}
