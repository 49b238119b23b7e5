// Package convergence fits observed order of accuracy from (resolution,
// error) series and derives Richardson extrapolation and the Grid
// Convergence Index.
package convergence

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Safety factors for the GCI, per the standard three-grid / two-grid policy.
const (
	SafetyFactorThreeGrid = 1.25
	SafetyFactorTwoGrid   = 3.0
)

// ErrTooFewPoints marks a series with fewer than two usable points: no rate
// can be estimated at all, and fabricating one is worse than failing.
var ErrTooFewPoints = errors.New("convergence series needs at least 2 points")

// Point is one (grid spacing, error) observation.
type Point struct {
	H   float64 `json:"h"`
	Err float64 `json:"error"`
}

// Series is a set of observations for one case family. Analyze sorts it by
// strictly decreasing h; callers need not.
type Series []Point

// Result is the full convergence analysis for one series.
type Result struct {
	Rate        float64 `json:"observed_rate"` // slope of log(e) vs log(h)
	RSquared    float64 `json:"r_squared"`
	FitConstant float64 `json:"fit_constant"` // C in e = C*h^p

	// EOC holds the n-1 pairwise local orders, coarse-to-fine.
	EOC []float64 `json:"eoc"`

	// Richardson is the extrapolated zero-spacing error estimate from the
	// two finest grids; GCI bounds the discretization uncertainty there.
	Richardson   float64 `json:"richardson"`
	GCI          float64 `json:"gci"`
	SafetyFactor float64 `json:"safety_factor"`

	// LowConfidence is set for two-point series: the fit is exact by
	// construction and carries no statistical weight.
	LowConfidence bool `json:"low_confidence,omitempty"`

	// NonMonotonic is set when some finer grid has a larger error. Not an
	// error by itself; it signals pre-asymptotic behavior or a regression.
	NonMonotonic bool `json:"non_monotonic,omitempty"`

	// Points is the sorted series the analysis ran on.
	Points Series `json:"points"`
}

// Analyze fits the observed convergence order for the series.
//
// assumedOrder, when positive, is the theoretical order used for Richardson
// extrapolation and the GCI; otherwise the observed rate is used.
func Analyze(s Series, assumedOrder float64) (Result, error) {
	var res Result
	if len(s) < 2 {
		return res, fmt.Errorf("%w: have %d", ErrTooFewPoints, len(s))
	}

	pts := make(Series, len(s))
	copy(pts, s)
	sort.Slice(pts, func(i, j int) bool { return pts[i].H > pts[j].H })

	for i, p := range pts {
		if !(p.H > 0) || math.IsInf(p.H, 0) {
			return res, fmt.Errorf("invalid grid spacing %g in series", p.H)
		}
		if !(p.Err > 0) || math.IsInf(p.Err, 0) {
			return res, fmt.Errorf("non-positive or non-finite error %g at h=%g", p.Err, p.H)
		}
		if i > 0 && p.H == pts[i-1].H {
			return res, fmt.Errorf("duplicate grid spacing %g in series", p.H)
		}
	}

	logH := make([]float64, len(pts))
	logE := make([]float64, len(pts))
	for i, p := range pts {
		logH[i] = math.Log(p.H)
		logE[i] = math.Log(p.Err)
	}

	alpha, beta := stat.LinearRegression(logH, logE, nil, false)
	res.Rate = beta
	res.RSquared = stat.RSquared(logH, logE, nil, alpha, beta)
	res.FitConstant = math.Exp(alpha)
	res.LowConfidence = len(pts) < 3
	res.Points = pts

	// Pairwise local orders: a global fit hides order degradation at
	// specific resolutions, the EOC table does not.
	res.EOC = make([]float64, 0, len(pts)-1)
	for i := 0; i+1 < len(pts); i++ {
		eoc := math.Log(pts[i].Err/pts[i+1].Err) / math.Log(pts[i].H/pts[i+1].H)
		res.EOC = append(res.EOC, eoc)
		if pts[i+1].Err > pts[i].Err {
			res.NonMonotonic = true
		}
	}

	p := assumedOrder
	if p <= 0 {
		p = res.Rate
	}
	fine := pts[len(pts)-1]
	coarse := pts[len(pts)-2]
	r := coarse.H / fine.H
	rp := math.Pow(r, p)
	if rp != 1 {
		res.Richardson = (rp*fine.Err - coarse.Err) / (rp - 1)
	}

	res.SafetyFactor = SafetyFactorThreeGrid
	if len(pts) < 3 {
		res.SafetyFactor = SafetyFactorTwoGrid
	}
	if rp != 1 {
		res.GCI = res.SafetyFactor * math.Abs(fine.Err/coarse.Err-1) / (rp - 1)
	}

	return res, nil
}

// WithinTolerance reports whether the observed rate lies within the relative
// tolerance of the expected order (the ±20% rule uses tol = 0.2).
func (r Result) WithinTolerance(expected, tol float64) bool {
	if expected == 0 {
		return math.Abs(r.Rate) <= tol
	}
	return math.Abs(r.Rate-expected)/math.Abs(expected) <= tol
}
