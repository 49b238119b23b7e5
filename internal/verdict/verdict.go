// Package verdict turns per-case execution outcomes and analysis results
// into deterministic pass/fail verdicts and a batch summary.
package verdict

import (
	"fmt"

	"fieldval/internal/conservation"
	"fieldval/internal/convergence"
	"fieldval/internal/metrics"
	"fieldval/internal/runner"
	"fieldval/internal/suite"
)

// RateTolerance is the relative band around the expected convergence order:
// observed rate outside ±20% fails the case.
const RateTolerance = 0.2

// Status is the terminal state of one case.
type Status string

const (
	// StatusPass: ran and met every applicable rule.
	StatusPass Status = "PASS"
	// StatusFail: ran but violated a tolerance or crashed/timed out.
	StatusFail Status = "FAIL"
	// StatusError: could not be evaluated (data error, missing output).
	StatusError Status = "ERROR"
	// StatusSkipped: never launched.
	StatusSkipped Status = "SKIPPED"
)

// Verdict is the final judgment for one case. Created once per case per run
// and never mutated; a re-run produces a new Verdict.
type Verdict struct {
	TestID  string   `json:"test_id"`
	Status  Status   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
	// Flags carry non-fatal diagnostics: low-confidence fits, unnormalized
	// norms, non-monotonic error decay.
	Flags []string `json:"flags,omitempty"`
}

// Inputs collects everything known about one case. Nil fields mean the
// corresponding rule does not apply.
type Inputs struct {
	Case         *suite.Case
	Outcome      *runner.Outcome
	Metrics      *metrics.ErrorMetrics
	Convergence  *convergence.Result
	Conservation *conservation.Result

	// AnalysisErr is a data error that prevented evaluation: malformed or
	// missing field file, shape mismatch, non-finite samples.
	AnalysisErr error
}

// Evaluate applies the decision policy in order: execution outcome, L2
// tolerance, convergence rate band, mass conservation. Rules without inputs
// are skipped, not failed.
func Evaluate(in Inputs) Verdict {
	v := Verdict{TestID: in.Case.Name}

	if in.Outcome == nil {
		v.Status = StatusError
		v.Reasons = append(v.Reasons, "no execution outcome recorded")
		return v
	}
	if in.Outcome.Kind == runner.OutcomeSkipped {
		v.Status = StatusSkipped
		v.Reasons = append(v.Reasons, in.Outcome.Describe())
		return v
	}
	if !in.Outcome.OK() {
		v.Status = StatusFail
		v.Reasons = append(v.Reasons, in.Outcome.Describe())
		return v
	}

	if in.AnalysisErr != nil {
		v.Status = StatusError
		v.Reasons = append(v.Reasons, fmt.Sprintf("analysis failed: %v", in.AnalysisErr))
		return v
	}

	if in.Metrics != nil {
		if in.Metrics.Unnormalized {
			v.Flags = append(v.Flags, "error norms unnormalized (zero reference norm)")
		}
		if tol := in.Case.L2Tolerance; tol > 0 && in.Metrics.L2 > tol {
			v.Reasons = append(v.Reasons,
				fmt.Sprintf("L2 error %.6g exceeds tolerance %.6g", in.Metrics.L2, tol))
		}
	}

	if in.Convergence != nil {
		if in.Convergence.LowConfidence {
			v.Flags = append(v.Flags, "convergence fit from fewer than 3 grids (low confidence)")
		}
		if in.Convergence.NonMonotonic {
			v.Flags = append(v.Flags, "non-monotonic error decay across resolutions")
		}
		if in.Case.HasExpectedOrder() {
			expected := *in.Case.ExpectedOrder
			if !in.Convergence.WithinTolerance(expected, RateTolerance) {
				v.Reasons = append(v.Reasons,
					fmt.Sprintf("observed convergence rate %.3f outside ±%.0f%% of expected order %.2f",
						in.Convergence.Rate, RateTolerance*100, expected))
			}
		}
	}

	if in.Conservation != nil {
		if in.Conservation.Unnormalized {
			v.Flags = append(v.Flags, "mass drift unnormalized (zero initial mass)")
		}
		if !in.Conservation.Conserved {
			v.Reasons = append(v.Reasons,
				fmt.Sprintf("mass not conserved: max relative drift %.6g exceeds tolerance %.6g (drift rate %.3g/time)",
					in.Conservation.MaxRelDrift, in.Conservation.Tolerance, in.Conservation.DriftRate))
		}
	}

	if len(v.Reasons) > 0 {
		v.Status = StatusFail
	} else {
		v.Status = StatusPass
	}
	return v
}
