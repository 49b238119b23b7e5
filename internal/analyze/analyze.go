// Package analyze walks a results tree and turns raw simulation output into
// error metrics, convergence fits, conservation checks, and verdicts.
package analyze

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"fieldval/internal/conservation"
	"fieldval/internal/convergence"
	"fieldval/internal/field"
	"fieldval/internal/logging"
	"fieldval/internal/metrics"
	"fieldval/internal/runner"
	"fieldval/internal/suite"
	"fieldval/internal/verdict"
)

// MetricsFileName is the per-case serialized analysis record.
const MetricsFileName = "metrics.json"

// CaseAnalysis is everything computed for one case.
type CaseAnalysis struct {
	Case         *suite.Case
	Outcome      *runner.Outcome
	Metrics      *metrics.ErrorMetrics
	Conservation *conservation.Result
	Convergence  *convergence.Result

	// Err is a data error that blocked evaluation; it yields an ERROR
	// verdict and never aborts the other cases.
	Err error
}

// metricsFile is the metrics.json shape.
type metricsFile struct {
	Test          string                `json:"test"`
	ErrorMetrics  *metrics.ErrorMetrics `json:"error_metrics,omitempty"`
	Conservation  *conservation.Result  `json:"conservation,omitempty"`
	Convergence   *convergence.Result   `json:"convergence,omitempty"`
	AnalysisError string                `json:"analysis_error,omitempty"`
}

// Analyzer evaluates a results tree produced by the runner.
type Analyzer struct {
	resultsDir string
	log        *slog.Logger
}

// New returns an Analyzer over the given results directory.
func New(resultsDir string) *Analyzer {
	return &Analyzer{resultsDir: resultsDir, log: logging.New("analyze")}
}

// Run analyzes every case and returns verdicts in case order, plus the
// detailed per-case analyses.
func (a *Analyzer) Run(cases []*suite.Case) ([]verdict.Verdict, []*CaseAnalysis, error) {
	analyses := make([]*CaseAnalysis, len(cases))
	byName := make(map[string]*CaseAnalysis, len(cases))
	for i, c := range cases {
		ca := a.analyzeCase(c)
		analyses[i] = ca
		byName[c.Name] = ca
	}

	a.fitFamilies(cases, byName)

	verdicts := make([]verdict.Verdict, len(cases))
	for i, ca := range analyses {
		if err := a.writeMetrics(ca); err != nil {
			a.log.Warn("metrics.json not written", "case", ca.Case.Name, "error", err)
		}
		verdicts[i] = verdict.Evaluate(verdict.Inputs{
			Case:         ca.Case,
			Outcome:      ca.Outcome,
			Metrics:      ca.Metrics,
			Convergence:  ca.Convergence,
			Conservation: ca.Conservation,
			AnalysisErr:  ca.Err,
		})
	}
	return verdicts, analyses, nil
}

// analyzeCase computes outcome-independent metrics for one case. Every
// failure is captured in the analysis, never propagated as an abort.
func (a *Analyzer) analyzeCase(c *suite.Case) *CaseAnalysis {
	ca := &CaseAnalysis{Case: c}
	caseDir := filepath.Join(a.resultsDir, c.Name)

	outcome, err := runner.ReadOutcome(caseDir)
	if err != nil {
		ca.Err = fmt.Errorf("no outcome recorded: %w", err)
		return ca
	}
	ca.Outcome = outcome
	if !outcome.OK() {
		// Nothing to evaluate; the verdict comes from the outcome alone.
		return ca
	}

	needsFields := c.HasReference() || c.MassTolerance > 0
	if !needsFields {
		return ca
	}

	snaps, err := a.loadSnapshots(filepath.Join(caseDir, runner.RawDirName), c.Variable)
	if err != nil {
		ca.Err = err
		return ca
	}

	if c.HasReference() {
		final := snaps[len(snaps)-1]
		exact, err := field.Load(final.Source, c.Reference)
		if err != nil {
			ca.Err = err
			return ca
		}
		m, err := metrics.Compute(final, exact)
		if err != nil {
			ca.Err = err
			return ca
		}
		ca.Metrics = &m
		a.log.Info("error norms computed", "case", c.Name,
			"l1", m.L1, "l2", m.L2, "linf", m.Linf, "snapshot", filepath.Base(final.Source))
	}

	if c.MassTolerance > 0 {
		res, err := conservation.Check(snaps, c.MassTolerance)
		if err != nil {
			ca.Err = err
			return ca
		}
		ca.Conservation = &res
		a.log.Info("mass trace computed", "case", c.Name,
			"max_drift", res.MaxRelDrift, "drift_rate", res.DriftRate, "conserved", res.Conserved)
	}

	return ca
}

// loadSnapshots reads every snapshot archive under rawDir, ordered by time
// then step.
func (a *Analyzer) loadSnapshots(rawDir, variable string) ([]*field.Snapshot, error) {
	paths, err := filepath.Glob(filepath.Join(rawDir, "*.npz"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", rawDir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no field snapshots under %s", rawDir)
	}
	sort.Strings(paths)

	snaps := make([]*field.Snapshot, 0, len(paths))
	for _, p := range paths {
		s, err := field.Load(p, variable)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].Time != snaps[j].Time {
			return snaps[i].Time < snaps[j].Time
		}
		return snaps[i].Step < snaps[j].Step
	})
	return snaps, nil
}

// fitFamilies fits one convergence result per resolution family and attaches
// it to every member that contributed a point.
func (a *Analyzer) fitFamilies(cases []*suite.Case, byName map[string]*CaseAnalysis) {
	for family, members := range suite.Families(cases) {
		var series convergence.Series
		var contributors []*CaseAnalysis
		assumedOrder := 0.0

		for _, c := range members {
			ca := byName[c.Name]
			if ca == nil || ca.Err != nil || ca.Metrics == nil {
				continue
			}
			series = append(series, convergence.Point{H: c.H, Err: ca.Metrics.L2})
			contributors = append(contributors, ca)
			if c.HasExpectedOrder() {
				assumedOrder = *c.ExpectedOrder
			}
		}

		if len(series) < 2 {
			a.log.Warn("convergence family skipped", "family", family, "usable_points", len(series))
			continue
		}

		res, err := convergence.Analyze(series, assumedOrder)
		if err != nil {
			a.log.Warn("convergence fit failed", "family", family, "error", err)
			for _, ca := range contributors {
				if ca.Err == nil {
					ca.Err = fmt.Errorf("convergence fit for family %s: %w", family, err)
				}
			}
			continue
		}
		a.log.Info("convergence fitted", "family", family,
			"rate", res.Rate, "r_squared", res.RSquared, "points", len(series))
		for _, ca := range contributors {
			r := res
			ca.Convergence = &r
		}
	}
}

// writeMetrics serializes one case's analysis next to its outcome record.
func (a *Analyzer) writeMetrics(ca *CaseAnalysis) error {
	caseDir := filepath.Join(a.resultsDir, ca.Case.Name)
	if _, err := os.Stat(caseDir); err != nil {
		return err // no result dir, nothing to write into
	}

	mf := metricsFile{
		Test:         ca.Case.Name,
		ErrorMetrics: ca.Metrics,
		Conservation: ca.Conservation,
		Convergence:  ca.Convergence,
	}
	if ca.Err != nil {
		mf.AnalysisError = ca.Err.Error()
	}

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(caseDir, MetricsFileName), append(data, '\n'), 0644)
}
