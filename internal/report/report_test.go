package report

import (
	"strings"
	"testing"

	"fieldval/internal/analyze"
	"fieldval/internal/conservation"
	"fieldval/internal/convergence"
	"fieldval/internal/format"
	"fieldval/internal/metrics"
	"fieldval/internal/runner"
	"fieldval/internal/suite"
	"fieldval/internal/verdict"
)

func completed(runtimeSec float64) *runner.Outcome {
	return &runner.Outcome{Kind: runner.OutcomeCompleted, RuntimeSec: runtimeSec}
}

func sampleRun() ([]verdict.Verdict, []*analyze.CaseAnalysis) {
	fit := &convergence.Result{
		Rate:         1.98,
		RSquared:     0.9995,
		EOC:          []float64{1.95, 2.01},
		Richardson:   1.1e-5,
		GCI:          2.3e-5,
		SafetyFactor: 1.25,
		Points: convergence.Series{
			{H: 0.1, Err: 4e-3},
			{H: 0.05, Err: 1.03e-3},
			{H: 0.025, Err: 2.56e-4},
		},
	}
	analyses := []*analyze.CaseAnalysis{
		{
			Case:         &suite.Case{Name: "adv_n10", Family: "advection", H: 0.1},
			Outcome:      completed(12.5),
			Metrics:      &metrics.ErrorMetrics{L2: 4e-3},
			Convergence:  fit,
			Conservation: &conservation.Result{Conserved: true, MaxRelDrift: 1e-9},
		},
		{
			Case:        &suite.Case{Name: "adv_n20", Family: "advection", H: 0.05},
			Outcome:     completed(31.0),
			Metrics:     &metrics.ErrorMetrics{L2: 1.03e-3},
			Convergence: fit,
		},
		{
			Case:        &suite.Case{Name: "adv_n40", Family: "advection", H: 0.025},
			Outcome:     completed(88.2),
			Metrics:     &metrics.ErrorMetrics{L2: 2.56e-4},
			Convergence: fit,
		},
		{
			Case:    &suite.Case{Name: "stokes_n64", Tier: 1},
			Outcome: &runner.Outcome{Kind: runner.OutcomeTimedOut, RuntimeSec: 600},
		},
	}
	verdicts := []verdict.Verdict{
		{TestID: "adv_n10", Status: verdict.StatusPass},
		{TestID: "adv_n20", Status: verdict.StatusPass},
		{TestID: "adv_n40", Status: verdict.StatusPass},
		{TestID: "stokes_n64", Status: verdict.StatusFail, Reasons: []string{"timed out after 600s"}},
	}
	return verdicts, analyses
}

func TestVerdictTable(t *testing.T) {
	verdicts, analyses := sampleRun()
	out := VerdictTable(verdicts, analyses, format.ASCII)

	for _, want := range []string{
		"adv_n10", "stokes_n64", "PASS", "FAIL",
		"Smoke", "Nightly", // tier names
		"4.0000e-03", "1.98",
		"12s", "10m 0s", // runtimes
		"timed out after 600s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in table:\n%s", want, out)
		}
	}
}

func TestVerdictTableDetailFallsBackToOutcome(t *testing.T) {
	// A passing case with no reasons or flags still shows how it ended.
	verdicts := []verdict.Verdict{{TestID: "adv_n10", Status: verdict.StatusPass}}
	analyses := []*analyze.CaseAnalysis{{
		Case:    &suite.Case{Name: "adv_n10"},
		Outcome: completed(2.0),
	}}
	out := VerdictTable(verdicts, analyses, format.ASCII)
	if !strings.Contains(out, "Completed") {
		t.Errorf("detail column missing outcome name:\n%s", out)
	}
}

func TestSummaryLine(t *testing.T) {
	verdicts, _ := sampleRun()
	line := SummaryLine(verdict.Summarize(verdicts))
	if line != "4 tests: 3 passed, 1 failed, 0 errors, 0 skipped" {
		t.Errorf("line = %q", line)
	}
}

func TestConvergenceSection(t *testing.T) {
	_, analyses := sampleRun()
	out := ConvergenceSection(analyses, format.ASCII)

	for _, want := range []string{
		"Family advection (adv_n10 → adv_n20 → adv_n40)",
		"rate 1.980", "adv_n10", "adv_n40", "1.95", "2.01",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in section:\n%s", want, out)
		}
	}
	// The case outside any family must not appear.
	if strings.Contains(out, "stokes_n64") {
		t.Errorf("non-family case leaked into convergence section:\n%s", out)
	}
}

func TestConvergenceSectionEmptyWithoutFamilies(t *testing.T) {
	analyses := []*analyze.CaseAnalysis{
		{Case: &suite.Case{Name: "lone"}},
	}
	if out := ConvergenceSection(analyses, format.ASCII); out != "" {
		t.Errorf("expected empty section, got:\n%s", out)
	}
}

func TestMarkdownReport(t *testing.T) {
	verdicts, analyses := sampleRun()
	s := verdict.Summarize(verdicts)
	s.Config = map[string]string{"np": "4"}
	out := Markdown(s, analyses)

	for _, want := range []string{
		"# Validation Report",
		"## Configuration",
		"- np: `4`",
		"## Verdicts",
		"| Test",
		"## Convergence Studies",
		"## Failures",
		"### stokes_n64 — Failed",
		"- timed out after 600s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in markdown:\n%s", want, out)
		}
	}
}
