//go:build unix

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldval/internal/field"
	"fieldval/internal/history"
	"fieldval/internal/verdict"
)

// execute runs the root command in-process with the given args.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// setupWorkspace builds a suite with one passing case whose fake solver
// copies a prepared snapshot archive into its working directory.
func setupWorkspace(t *testing.T) (suiteDir, buildDir, resultsDir string) {
	t.Helper()
	root := t.TempDir()
	suiteDir = filepath.Join(root, "tests")
	buildDir = filepath.Join(root, "build")
	resultsDir = filepath.Join(root, "results")

	caseDir := filepath.Join(suiteDir, "diffusion_n64")
	if err := os.MkdirAll(caseDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		t.Fatal(err)
	}

	n := 8
	computed := make([]float64, n)
	exact := make([]float64, n)
	for i := range computed {
		computed[i] = 1.0001
		exact[i] = 1.0
	}
	snapSrc := filepath.Join(root, "snap_0000.npz")
	err := field.WriteFile(snapSrc, field.FileSpec{
		Vars:    map[string][]float64{"C": computed, "C_exact": exact},
		Shape:   []int{n},
		Spacing: []float64{0.125},
	})
	if err != nil {
		t.Fatal(err)
	}

	script := "#!/bin/sh\ncp " + snapSrc + " snap_0000.npz\n"
	if err := os.WriteFile(filepath.Join(buildDir, "fake_solver"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, "input.txt"), []byte("dt = 0.01\n"), 0644); err != nil {
		t.Fatal(err)
	}

	manifest := `executable: fake_solver
input: input.txt
variable: C
reference: C_exact
l2_tolerance: 0.001
`
	if err := os.WriteFile(filepath.Join(caseDir, "case.yaml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	return suiteDir, buildDir, resultsDir
}

func TestRunAnalyzeHistoryEndToEnd(t *testing.T) {
	suiteDir, buildDir, resultsDir := setupWorkspace(t)

	out, err := execute(t, "run",
		"--suite-dir", suiteDir,
		"--build-dir", buildDir,
		"--results-dir", resultsDir,
		"--launcher=",
		"--timeout", "30s")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "diffusion_n64") || !strings.Contains(out, "PASS") {
		t.Errorf("run output missing verdict:\n%s", out)
	}
	if !strings.Contains(out, "1 tests: 1 passed") {
		t.Errorf("run output missing summary line:\n%s", out)
	}

	summary, err := verdict.ReadSummary(filepath.Join(resultsDir, verdict.SummaryFileName))
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	if !summary.AllPassed() {
		t.Errorf("summary = %+v", summary.Counts)
	}

	// Re-analysis without re-running.
	reportPath := filepath.Join(resultsDir, "report.md")
	out, err = execute(t, "analyze",
		"--suite-dir", suiteDir,
		"--results-dir", resultsDir,
		"--report", reportPath)
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}
	md, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(md), "# Validation Report") {
		t.Errorf("report content:\n%s", md)
	}

	// The run was recorded.
	out, err = execute(t, "history", "--db", filepath.Join(resultsDir, history.DefaultDBName))
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Pass") {
		t.Errorf("history output:\n%s", out)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	suiteDir, buildDir, resultsDir := setupWorkspace(t)

	out, err := execute(t, "run",
		"--suite-dir", suiteDir,
		"--build-dir", buildDir,
		"--results-dir", resultsDir,
		"--launcher=",
		"--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 case(s) planned") {
		t.Errorf("dry run output:\n%s", out)
	}
	if _, err := os.Stat(resultsDir); !os.IsNotExist(err) {
		t.Errorf("dry run created the results dir")
	}
}

func TestRunUnknownTestName(t *testing.T) {
	suiteDir, buildDir, resultsDir := setupWorkspace(t)

	_, err := execute(t, "run",
		"--suite-dir", suiteDir,
		"--build-dir", buildDir,
		"--results-dir", resultsDir,
		"--launcher=",
		"--tests", "no_such_case")
	if err == nil || !strings.Contains(err.Error(), "no_such_case") {
		t.Errorf("err = %v, want unknown test case error", err)
	}
}
