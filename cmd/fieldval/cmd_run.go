package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"fieldval/internal/analyze"
	"fieldval/internal/format"
	"fieldval/internal/history"
	"fieldval/internal/report"
	"fieldval/internal/runner"
	"fieldval/internal/suite"
	"fieldval/internal/verdict"
)

var runFlags struct {
	suiteDir   string
	buildDir   string
	resultsDir string
	launcher   string
	np         int
	timeout    time.Duration
	tests      string
	parallel   int
	clean      bool
	dryRun     bool
	noHistory  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the validation suite and judge the results",
	Long: `Discover cases under the suite directory, launch each solver binary
under the configured launcher with a per-case timeout, then analyze the
field output and print one verdict per case.

Exits zero only when every case passes.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.suiteDir, "suite-dir", "tests", "Directory containing case manifests")
	f.StringVar(&runFlags.buildDir, "build-dir", "build", "Directory containing case executables")
	f.StringVar(&runFlags.resultsDir, "results-dir", "results", "Root of the per-case result tree")
	f.StringVar(&runFlags.launcher, "launcher", "mpirun", "Parallel launcher; empty runs binaries directly")
	f.IntVar(&runFlags.np, "np", 1, "Default MPI rank count")
	f.DurationVar(&runFlags.timeout, "timeout", 10*time.Minute, "Default per-case timeout")
	f.StringVar(&runFlags.tests, "tests", "", "Comma-separated case names; empty runs all")
	f.IntVar(&runFlags.parallel, "parallel", 1, "Max simultaneous case launches")
	f.BoolVar(&runFlags.clean, "clean", false, "Recreate per-case result dirs before running")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "Print the launch plan without executing")
	f.BoolVar(&runFlags.noHistory, "no-history", false, "Skip recording the run in the history DB")
}

func runRun(cmd *cobra.Command, args []string) error {
	cases, err := suite.Discover(runFlags.suiteDir)
	if err != nil {
		return err
	}
	cases, err = suite.Filter(cases, runFlags.tests)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no cases found under %s", runFlags.suiteDir)
	}

	r := runner.New(runner.Config{
		BuildDir:   runFlags.buildDir,
		ResultsDir: runFlags.resultsDir,
		Launcher:   runFlags.launcher,
		Ranks:      runFlags.np,
		Timeout:    runFlags.timeout,
		Parallel:   runFlags.parallel,
		DryRun:     runFlags.dryRun,
		Clean:      runFlags.clean,
	})
	batch, err := r.Run(cmd.Context(), cases)
	if err != nil {
		return err
	}
	if runFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d case(s) planned\n", len(batch.Outcomes))
		return nil
	}

	verdicts, analyses, err := analyze.New(runFlags.resultsDir).Run(cases)
	if err != nil {
		return err
	}

	summary := verdict.Summarize(verdicts)
	summary.Config = runConfigRecord()
	if err := summary.Write(filepath.Join(runFlags.resultsDir, verdict.SummaryFileName)); err != nil {
		return err
	}
	if !runFlags.noHistory {
		if err := recordHistory(summary, filepath.Join(runFlags.resultsDir, history.DefaultDBName)); err != nil {
			fmt.Fprintf(os.Stderr, "history not recorded: %v\n", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.VerdictTable(verdicts, analyses, format.ASCII))
	if section := report.ConvergenceSection(analyses, format.ASCII); section != "" {
		fmt.Fprintln(out)
		fmt.Fprint(out, section)
	}
	fmt.Fprintln(out, report.SummaryLine(summary))

	if !summary.AllPassed() {
		return fmt.Errorf("%d of %d case(s) did not pass", summary.Total-summary.Counts[verdict.StatusPass], summary.Total)
	}
	return nil
}

func runConfigRecord() map[string]string {
	return map[string]string{
		"suite_dir": runFlags.suiteDir,
		"build_dir": runFlags.buildDir,
		"launcher":  runFlags.launcher,
		"np":        fmt.Sprintf("%d", runFlags.np),
		"timeout":   runFlags.timeout.String(),
		"parallel":  fmt.Sprintf("%d", runFlags.parallel),
	}
}

func recordHistory(summary *verdict.Summary, dbPath string) error {
	st, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	_, err = st.RecordRun(summary)
	return err
}
