package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fieldval/internal/analyze"
	"fieldval/internal/format"
	"fieldval/internal/report"
	"fieldval/internal/suite"
	"fieldval/internal/verdict"
)

var analyzeFlags struct {
	suiteDir   string
	resultsDir string
	tests      string
	reportPath string
	tableMode  string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Re-analyze an existing results tree without re-running solvers",
	Long: `Read the outcomes and field snapshots a previous run left under the
results directory, recompute metrics, convergence, and conservation, and
print fresh verdicts. Useful after changing tolerances or reference data.

Exits nonzero when any case fails or errors.`,
	RunE: runAnalyzeCmd,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.suiteDir, "suite-dir", "tests", "Directory containing case manifests")
	f.StringVar(&analyzeFlags.resultsDir, "results-dir", "results", "Root of the per-case result tree")
	f.StringVar(&analyzeFlags.tests, "tests", "", "Comma-separated case names; empty analyzes all")
	f.StringVar(&analyzeFlags.reportPath, "report", "", "Write a markdown report to this path")
	f.StringVar(&analyzeFlags.tableMode, "format", "ascii", "Table format: ascii or markdown")
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	mode := format.ASCII
	switch analyzeFlags.tableMode {
	case "ascii":
	case "markdown":
		mode = format.Markdown
	default:
		return fmt.Errorf("unknown table format %q (available: ascii, markdown)", analyzeFlags.tableMode)
	}

	cases, err := suite.Discover(analyzeFlags.suiteDir)
	if err != nil {
		return err
	}
	cases, err = suite.Filter(cases, analyzeFlags.tests)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no cases found under %s", analyzeFlags.suiteDir)
	}

	verdicts, analyses, err := analyze.New(analyzeFlags.resultsDir).Run(cases)
	if err != nil {
		return err
	}

	summary := verdict.Summarize(verdicts)
	if err := summary.Write(filepath.Join(analyzeFlags.resultsDir, verdict.SummaryFileName)); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.VerdictTable(verdicts, analyses, mode))
	if section := report.ConvergenceSection(analyses, mode); section != "" {
		fmt.Fprintln(out)
		fmt.Fprint(out, section)
	}
	fmt.Fprintln(out, report.SummaryLine(summary))

	if analyzeFlags.reportPath != "" {
		md := report.Markdown(summary, analyses)
		if err := os.WriteFile(analyzeFlags.reportPath, []byte(md), 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(out, "Report written to: %s\n", analyzeFlags.reportPath)
	}

	if n := summary.Counts[verdict.StatusFail] + summary.Counts[verdict.StatusError]; n > 0 {
		return fmt.Errorf("%d case(s) failed or errored", n)
	}
	return nil
}
