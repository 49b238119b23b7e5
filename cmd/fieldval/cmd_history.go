package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"fieldval/internal/display"
	"fieldval/internal/format"
	"fieldval/internal/history"
)

var historyFlags struct {
	dbPath string
	limit  int
	runID  int64
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded validation runs",
	Long: `Show recent runs from the history database, newest first. With --run,
show that run's per-case verdicts instead.`,
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.dbPath, "db", filepath.Join("results", history.DefaultDBName), "History DB path")
	f.IntVar(&historyFlags.limit, "limit", 20, "Max runs to list; 0 lists all")
	f.Int64Var(&historyFlags.runID, "run", 0, "Show one run's per-case results")
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := history.Open(historyFlags.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if historyFlags.runID != 0 {
		results, err := st.RunResults(historyFlags.runID)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("no results for run %d", historyFlags.runID)
		}
		tb := format.NewTable(format.ASCII)
		tb.Header("Test", "Status", "Reasons")
		tb.Columns(format.ColumnConfig{Number: 3, MaxWidth: 70})
		for _, r := range results {
			reasons := ""
			if len(r.Reasons) > 0 {
				reasons = r.Reasons[0]
			}
			tb.Row(r.Test, display.StatusWithCode(r.Status), reasons)
		}
		fmt.Fprintln(out, tb.String())
		return nil
	}

	runs, err := st.ListRuns(historyFlags.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	tb := format.NewTable(format.ASCII)
	tb.Header("Run", "Started", "Total", "Pass", "Fail", "Error", "Skip")
	tb.Columns(
		format.ColumnConfig{Number: 3, Align: format.AlignRight},
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
		format.ColumnConfig{Number: 5, Align: format.AlignRight},
		format.ColumnConfig{Number: 6, Align: format.AlignRight},
		format.ColumnConfig{Number: 7, Align: format.AlignRight},
	)
	for _, r := range runs {
		tb.Row(r.ID, r.StartedAt, r.Total, r.Passed, r.Failed, r.Errored, r.Skipped)
	}
	fmt.Fprintln(out, tb.String())
	return nil
}
