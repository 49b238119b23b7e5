// Package report renders verdicts and convergence analyses for humans:
// terminal tables after a run, markdown summaries for CI artifacts.
package report

import (
	"fmt"
	"sort"
	"strings"

	"fieldval/internal/analyze"
	"fieldval/internal/display"
	"fieldval/internal/format"
	"fieldval/internal/verdict"
)

// VerdictTable renders one row per case: tier, status, norms, rate, drift,
// runtime, and the first failure reason (or the outcome name when there is
// nothing to report).
func VerdictTable(verdicts []verdict.Verdict, analyses []*analyze.CaseAnalysis, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("Test", "Tier", "Status", "L2 Error", "Rate", "Mass Drift", "Runtime", "Detail")
	tb.Columns(
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
		format.ColumnConfig{Number: 5, Align: format.AlignRight},
		format.ColumnConfig{Number: 6, Align: format.AlignRight},
		format.ColumnConfig{Number: 7, Align: format.AlignRight},
		format.ColumnConfig{Number: 8, MaxWidth: 60},
	)

	for i, v := range verdicts {
		tier, l2, rate, drift, runtime := "-", "-", "-", "-", "-"
		detail := ""
		if i < len(analyses) && analyses[i] != nil {
			ca := analyses[i]
			tier = display.Tier(ca.Case.Tier)
			if ca.Outcome != nil {
				runtime = format.FmtSeconds(ca.Outcome.RuntimeSec)
				detail = display.Outcome(ca.Outcome.Kind)
			}
			if ca.Metrics != nil {
				l2 = format.FmtNorm(ca.Metrics.L2)
			}
			if ca.Convergence != nil {
				rate = format.FmtRate(ca.Convergence.Rate)
			}
			if ca.Conservation != nil {
				drift = format.FmtNorm(ca.Conservation.MaxRelDrift)
			}
		}
		if len(v.Reasons) > 0 {
			detail = v.Reasons[0]
		} else if len(v.Flags) > 0 {
			detail = v.Flags[0]
		}
		tb.Row(v.TestID, tier, display.StatusMark(v.Status)+" "+string(v.Status), l2, rate, drift, runtime, detail)
	}
	return tb.String()
}

// SummaryLine is the one-line batch result for the terminal.
func SummaryLine(s *verdict.Summary) string {
	return fmt.Sprintf("%d tests: %d passed, %d failed, %d errors, %d skipped",
		s.Total,
		s.Counts[verdict.StatusPass], s.Counts[verdict.StatusFail],
		s.Counts[verdict.StatusError], s.Counts[verdict.StatusSkipped])
}

// familyOrder returns family names sorted, with each family's analyses
// ordered coarse to fine.
func familyOrder(analyses []*analyze.CaseAnalysis) ([]string, map[string][]*analyze.CaseAnalysis) {
	byFamily := make(map[string][]*analyze.CaseAnalysis)
	for _, ca := range analyses {
		if ca == nil || ca.Case.Family == "" || ca.Convergence == nil {
			continue
		}
		byFamily[ca.Case.Family] = append(byFamily[ca.Case.Family], ca)
	}
	var names []string
	for name, members := range byFamily {
		sort.Slice(members, func(i, j int) bool { return members[i].Case.H > members[j].Case.H })
		names = append(names, name)
	}
	sort.Strings(names)
	return names, byFamily
}

// ConvergenceTable renders one family's refinement study: per-grid errors
// with pairwise orders, then the global fit line.
func ConvergenceTable(family string, members []*analyze.CaseAnalysis, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("Test", "h", "L2 Error", "EOC")
	tb.Columns(
		format.ColumnConfig{Number: 2, Align: format.AlignRight},
		format.ColumnConfig{Number: 3, Align: format.AlignRight},
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
	)

	res := members[0].Convergence
	for i, ca := range members {
		eoc := "-"
		if i > 0 && i-1 < len(res.EOC) {
			eoc = format.FmtRate(res.EOC[i-1])
		}
		l2 := "-"
		if ca.Metrics != nil {
			l2 = format.FmtNorm(ca.Metrics.L2)
		}
		tb.Row(ca.Case.Name, fmt.Sprintf("%g", ca.Case.H), l2, eoc)
	}

	names := make([]string, len(members))
	for i, ca := range members {
		names[i] = ca.Case.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Family %s (%s): rate %.3f (R² %.4f), Richardson %s, GCI %s (Fs %.2f)\n",
		family, display.FamilyPath(names), res.Rate, res.RSquared,
		format.FmtNorm(res.Richardson), format.FmtNorm(res.GCI), res.SafetyFactor)
	b.WriteString(tb.String())
	b.WriteString("\n")
	return b.String()
}

// ConvergenceSection renders every family's table, sorted by family name.
// Empty when no family produced a fit.
func ConvergenceSection(analyses []*analyze.CaseAnalysis, mode format.Mode) string {
	names, byFamily := familyOrder(analyses)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(ConvergenceTable(name, byFamily[name], mode))
	}
	return b.String()
}

// Markdown renders the full run report as a markdown document.
func Markdown(s *verdict.Summary, analyses []*analyze.CaseAnalysis) string {
	var b strings.Builder
	b.WriteString("# Validation Report\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", s.Timestamp)
	fmt.Fprintf(&b, "**%s**\n\n", SummaryLine(s))

	if len(s.Config) > 0 {
		b.WriteString("## Configuration\n\n")
		keys := make([]string, 0, len(s.Config))
		for k := range s.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: `%s`\n", k, s.Config[k])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Verdicts\n\n")
	b.WriteString(VerdictTable(s.Verdicts, analyses, format.Markdown))
	b.WriteString("\n\n")

	if section := ConvergenceSection(analyses, format.Markdown); section != "" {
		b.WriteString("## Convergence Studies\n\n")
		b.WriteString(section)
		b.WriteString("\n")
	}

	failing := make([]verdict.Verdict, 0)
	for _, v := range s.Verdicts {
		if v.Status == verdict.StatusFail || v.Status == verdict.StatusError {
			failing = append(failing, v)
		}
	}
	if len(failing) > 0 {
		b.WriteString("## Failures\n\n")
		for _, v := range failing {
			fmt.Fprintf(&b, "### %s — %s\n\n", v.TestID, display.Status(v.Status))
			for _, r := range v.Reasons {
				fmt.Fprintf(&b, "- %s\n", r)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
