// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports, logs, and docs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import (
	"fmt"
	"strings"

	"fieldval/internal/runner"
	"fieldval/internal/verdict"
)

// --- Verdict Statuses ---

var statuses = map[verdict.Status]string{
	verdict.StatusPass:    "Passed",
	verdict.StatusFail:    "Failed",
	verdict.StatusError:   "Analysis Error",
	verdict.StatusSkipped: "Skipped",
}

// Status returns the human-readable name for a verdict status.
// Unknown codes are returned as-is.
func Status(s verdict.Status) string {
	if name, ok := statuses[s]; ok {
		return name
	}
	return string(s)
}

// StatusWithCode returns "Passed (PASS)" format for dual-audience contexts.
func StatusWithCode(s verdict.Status) string {
	if name, ok := statuses[s]; ok {
		return name + " (" + string(s) + ")"
	}
	return string(s)
}

// StatusMark returns a one-character symbol for terminal summaries.
func StatusMark(s verdict.Status) string {
	switch s {
	case verdict.StatusPass:
		return "✓"
	case verdict.StatusFail:
		return "✗"
	case verdict.StatusError:
		return "!"
	case verdict.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}

// --- Execution Outcomes ---

var outcomes = map[runner.OutcomeKind]string{
	runner.OutcomeCompleted: "Completed",
	runner.OutcomeCrashed:   "Crashed",
	runner.OutcomeTimedOut:  "Timed Out",
	runner.OutcomeSkipped:   "Not Launched",
}

// Outcome returns the human-readable name for an execution outcome kind.
func Outcome(k runner.OutcomeKind) string {
	if name, ok := outcomes[k]; ok {
		return name
	}
	return string(k)
}

// --- Suite Tiers ---

var tiers = map[int]string{
	0: "Smoke",
	1: "Nightly",
	2: "Weekly",
	3: "Release",
}

// Tier returns the human-readable name for a suite tier.
// Tiers beyond the named set fall back to "Tier N".
func Tier(n int) string {
	if name, ok := tiers[n]; ok {
		return name
	}
	return fmt.Sprintf("Tier %d", n)
}

// --- Families ---

// FamilyPath converts a resolution family's case names into a refinement
// path. ["adv_n16", "adv_n32"] -> "adv_n16 -> adv_n32"
func FamilyPath(names []string) string {
	return strings.Join(names, " → ")
}
