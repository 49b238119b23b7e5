package display

import (
	"testing"

	"fieldval/internal/runner"
	"fieldval/internal/verdict"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		code verdict.Status
		want string
	}{
		{verdict.StatusPass, "Passed"},
		{verdict.StatusFail, "Failed"},
		{verdict.StatusError, "Analysis Error"},
		{verdict.StatusSkipped, "Skipped"},
		{verdict.Status("WEIRD"), "WEIRD"},
	}
	for _, tc := range cases {
		if got := Status(tc.code); got != tc.want {
			t.Errorf("Status(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestStatusWithCode(t *testing.T) {
	if got := StatusWithCode(verdict.StatusPass); got != "Passed (PASS)" {
		t.Errorf("got %q", got)
	}
	if got := StatusWithCode(verdict.Status("WEIRD")); got != "WEIRD" {
		t.Errorf("got %q", got)
	}
}

func TestStatusMark(t *testing.T) {
	cases := []struct {
		code verdict.Status
		want string
	}{
		{verdict.StatusPass, "✓"},
		{verdict.StatusFail, "✗"},
		{verdict.StatusError, "!"},
		{verdict.StatusSkipped, "-"},
		{verdict.Status("WEIRD"), "?"},
	}
	for _, tc := range cases {
		if got := StatusMark(tc.code); got != tc.want {
			t.Errorf("StatusMark(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		kind runner.OutcomeKind
		want string
	}{
		{runner.OutcomeCompleted, "Completed"},
		{runner.OutcomeCrashed, "Crashed"},
		{runner.OutcomeTimedOut, "Timed Out"},
		{runner.OutcomeSkipped, "Not Launched"},
		{runner.OutcomeKind("odd"), "odd"},
	}
	for _, tc := range cases {
		if got := Outcome(tc.kind); got != tc.want {
			t.Errorf("Outcome(%q) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestTier(t *testing.T) {
	if got := Tier(0); got != "Smoke" {
		t.Errorf("Tier(0) = %q", got)
	}
	if got := Tier(2); got != "Weekly" {
		t.Errorf("Tier(2) = %q", got)
	}
	if got := Tier(9); got != "Tier 9" {
		t.Errorf("Tier(9) = %q", got)
	}
}

func TestFamilyPath(t *testing.T) {
	got := FamilyPath([]string{"adv_n16", "adv_n32", "adv_n64"})
	want := "adv_n16 → adv_n32 → adv_n64"
	if got != want {
		t.Errorf("FamilyPath = %q, want %q", got, want)
	}
}
