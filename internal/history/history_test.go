package history

import (
	"path/filepath"
	"testing"

	"fieldval/internal/verdict"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DefaultDBName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSummary() *verdict.Summary {
	return verdict.Summarize([]verdict.Verdict{
		{TestID: "diffusion_n64", Status: verdict.StatusPass},
		{TestID: "advection_n32", Status: verdict.StatusFail, Reasons: []string{"L2 error 0.02 exceeds tolerance 0.01"}},
		{TestID: "stokes_n128", Status: verdict.StatusError, Reasons: []string{"dataset not found"}},
	})
}

func TestRecordAndListRuns(t *testing.T) {
	s := openTemp(t)

	sum := sampleSummary()
	sum.Config = map[string]string{"np": "4", "build_dir": "/tmp/build"}
	runID, err := s.RecordRun(sum)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if runID == 0 {
		t.Fatal("run id is zero")
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.Total != 3 || r.Passed != 1 || r.Failed != 1 || r.Errored != 1 || r.Skipped != 0 {
		t.Errorf("counts = %+v", r)
	}
	if r.Config["np"] != "4" {
		t.Errorf("config = %v", r.Config)
	}
}

func TestRunResultsPreserveOrderAndReasons(t *testing.T) {
	s := openTemp(t)

	runID, err := s.RecordRun(sampleSummary())
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	results, err := s.RunResults(runID)
	if err != nil {
		t.Fatalf("RunResults: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Test != "diffusion_n64" || results[1].Test != "advection_n32" {
		t.Errorf("order lost: %s, %s", results[0].Test, results[1].Test)
	}
	if results[1].Status != verdict.StatusFail {
		t.Errorf("status = %s", results[1].Status)
	}
	if len(results[1].Reasons) != 1 || results[1].Reasons[0] != "L2 error 0.02 exceeds tolerance 0.01" {
		t.Errorf("reasons = %v", results[1].Reasons)
	}
	if results[0].Reasons != nil {
		t.Errorf("passing case has reasons: %v", results[0].Reasons)
	}
}

func TestReasonsWithSeparatorsRoundTrip(t *testing.T) {
	s := openTemp(t)

	// Reasons carrying list-like punctuation must come back verbatim, as a
	// single entry each.
	reasons := []string{
		"mass not conserved: max relative drift 0.02 exceeds tolerance 1e-06; drift rate -0.005/time",
		`L2 error 0.02 exceeds tolerance 0.01 (variable "C"; grid 64x64)`,
	}
	runID, err := s.RecordRun(verdict.Summarize([]verdict.Verdict{
		{TestID: "leaky_n64", Status: verdict.StatusFail, Reasons: reasons},
	}))
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	results, err := s.RunResults(runID)
	if err != nil {
		t.Fatalf("RunResults: %v", err)
	}
	if len(results[0].Reasons) != 2 {
		t.Fatalf("got %d reasons, want 2: %q", len(results[0].Reasons), results[0].Reasons)
	}
	for i := range reasons {
		if results[0].Reasons[i] != reasons[i] {
			t.Errorf("reason %d = %q, want %q", i, results[0].Reasons[i], reasons[i])
		}
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTemp(t)

	for range 3 {
		if _, err := s.RecordRun(sampleSummary()); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want limit 2", len(runs))
	}
	if runs[0].ID <= runs[1].ID {
		t.Errorf("not newest first: %d then %d", runs[0].ID, runs[1].ID)
	}
}

func TestStatusTrail(t *testing.T) {
	s := openTemp(t)

	record := func(status verdict.Status) {
		t.Helper()
		_, err := s.RecordRun(verdict.Summarize([]verdict.Verdict{
			{TestID: "diffusion_n64", Status: status},
		}))
		if err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}
	record(verdict.StatusPass)
	record(verdict.StatusPass)
	record(verdict.StatusFail)

	trail, err := s.StatusTrail("diffusion_n64", 0)
	if err != nil {
		t.Fatalf("StatusTrail: %v", err)
	}
	want := []verdict.Status{verdict.StatusFail, verdict.StatusPass, verdict.StatusPass}
	if len(trail) != 3 {
		t.Fatalf("trail = %v", trail)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Errorf("trail[%d] = %s, want %s", i, trail[i], want[i])
		}
	}
}

func TestReopenExistingDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBName)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.RecordRun(sampleSummary()); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	runs, err := s2.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs after reopen, want 1", len(runs))
	}
}
