package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Per-case result directory layout.
const (
	RawDirName      = "raw"             // verbatim simulation outputs
	OutcomeFileName = "outcome.json"    // machine-readable Outcome
	ResultFileName  = "result.txt"      // terminal status token
	RuntimeFileName = "runtime.txt"     // elapsed seconds
	LogFileName     = "test_output.log" // captured stdout+stderr
	InputCopyName   = "input"           // copy of the input file for repro
)

// OutcomeKind classifies how a case execution ended.
type OutcomeKind string

const (
	// OutcomeCompleted: the process exited zero within its timeout.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeCrashed: nonzero exit or a fatal signal.
	OutcomeCrashed OutcomeKind = "crashed"
	// OutcomeTimedOut: the process group was killed at the deadline.
	OutcomeTimedOut OutcomeKind = "timed_out"
	// OutcomeSkipped: the case never launched (missing binary, unreadable
	// input, launch failure, dry run).
	OutcomeSkipped OutcomeKind = "skipped"
)

// Outcome records the execution of one case. Produced exactly once per case
// per run.
type Outcome struct {
	Test     string      `json:"test"`
	Kind     OutcomeKind `json:"kind"`
	ExitCode int         `json:"exit_code"`
	Signal   string      `json:"signal,omitempty"`
	Reason   string      `json:"reason,omitempty"`

	RuntimeSec float64 `json:"runtime_seconds"`
	StartedAt  string  `json:"started_at,omitempty"`
	FinishedAt string  `json:"finished_at,omitempty"`

	Command string `json:"command,omitempty"`
	Ranks   int    `json:"ranks,omitempty"`
}

// OK reports a clean zero-exit completion.
func (o *Outcome) OK() bool {
	return o.Kind == OutcomeCompleted && o.ExitCode == 0
}

// Token is the uppercase status token written to result.txt.
func (o *Outcome) Token() string { return strings.ToUpper(string(o.Kind)) }

// Describe is a one-line human summary for logs and verdict reasons.
func (o *Outcome) Describe() string {
	switch o.Kind {
	case OutcomeCompleted:
		return fmt.Sprintf("completed with exit code %d", o.ExitCode)
	case OutcomeCrashed:
		if o.Signal != "" {
			return fmt.Sprintf("crashed with signal %s (exit code %d)", o.Signal, o.ExitCode)
		}
		return fmt.Sprintf("exited with code %d", o.ExitCode)
	case OutcomeTimedOut:
		return fmt.Sprintf("timed out after %.1fs", o.RuntimeSec)
	case OutcomeSkipped:
		return "skipped: " + o.Reason
	}
	return string(o.Kind)
}

// WriteOutcome persists the outcome record into a case result directory.
func WriteOutcome(dir string, o *Outcome) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outcome for %s: %w", o.Test, err)
	}
	if err := os.WriteFile(filepath.Join(dir, OutcomeFileName), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write outcome for %s: %w", o.Test, err)
	}
	token := fmt.Sprintf("%s\n", o.Token())
	if err := os.WriteFile(filepath.Join(dir, ResultFileName), []byte(token), 0644); err != nil {
		return fmt.Errorf("write result token for %s: %w", o.Test, err)
	}
	runtime := fmt.Sprintf("%.3f\n", o.RuntimeSec)
	return os.WriteFile(filepath.Join(dir, RuntimeFileName), []byte(runtime), 0644)
}

// ReadOutcome loads the outcome record from a case result directory.
func ReadOutcome(dir string) (*Outcome, error) {
	data, err := os.ReadFile(filepath.Join(dir, OutcomeFileName))
	if err != nil {
		return nil, fmt.Errorf("read outcome in %s: %w", dir, err)
	}
	var o Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse outcome in %s: %w", dir, err)
	}
	return &o, nil
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
