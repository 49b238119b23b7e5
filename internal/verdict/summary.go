package verdict

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SummaryFileName is the machine-readable batch summary consumed by the
// report generator.
const SummaryFileName = "test_summary.json"

// Summary aggregates the verdicts of one run. Every case appears exactly
// once; there is no silent omission.
type Summary struct {
	Timestamp string            `json:"timestamp"`
	Total     int               `json:"total"`
	Counts    map[Status]int    `json:"counts"`
	Verdicts  []Verdict         `json:"verdicts"`
	Config    map[string]string `json:"config,omitempty"`
}

// Summarize builds a Summary preserving verdict order.
func Summarize(verdicts []Verdict) *Summary {
	s := &Summary{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Total:     len(verdicts),
		Counts:    make(map[Status]int),
		Verdicts:  verdicts,
	}
	for _, v := range verdicts {
		s.Counts[v.Status]++
	}
	return s
}

// AllPassed reports whether no case failed, errored, or was skipped.
func (s *Summary) AllPassed() bool {
	return s.Counts[StatusFail] == 0 && s.Counts[StatusError] == 0 && s.Counts[StatusSkipped] == 0
}

// Write persists the summary as JSON.
func (s *Summary) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// ReadSummary loads a previously written summary.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summary %s: %w", path, err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse summary %s: %w", path, err)
	}
	return &s, nil
}
