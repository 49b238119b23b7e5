// Package history is an append-only SQLite record of validation runs. Each
// run stores its verdict counts and per-case statuses so accuracy drift
// across code changes stays visible.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldval/internal/verdict"

	_ "modernc.org/sqlite"
)

// DefaultDBName is the store file created under the results directory.
const DefaultDBName = "history.db"

const schemaVersionV1 = 1

const schemaV1 = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at  TEXT NOT NULL,
    total       INTEGER NOT NULL,
    passed      INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    errored     INTEGER NOT NULL,
    skipped     INTEGER NOT NULL,
    config_json TEXT
);

CREATE TABLE results (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id  INTEGER NOT NULL REFERENCES runs(id),
    test    TEXT NOT NULL,
    status  TEXT NOT NULL,
    reasons TEXT -- JSON array of failure reasons
);

CREATE INDEX idx_results_run ON results(run_id);
CREATE INDEX idx_results_test ON results(test);
`

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// Run is one recorded batch.
type Run struct {
	ID        int64
	StartedAt string
	Total     int
	Passed    int
	Failed    int
	Errored   int
	Skipped   int
	Config    map[string]string
}

// Result is one case's status within a recorded run.
type Result struct {
	ID      int64
	RunID   int64
	Test    string
	Status  verdict.Status
	Reasons []string
}

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history DB at path and runs migrations.
// Creates the parent directory if it does not exist.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		// Fresh database.
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends a summary as a new run and returns its id.
func (s *Store) RecordRun(sum *verdict.Summary) (int64, error) {
	if sum == nil {
		return 0, errors.New("summary is nil")
	}

	var configJSON []byte
	if len(sum.Config) > 0 {
		var err error
		configJSON, err = json.Marshal(sum.Config)
		if err != nil {
			return 0, fmt.Errorf("marshal config: %w", err)
		}
	}

	startedAt := sum.Timestamp
	if startedAt == "" {
		startedAt = nowUTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO runs(started_at, total, passed, failed, errored, skipped, config_json)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		startedAt, sum.Total,
		sum.Counts[verdict.StatusPass], sum.Counts[verdict.StatusFail],
		sum.Counts[verdict.StatusError], sum.Counts[verdict.StatusSkipped],
		string(configJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for _, v := range sum.Verdicts {
		var reasonsJSON []byte
		if len(v.Reasons) > 0 {
			reasonsJSON, err = json.Marshal(v.Reasons)
			if err != nil {
				return 0, fmt.Errorf("marshal reasons for %s: %w", v.TestID, err)
			}
		}
		_, err := tx.Exec(
			"INSERT INTO results(run_id, test, status, reasons) VALUES(?, ?, ?, ?)",
			runID, v.TestID, string(v.Status), string(reasonsJSON),
		)
		if err != nil {
			return 0, fmt.Errorf("insert result for %s: %w", v.TestID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	q := `SELECT id, started_at, total, passed, failed, errored, skipped, config_json
	      FROM runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var list []*Run
	for rows.Next() {
		var r Run
		var configJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Total,
			&r.Passed, &r.Failed, &r.Errored, &r.Skipped, &configJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if configJSON.Valid && configJSON.String != "" {
			if err := json.Unmarshal([]byte(configJSON.String), &r.Config); err != nil {
				return nil, fmt.Errorf("parse run %d config: %w", r.ID, err)
			}
		}
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return list, nil
}

// RunResults returns the per-case statuses of one run in insertion order.
func (s *Store) RunResults(runID int64) ([]*Result, error) {
	rows, err := s.db.Query(
		"SELECT id, run_id, test, status, reasons FROM results WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("run results: %w", err)
	}
	defer rows.Close()

	var list []*Result
	for rows.Next() {
		var r Result
		var status string
		var reasons sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.Test, &status, &reasons); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = verdict.Status(status)
		if reasons.Valid && reasons.String != "" {
			if err := json.Unmarshal([]byte(reasons.String), &r.Reasons); err != nil {
				return nil, fmt.Errorf("parse reasons for %s: %w", r.Test, err)
			}
		}
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run results: %w", err)
	}
	return list, nil
}

// StatusTrail returns a test's status across the most recent runs, newest
// first. Useful for spotting a case that started failing.
func (s *Store) StatusTrail(test string, limit int) ([]verdict.Status, error) {
	q := "SELECT status FROM results WHERE test = ? ORDER BY run_id DESC"
	args := []any{test}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("status trail: %w", err)
	}
	defer rows.Close()

	var trail []verdict.Status
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		trail = append(trail, verdict.Status(status))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("status trail: %w", err)
	}
	return trail, nil
}
