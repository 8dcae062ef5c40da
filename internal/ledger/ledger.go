// Package ledger records batch runs and their per-item outcomes in a
// SQLite database next to the artifacts. The ledger is an operator-facing
// audit trail: it answers which inputs a summary was computed from and
// which items were skipped or failed, across idempotent re-runs.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Outcome statuses recorded per work item.
const (
	StatusDone    = "done"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Recorder is the seam the batch drivers write through. A disabled ledger
// is a Nop recorder, so drivers never branch on configuration.
type Recorder interface {
	BeginRun(ctx context.Context, workflow, inputDigest string) (string, error)
	RecordOutcome(ctx context.Context, runID, item, status string, length int) error
	FinishRun(ctx context.Context, runID string, failures int) error
	Close() error
}

// Ledger is the SQLite-backed Recorder.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

var _ Recorder = (*Ledger)(nil)

// Open opens (and creates if needed) the ledger database at path and
// ensures required tables exist.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrapSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func bootstrapSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
  id           TEXT PRIMARY KEY,
  workflow     TEXT NOT NULL,
  input_digest TEXT,
  started_at   TEXT NOT NULL,
  finished_at  TEXT,
  failures     INTEGER
);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
  run_id      TEXT NOT NULL REFERENCES runs(id),
  item        TEXT NOT NULL,
  status      TEXT NOT NULL,
  length      INTEGER NOT NULL DEFAULT 0,
  recorded_at TEXT NOT NULL,
  PRIMARY KEY (run_id, item)
);`,
		`CREATE INDEX IF NOT EXISTS runs_workflow_started_at_idx ON runs(workflow, started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap ledger schema: %w", err)
		}
	}
	return nil
}

// BeginRun inserts a run header and returns its generated ID.
func (l *Ledger) BeginRun(ctx context.Context, workflow, inputDigest string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow, input_digest, started_at) VALUES (?, ?, ?, ?)`,
		id, workflow, inputDigest, l.now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordOutcome upserts one work item's outcome for the run.
func (l *Ledger) RecordOutcome(ctx context.Context, runID, item, status string, length int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, item, status, length, recorded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, item) DO UPDATE SET
		   status = excluded.status,
		   length = excluded.length,
		   recorded_at = excluded.recorded_at`,
		runID, item, status, length, l.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record outcome for %s: %w", item, err)
	}
	return nil
}

// FinishRun stamps the run as complete.
func (l *Ledger) FinishRun(ctx context.Context, runID string, failures int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, failures = ? WHERE id = ?`,
		l.now().UTC().Format(time.RFC3339), failures, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RunOutcome is one recorded work-item result, read back for inspection.
type RunOutcome struct {
	Item   string
	Status string
	Length int
}

// Outcomes returns the recorded outcomes of a run in item order.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]RunOutcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT item, status, length FROM outcomes WHERE run_id = ? ORDER BY item`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []RunOutcome
	for rows.Next() {
		var o RunOutcome
		if err := rows.Scan(&o.Item, &o.Status, &o.Length); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Nop is the Recorder used when the ledger is disabled.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) BeginRun(context.Context, string, string) (string, error) { return "", nil }

func (Nop) RecordOutcome(context.Context, string, string, string, int) error { return nil }

func (Nop) FinishRun(context.Context, string, int) error { return nil }

func (Nop) Close() error { return nil }
