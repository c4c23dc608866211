// Package journal persists run lifecycle data to SQLite so runs can be
// inspected after the fact. Planning never reads the journal; it is an
// audit surface only.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one row in the runs table.
type RunRecord struct {
	RunID     string
	Agent     string
	Status    string
	Error     string
	CreatedAt int64
	UpdatedAt int64
}

// EventRecord is one executed-action event for a run.
type EventRecord struct {
	EventID  int64
	RunID    string
	Action   string
	Outcome  string
	Attempts int
	Error    string
	At       int64 // Unix timestamp of the invocation
}

// Journal provides database operations for run auditing.
type Journal struct {
	db *sql.DB
}

// Open creates a journal at dbPath and initializes the schema.
func Open(ctx context.Context, dbPath string) (*Journal, error) {
	// WAL mode allows readers to inspect runs while a run is writing.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id     TEXT PRIMARY KEY,
		agent      TEXT NOT NULL,
		status     TEXT NOT NULL,
		error      TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id   TEXT NOT NULL,
		action   TEXT NOT NULL,
		outcome  TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error    TEXT NOT NULL DEFAULT '',
		at       INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON run_events(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// CreateRun registers a new run.
func (j *Journal) CreateRun(ctx context.Context, runID, agent, status string) error {
	now := time.Now().Unix()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, agent, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		runID, agent, status, now, now)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", runID, err)
	}
	return nil
}

// UpdateStatus records a run's status transition, with the terminal error
// message when there is one.
func (j *Journal) UpdateStatus(ctx context.Context, runID, status, errMsg string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, updated_at = ?
		WHERE run_id = ?`,
		status, errMsg, time.Now().Unix(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// AppendEvent records one executed action for a run.
func (j *Journal) AppendEvent(ctx context.Context, e EventRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, action, outcome, attempts, error, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Action, e.Outcome, e.Attempts, e.Error, e.At)
	if err != nil {
		return fmt.Errorf("failed to append event for run %s: %w", e.RunID, err)
	}
	return nil
}

// Run returns one run row.
func (j *Journal) Run(ctx context.Context, runID string) (RunRecord, error) {
	var r RunRecord
	err := j.db.QueryRowContext(ctx, `
		SELECT run_id, agent, status, error, created_at, updated_at
		FROM runs WHERE run_id = ?`, runID).
		Scan(&r.RunID, &r.Agent, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return RunRecord{}, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	return r, nil
}

// Runs returns all runs, most recently updated first.
func (j *Journal) Runs(ctx context.Context) ([]RunRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, agent, status, error, created_at, updated_at
		FROM runs ORDER BY updated_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Agent, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Events returns a run's events in execution order.
func (j *Journal) Events(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT event_id, run_id, action, outcome, attempts, error, at
		FROM run_events WHERE run_id = ? ORDER BY event_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.EventID, &e.RunID, &e.Action, &e.Outcome, &e.Attempts, &e.Error, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
