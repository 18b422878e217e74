// Package ledger keeps a history of pipeline runs in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"movie-pipeline/internal/model"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	sources TEXT,
	status TEXT,
	summary TEXT,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_stages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	stage TEXT,
	records_in INTEGER,
	rejected INTEGER,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	stage TEXT,
	error_message TEXT,
	created_at DATETIME
);
`

// Run is one row of the runs table
type Run struct {
	ID        string    `json:"id"`
	Sources   []string  `json:"sources"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunError is an error recorded during a run
type RunError struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger records runs, their cleaning stages and their errors.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunID returns a fresh run id.
func NewRunID() string {
	return uuid.NewString()
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun stores a new run in the running state.
func (l *Ledger) StartRun(ctx context.Context, runID string, sources []string) error {
	now := l.now()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, sources, status, summary, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, strings.Join(sources, ","), model.RunStatusRunning, "", now, now)
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", runID, err)
	}
	return nil
}

// RecordStage stores the counts of one cleaning stage.
func (l *Ledger) RecordStage(ctx context.Context, runID string, stage model.StageReport) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO run_stages (run_id, stage, records_in, rejected, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, stage.Stage, stage.In, stage.Rejected, l.now())
	return err
}

// RecordError stores an error raised by a step of the run.
func (l *Ledger) RecordError(ctx context.Context, runID, stage string, err error) error {
	if err == nil {
		return nil
	}
	_, e := l.db.ExecContext(ctx,
		`INSERT INTO run_errors (run_id, stage, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stage, err.Error(), l.now())
	return e
}

// FinishRun stores the final status and summary of a run.
func (l *Ledger) FinishRun(ctx context.Context, summary model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	res, err := l.db.ExecContext(ctx, `UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		summary.Status, string(data), l.now(), summary.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", summary.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, summary.RunID)
	}
	return nil
}

// GetRun returns the summary stored for a run. A run still in progress
// returns a summary holding only its id, status and sources.
func (l *Ledger) GetRun(ctx context.Context, runID string) (model.RunSummary, error) {
	var sources, status, data string
	var createdAt time.Time
	err := l.db.QueryRowContext(ctx, `SELECT sources, status, summary, created_at FROM runs WHERE id = ?`, runID).
		Scan(&sources, &status, &data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return model.RunSummary{}, err
	}

	if data == "" {
		return model.RunSummary{RunID: runID, Status: status, Sources: splitSources(sources), StartedAt: createdAt}, nil
	}
	var summary model.RunSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to decode summary of run %s: %w", runID, err)
	}
	return summary, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, sources, status, created_at, updated_at FROM runs ORDER BY created_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var sources string
		if err := rows.Scan(&r.ID, &sources, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Sources = splitSources(sources)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stages returns the stage reports of a run in recording order.
func (l *Ledger) Stages(ctx context.Context, runID string) ([]model.StageReport, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT stage, records_in, rejected FROM run_stages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []model.StageReport
	for rows.Next() {
		var s model.StageReport
		if err := rows.Scan(&s.Stage, &s.In, &s.Rejected); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// Errors returns the errors recorded for a run.
func (l *Ledger) Errors(ctx context.Context, runID string) ([]RunError, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT stage, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunError
	for rows.Next() {
		var e RunError
		if err := rows.Scan(&e.Stage, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func splitSources(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
