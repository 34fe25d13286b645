// Package runlog keeps a history of training runs and their loss curves in
// SQLite. Weights are never stored.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusRunning   = "running"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// RunInfo describes a run at creation. Config is stored as JSON.
type RunInfo struct {
	Dataset   string
	Tokenizer string
	VocabSize int
	NumParams int
	NumSteps  int
	Config    any
}

// Run is a stored run.
type Run struct {
	ID        int64
	Started   time.Time
	Finished  time.Time
	Status    string
	Dataset   string
	Tokenizer string
	VocabSize int
	NumParams int
	NumSteps  int
	Config    string
}

// StepRecord is one point of a loss curve.
type StepRecord struct {
	Step         int
	Loss         float64
	SmoothLoss   float64
	LearningRate float64
}

type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started REAL NOT NULL,
		finished REAL,
		status TEXT NOT NULL,
		dataset TEXT NOT NULL,
		tokenizer TEXT NOT NULL,
		vocab_size INTEGER NOT NULL,
		n_params INTEGER NOT NULL,
		num_steps INTEGER NOT NULL,
		config TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS steps(
		run_id INTEGER NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		loss REAL NOT NULL,
		smooth_loss REAL NOT NULL,
		lr REAL NOT NULL,
		PRIMARY KEY(run_id, step)
	)`,
}

// Open opens or creates the store at dsn, a file path or ":memory:".
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("runlog: init schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}

func fromUnixSeconds(ts float64) time.Time {
	return time.UnixMilli(int64(ts * 1000))
}

// CreateRun stores a new run in the running state and returns its id.
func (s *Store) CreateRun(ctx context.Context, info RunInfo) (int64, error) {
	cfg, err := json.Marshal(info.Config)
	if err != nil {
		return 0, fmt.Errorf("runlog: encode config: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(started, status, dataset, tokenizer, vocab_size, n_params, num_steps, config)
		 VALUES(?,?,?,?,?,?,?,?)`,
		unixSeconds(time.Now()), StatusRunning, info.Dataset, info.Tokenizer,
		info.VocabSize, info.NumParams, info.NumSteps, string(cfg))
	if err != nil {
		return 0, fmt.Errorf("runlog: create run: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) RecordStep(ctx context.Context, runID int64, rec StepRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO steps(run_id, step, loss, smooth_loss, lr) VALUES(?,?,?,?,?)`,
		runID, rec.Step, rec.Loss, rec.SmoothLoss, rec.LearningRate)
	if err != nil {
		return fmt.Errorf("runlog: record step %d: %w", rec.Step, err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished = ?, status = ? WHERE id = ?`,
		unixSeconds(time.Now()), status, runID)
	if err != nil {
		return fmt.Errorf("runlog: finish run %d: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("runlog: no run %d", runID)
	}
	return nil
}

// Steps returns the loss curve of a run in step order.
func (s *Store) Steps(ctx context.Context, runID int64) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, loss, smooth_loss, lr FROM steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StepRecord
	for rows.Next() {
		var r StepRecord
		if err := rows.Scan(&r.Step, &r.Loss, &r.SmoothLoss, &r.LearningRate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Runs returns the most recent runs first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started, finished, status, dataset, tokenizer, vocab_size, n_params, num_steps, config
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  float64
			finished sql.NullFloat64
			cfg      sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Status, &r.Dataset, &r.Tokenizer,
			&r.VocabSize, &r.NumParams, &r.NumSteps, &cfg); err != nil {
			return nil, err
		}
		r.Started = fromUnixSeconds(started)
		if finished.Valid {
			r.Finished = fromUnixSeconds(finished.Float64)
		}
		r.Config = cfg.String
		out = append(out, r)
	}
	return out, rows.Err()
}
