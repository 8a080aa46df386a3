// Package postgres provides a Postgres-backed task store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crawlkit/crawlkit/internal/crawler"
	"github.com/crawlkit/crawlkit/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// TaskStore persists tasks and per-URL results in Postgres.
// It assumes a table schema like:
// CREATE TABLE tasks (
//
//	id TEXT PRIMARY KEY,
//	status TEXT NOT NULL,
//	urls JSONB NOT NULL,
//	config JSONB NOT NULL,
//	submitted_at TIMESTAMPTZ NOT NULL,
//	started_at TIMESTAMPTZ,
//	finished_at TIMESTAMPTZ,
//	error_text TEXT NOT NULL DEFAULT '',
//	pages_succeeded INT NOT NULL DEFAULT 0,
//	pages_failed INT NOT NULL DEFAULT 0,
//	retries INT NOT NULL DEFAULT 0
//
// );
//
// CREATE TABLE task_results (
//
//	task_id TEXT NOT NULL REFERENCES tasks (id),
//	url TEXT NOT NULL,
//	payload JSONB NOT NULL,
//	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//
// );
type TaskStore struct {
	pool dbPool
}

// New creates a Postgres-backed TaskStore using the provided config.
func New(ctx context.Context, cfg Config) (*TaskStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &TaskStore{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*TaskStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &TaskStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *TaskStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateTask inserts a new task row.
func (s *TaskStore) CreateTask(ctx context.Context, task crawler.Task) error {
	urlsJSON, err := json.Marshal(task.URLs)
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}
	configJSON, err := json.Marshal(task.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO tasks (id, status, urls, config, submitted_at, error_text, pages_succeeded, pages_failed, retries)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID,
		string(task.Status),
		urlsJSON,
		configJSON,
		task.Submitted,
		task.ErrorText,
		task.Counters.PagesSucceeded,
		task.Counters.PagesFailed,
		task.Counters.Retries,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTaskStatus transitions a task and merges counters. Started/finished
// timestamps are derived from the status transition.
func (s *TaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID string,
	status crawler.TaskStatus,
	errText string,
	counters crawler.TaskCounters,
) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE tasks SET
	status = $2,
	error_text = $3,
	pages_succeeded = $4,
	pages_failed = $5,
	retries = $6,
	started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('completed', 'failed', 'canceled') THEN now() ELSE finished_at END
WHERE id = $1`,
		taskID,
		string(status),
		errText,
		counters.PagesSucceeded,
		counters.PagesFailed,
		counters.Retries,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RecordResult appends a page result row for the task.
func (s *TaskStore) RecordResult(ctx context.Context, taskID string, result crawler.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO task_results (task_id, url, payload, created_at)
VALUES ($1, $2, $3, now())`,
		taskID,
		result.URL,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetTask returns the task row by ID.
func (s *TaskStore) GetTask(ctx context.Context, taskID string) (crawler.Task, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, status, urls, config, submitted_at, started_at, finished_at, error_text,
	pages_succeeded, pages_failed, retries
FROM tasks WHERE id = $1`, taskID)

	var (
		task       crawler.Task
		status     string
		urlsJSON   []byte
		configJSON []byte
	)
	err := row.Scan(
		&task.ID,
		&status,
		&urlsJSON,
		&configJSON,
		&task.Submitted,
		&task.Started,
		&task.Finished,
		&task.ErrorText,
		&task.Counters.PagesSucceeded,
		&task.Counters.PagesFailed,
		&task.Counters.Retries,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.Task{}, store.ErrNotFound
		}
		return crawler.Task{}, fmt.Errorf("select task: %w", err)
	}
	task.Status = crawler.TaskStatus(status)
	if err := json.Unmarshal(urlsJSON, &task.URLs); err != nil {
		return crawler.Task{}, fmt.Errorf("unmarshal urls: %w", err)
	}
	if err := json.Unmarshal(configJSON, &task.Config); err != nil {
		return crawler.Task{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return task, nil
}

// ListResults returns the recorded results for the task in insertion order.
func (s *TaskStore) ListResults(ctx context.Context, taskID string) ([]crawler.Result, error) {
	rows, err := s.pool.Query(ctx, `
SELECT payload FROM task_results WHERE task_id = $1 ORDER BY created_at, url`, taskID)
	if err != nil {
		return nil, fmt.Errorf("select results: %w", err)
	}
	defer rows.Close()

	var results []crawler.Result
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var result crawler.Result
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
