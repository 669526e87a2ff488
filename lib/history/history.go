// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pythonkr/pkdeploy/lib/sqlitepool"
)

// Kind distinguishes release runs, server swaps and publish
// operations.
type Kind string

const (
	KindRelease Kind = "release"
	KindSwap    Kind = "swap"
	KindPublish Kind = "publish"
)

// Status is the final state of a recorded operation or step.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is one persisted operation.
type Record struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Profile    string    `json:"profile"`
	Revision   string    `json:"revision"`
	Status     Status    `json:"status"`
	FailedStep string    `json:"failed_step,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Steps      []Step    `json:"steps,omitempty"`
}

// Step is the outcome of one step within a Record.
type Step struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

var migrations = []string{`
	CREATE TABLE operations (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		profile     TEXT NOT NULL,
		revision    TEXT NOT NULL,
		status      TEXT NOT NULL,
		failed_step TEXT,
		error       TEXT,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX idx_operations_started ON operations(started_at);

	CREATE TABLE steps (
		operation_id TEXT NOT NULL REFERENCES operations(id),
		position     INTEGER NOT NULL,
		name         TEXT NOT NULL,
		status       TEXT NOT NULL,
		duration     INTEGER NOT NULL,
		error        TEXT,
		PRIMARY KEY (operation_id, position)
	);
`}

// Store is an open history database.
type Store struct {
	pool *sqlitepool.Pool
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:       path,
		Migrations: migrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Add writes record and its steps in one transaction. Recording the
// same ID twice is an error.
func (s *Store) Add(ctx context.Context, record Record) (err error) {
	if record.ID == "" {
		return errors.New("history: record ID is required")
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `INSERT INTO operations
		(id, kind, profile, revision, status, failed_step, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			record.ID,
			string(record.Kind),
			record.Profile,
			record.Revision,
			string(record.Status),
			nullable(record.FailedStep),
			nullable(record.Error),
			record.StartedAt.UnixNano(),
			record.FinishedAt.UnixNano(),
		},
	})
	if err != nil {
		return fmt.Errorf("history: recording %s: %w", record.ID, err)
	}

	for position, step := range record.Steps {
		err = sqlitex.Execute(conn, `INSERT INTO steps
			(operation_id, position, name, status, duration, error)
			VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				record.ID,
				position,
				step.Name,
				string(step.Status),
				int64(step.Duration),
				nullable(step.Error),
			},
		})
		if err != nil {
			return fmt.Errorf("history: recording step %s of %s: %w", step.Name, record.ID, err)
		}
	}
	return nil
}

// Recent returns up to limit records, newest first, with their steps.
// A limit of zero or less returns every record.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer s.pool.Put(conn)

	if limit <= 0 {
		limit = -1
	}

	var records []Record
	index := make(map[string]int)
	err = sqlitex.Execute(conn, `SELECT id, kind, profile, revision, status,
			failed_step, error, started_at, finished_at
		FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`, &sqlitex.ExecOptions{
		Args: []any{limit},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record := Record{
				ID:         stmt.ColumnText(0),
				Kind:       Kind(stmt.ColumnText(1)),
				Profile:    stmt.ColumnText(2),
				Revision:   stmt.ColumnText(3),
				Status:     Status(stmt.ColumnText(4)),
				FailedStep: stmt.ColumnText(5),
				Error:      stmt.ColumnText(6),
				StartedAt:  time.Unix(0, stmt.ColumnInt64(7)).UTC(),
				FinishedAt: time.Unix(0, stmt.ColumnInt64(8)).UTC(),
			}
			index[record.ID] = len(records)
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: listing operations: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	err = sqlitex.Execute(conn, `SELECT s.operation_id, s.name, s.status, s.duration, s.error
		FROM steps s JOIN (
			SELECT id FROM operations ORDER BY started_at DESC, id DESC LIMIT ?
		) o ON o.id = s.operation_id
		ORDER BY s.operation_id, s.position`, &sqlitex.ExecOptions{
		Args: []any{limit},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			position, ok := index[stmt.ColumnText(0)]
			if !ok {
				return nil
			}
			records[position].Steps = append(records[position].Steps, Step{
				Name:     stmt.ColumnText(1),
				Status:   Status(stmt.ColumnText(2)),
				Duration: time.Duration(stmt.ColumnInt64(3)),
				Error:    stmt.ColumnText(4),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: listing steps: %w", err)
	}
	return records, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
