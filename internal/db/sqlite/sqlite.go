// Package sqlite opens the embedded SQLite database used as a durable evidence backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/feedtag/internal/db"
)

var pragmas = []string{
	`PRAGMA journal_mode = WAL`,
	`PRAGMA busy_timeout = 5000`,
	`PRAGMA synchronous = NORMAL`,
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS evidence (
		tag       TEXT    NOT NULL,
		word      TEXT    NOT NULL,
		pos_occ   INTEGER NOT NULL DEFAULT 0,
		neg_occ   INTEGER NOT NULL DEFAULT 0,
		pos_docs  INTEGER NOT NULL DEFAULT 0,
		neg_docs  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (tag, word)
	)`,
	`CREATE TABLE IF NOT EXISTS totals (
		tag       TEXT    PRIMARY KEY,
		positive  INTEGER NOT NULL DEFAULT 0,
		negative  INTEGER NOT NULL DEFAULT 0
	)`,
}

// Store wraps a SQLite handle with the evidence schema applied.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path and migrates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	s := &Store{db: conn}
	for _, stmt := range append(append([]string{}, pragmas...), schema...) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, &db.Error{Op: db.OpExec, Err: fmt.Errorf("migrate: %w", err)}
		}
	}
	return s, nil
}

// DB exposes the underlying handle for repositories.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// WaitForReady returns once Ping succeeds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("timeout waiting for database: %w", err)
	}
	return nil
}

// WithTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpBegin, Err: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() {
	_ = s.db.Close()
}
