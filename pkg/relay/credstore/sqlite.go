// Copyright 2025-2026 Daniel Villamizar

// Package credstore persists session credentials in SQLite.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dvillamizar/warelay/pkg/relay"
)

// Store implements relay.CredentialStore on a SQLite database. The
// credential row is the only durable shared resource of the relay; writes
// are last-writer-wins upserts keyed by session id.
type Store struct {
	db *sql.DB
}

var _ relay.CredentialStore = (*Store)(nil)

// New opens (creating if needed) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps the credential upserts from blocking the protocol
	// library's own tables in the same file.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS credentials (
		session_id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Get returns the persisted credential blob, or relay.ErrNoCredentials
// when none has been stored for the session id.
func (s *Store) Get(ctx context.Context, sessionID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM credentials WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relay.ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return data, nil
}

// Upsert atomically inserts or replaces the credential blob for the
// session id.
func (s *Store) Upsert(ctx context.Context, sessionID string, creds []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (session_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		sessionID, creds, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert credentials: %w", err)
	}
	return nil
}

// Delete removes the credential row. Deleting an absent row is not an
// error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// DB exposes the underlying handle so the protocol library can share the
// same database file for its own session tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
