package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver
)

//go:embed schema.sql
var ddl string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore keeps payloads in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open DB: %w", err)
	}

	// One connection keeps an in-memory database alive and shared, and
	// serializes writers on a file database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	if err := configureSQLite(ctx, db, path); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring SQLite: %w", err)
	}
	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func configureSQLite(ctx context.Context, db *sql.DB, path string) error {
	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmed); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmed, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM departure_cache
		 WHERE stop_id = ? AND stop_post = ? AND line = ? AND service_date = ?`,
		key.StopID, key.StopPost, key.Line, key.Date,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return payload, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key Key, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO departure_cache (stop_id, stop_post, line, service_date, payload, written_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (stop_id, stop_post, line, service_date)
		 DO UPDATE SET payload = excluded.payload, written_at = excluded.written_at`,
		key.StopID, key.StopPost, key.Line, key.Date, payload,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM departure_cache WHERE service_date < ?`,
		before.Format(DateLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return int(n), nil
}

// DB exposes the handle for health checks.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
