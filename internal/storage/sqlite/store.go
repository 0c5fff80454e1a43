// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smartlearnhub/slh/internal/storage"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store persists the session keys in a kv table.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		cleanPath := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
		dsn = cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Load(ctx context.Context) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE key IN (?, ?)`, storage.KeyToken, storage.KeyUser)
	if err != nil {
		return storage.Record{}, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	var rec storage.Record
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return storage.Record{}, fmt.Errorf("scan session: %w", err)
		}
		switch key {
		case storage.KeyToken:
			rec.Token = value
		case storage.KeyUser:
			rec.User = value
		}
	}
	if err := rows.Err(); err != nil {
		return storage.Record{}, fmt.Errorf("iterate session: %w", err)
	}
	if !rec.Valid() {
		return storage.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

// Save replaces both keys in one transaction.
func (s *Store) Save(ctx context.Context, rec storage.Record) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !rec.Valid() {
		return storage.ErrIncomplete
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, kv := range [][2]string{{storage.KeyToken, rec.Token}, {storage.KeyUser, rec.User}} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("write %s: %w", kv[0], err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM kv WHERE key IN (?, ?)`, storage.KeyToken, storage.KeyUser)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
