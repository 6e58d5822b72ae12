package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/tursodatabase/go-libsql"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// LibSQLStore implements KVStore on a libsql database with one row per key
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens or creates the database at dbPath
func NewLibSQLStore(dbPath string, logger *log.Logger) (*LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if logger != nil {
		logger.Debug("Key-value store initialized", "path", dbPath)
	}
	return &LibSQLStore{db: db}, nil
}

func (s *LibSQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *LibSQLStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *LibSQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Stats returns the row count and the newest write time
func (s *LibSQLStore) Stats(ctx context.Context) (map[string]any, error) {
	var (
		count  int
		latest sql.NullInt64
	)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(updated_at) FROM kv`).Scan(&count, &latest); err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	stats := map[string]any{"keys": count}
	if latest.Valid {
		stats["last_write"] = time.UnixMilli(latest.Int64)
	}
	return stats, nil
}

func (s *LibSQLStore) Close() error {
	return s.db.Close()
}
