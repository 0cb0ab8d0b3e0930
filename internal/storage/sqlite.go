package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// OpenSQLite opens the local database at dbPath.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLiteStateStore keeps user documents in the local SQLite database.
type SQLiteStateStore struct {
	sqlStateStore
}

// NewSQLiteStateStore creates the user_states table on db if needed.
func NewSQLiteStateStore(ctx context.Context, db *sql.DB) (*SQLiteStateStore, error) {
	s := &SQLiteStateStore{sqlStateStore{db: db}}
	if err := s.createTable(ctx); err != nil {
		return nil, err
	}
	slog.Info("state store ready", "component", "storage", "backend", "sqlite")
	return s, nil
}
