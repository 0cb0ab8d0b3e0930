package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marcboeker/go-duckdb"
)

// DuckStateStore keeps user documents in a DuckDB database file.
type DuckStateStore struct {
	sqlStateStore
	path string
}

// NewDuckStateStore opens (or creates) the database at dbPath.
func NewDuckStateStore(dbPath string, threads int, memoryLimit string) (*DuckStateStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", threads))
	}
	if memoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", memoryLimit))
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	s := &DuckStateStore{sqlStateStore: sqlStateStore{db: sql.OpenDB(connector)}, path: dbPath}
	if err := s.createTable(context.Background()); err != nil {
		s.db.Close()
		return nil, err
	}

	slog.Info("state store ready", "component", "storage", "backend", "duckdb", "path", dbPath)
	return s, nil
}

// Path returns the database file location.
func (s *DuckStateStore) Path() string {
	return s.path
}
