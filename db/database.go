package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned when the database has been closed.
var ErrClosed = errors.New("db: database is closed")

// Database owns the studio's SQLite connection pool.
type Database struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open creates the parent directory, applies the embedded migrations and
// opens the connection pool.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConnectionConfig(path))
}

// OpenWithConfig is Open with explicit connection settings.
func OpenWithConfig(config ConnectionConfig) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("db: database path is required")
	}
	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("db: create database directory %s: %w", dir, err)
		}
	}

	if err := MigrateUp(config.Path); err != nil {
		return nil, err
	}

	conn, err := NewSQLiteConnection(config)
	if err != nil {
		return nil, err
	}
	return &Database{db: conn, path: config.Path}, nil
}

// DB returns the underlying pool, or nil after Close.
func (d *Database) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Ping verifies the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	conn := d.DB()
	if conn == nil {
		return ErrClosed
	}
	return conn.PingContext(ctx)
}

// Close closes the pool. Calling Close twice is safe.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	d.db = nil
	return nil
}

func (d *Database) conn() (*sql.DB, error) {
	conn := d.DB()
	if conn == nil {
		return nil, ErrClosed
	}
	return conn, nil
}
