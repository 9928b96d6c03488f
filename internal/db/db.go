// Package db manages the database connection
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// MySQL driver for shared deployments
	_ "github.com/go-sql-driver/mysql"
	"github.com/jonboulle/clockwork"
	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour used for upserts.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// DB wraps the SQL database connection with application-specific methods.
type DB struct {
	*sql.DB
	path    string
	dialect Dialect
	clock   clockwork.Clock
}

// New creates a SQLite database at path and initializes the schema.
func New(path string) (*DB, error) {
	return Open(DialectSQLite, path, clockwork.NewRealClock())
}

// Open connects to a database of the given dialect. For SQLite dsn is a file
// path; for MySQL it is a go-sql-driver DSN.
func Open(dialect Dialect, dsn string, clock clockwork.Clock) (*DB, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if dialect == DialectSQLite {
		// Ensure directory exists
		dir := filepath.Dir(dsn)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:      sqlDB,
		path:    dsn,
		dialect: dialect,
		clock:   clock,
	}

	// Configure database
	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	// Create schema
	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path or DSN.
func (db *DB) Path() string {
	return db.path
}

// Dialect returns the SQL dialect in use.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// configure sets up database pragmas for optimal performance.
func (db *DB) configure() error {
	if db.dialect != DialectSQLite {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		return nil
	}

	// A single connection keeps the pragmas below in effect for every
	// statement and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000", // 64MB cache
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (db *DB) createSchema() error {
	return db.createKVTable()
}

func (db *DB) createKVTable() error {
	queries := []string{`
	CREATE TABLE IF NOT EXISTS kv_entries (
		cache_key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`,
		`CREATE INDEX IF NOT EXISTS idx_kv_entries_expires ON kv_entries(expires_at)`,
	}

	if db.dialect == DialectMySQL {
		queries = []string{`
		CREATE TABLE IF NOT EXISTS kv_entries (
			cache_key VARCHAR(512) NOT NULL PRIMARY KEY,
			value LONGBLOB NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0,
			INDEX idx_kv_entries_expires (expires_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
		}
	}

	for _, query := range queries {
		if _, err := db.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("failed to create kv_entries: %w", err)
		}
	}
	return nil
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	if db.dialect == DialectSQLite {
		// Checkpoint WAL before closing
		_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return db.DB.Close()
}

// Vacuum performs database maintenance to reclaim space.
func (db *DB) Vacuum() error {
	if db.dialect != DialectSQLite {
		return nil
	}
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}
