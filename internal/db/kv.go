package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
)

// vacuumAfter is the purge size above which SQLite files are compacted.
const vacuumAfter = 1000

// likeEscaper escapes LIKE wildcards with '!' as the escape character.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// expiresAt converts a TTL into the stored unix-millis deadline. Zero means
// the entry never expires.
func (db *DB) expiresAt(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return db.clock.Now().Add(ttl).UnixMilli()
}

// Get returns the value stored under key if it exists and has not expired.
func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `
		SELECT value FROM kv_entries
		WHERE cache_key = ? AND (expires_at = 0 OR expires_at > ?)
	`

	var value []byte
	err := db.QueryRowContext(ctx, query, key, db.clock.Now().UnixMilli()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return value, true, nil
}

// Put stores value under key, replacing any previous entry.
func (db *DB) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO kv_entries (cache_key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`
	if db.dialect == DialectMySQL {
		query = `
			INSERT INTO kv_entries (cache_key, value, expires_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), expires_at = VALUES(expires_at)
		`
	}

	if _, err := db.ExecContext(ctx, query, key, value, db.expiresAt(ttl)); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// PutIfAbsent stores value only when no live entry exists for key. It reports
// whether the value was written.
func (db *DB) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := db.clock.Now().UnixMilli()

	// An expired row must not block the insert.
	if _, err := db.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE cache_key = ? AND expires_at != 0 AND expires_at <= ?",
		key, now,
	); err != nil {
		return false, fmt.Errorf("failed to clear expired %s: %w", key, err)
	}

	query := "INSERT OR IGNORE INTO kv_entries (cache_key, value, expires_at) VALUES (?, ?, ?)"
	if db.dialect == DialectMySQL {
		query = "INSERT IGNORE INTO kv_entries (cache_key, value, expires_at) VALUES (?, ?, ?)"
	}

	result, err := db.ExecContext(ctx, query, key, value, db.expiresAt(ttl))
	if err != nil {
		return false, fmt.Errorf("failed to insert %s: %w", key, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// List returns the live keys starting with prefix, sorted ascending.
func (db *DB) List(ctx context.Context, prefix string) ([]string, error) {
	query := `
		SELECT cache_key FROM kv_entries
		WHERE cache_key LIKE ? ESCAPE '!' AND (expires_at = 0 OR expires_at > ?)
		ORDER BY cache_key
	`

	rows, err := db.QueryContext(ctx, query, likeEscaper.Replace(prefix)+"%", db.clock.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		// SQLite LIKE is case-insensitive for ASCII.
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	return keys, rows.Err()
}

// Delete removes key.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM kv_entries WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// PurgeExpired removes expired entries and returns how many were deleted.
func (db *DB) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE expires_at != 0 AND expires_at <= ?",
		db.clock.Now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if n >= vacuumAfter {
		if err := db.Vacuum(); err != nil {
			logger.Warn("vacuum after purge failed", "error", err)
		}
	}
	return n, nil
}
