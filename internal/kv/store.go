// Package kv provides the key-value stores backing configuration and caches.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/j-veylop/cf-usage-dashboard/internal/config"
	"github.com/j-veylop/cf-usage-dashboard/internal/db"
)

// Store is a byte-oriented map with per-entry TTLs. A TTL of zero or less
// means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// PutIfAbsent writes only when no live entry exists and reports whether
	// it wrote.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// List returns live keys with the given prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Purger is implemented by stores that need explicit expiry sweeps.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

var (
	_ Store  = (*db.DB)(nil)
	_ Purger = (*db.DB)(nil)
	_ Store  = (*MemoryStore)(nil)
	_ Store  = (*RedisStore)(nil)
)

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := db.Open(db.DialectSQLite, cfg.DatabasePath, clock)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return store, nil
	case config.BackendMySQL:
		store, err := db.Open(db.DialectMySQL, cfg.MySQLDSN, clock)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mysql: %w", err)
		}
		return store, nil
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisURL)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
