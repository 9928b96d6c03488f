// Package cache is the single versioned cache used by every fetcher. Entries
// are wrapped in an envelope carrying the write time, schema version and TTL
// so freshness and version checks live in one place.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"

	"github.com/j-veylop/cf-usage-dashboard/internal/kv"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/stats"
)

// Entry is the persisted envelope around a payload.
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	CachedAt   time.Time       `json:"cachedAt"`
	Version    int             `json:"version"`
	TTLSeconds int64           `json:"ttlSeconds"`
}

// Cache reads and writes envelopes in a kv.Store.
type Cache struct {
	store kv.Store
	clock clockwork.Clock
}

// New wraps store. A nil clock uses the real clock.
func New(store kv.Store, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{store: store, clock: clock}
}

// Store returns the underlying store.
func (c *Cache) Store() kv.Store {
	return c.store
}

// Clock returns the clock used for freshness checks.
func (c *Cache) Clock() clockwork.Clock {
	return c.clock
}

// Get loads key and decodes its payload into T. Absent, expired, stale,
// version-mismatched and undecodable entries are all reported as a miss.
func Get[T any](ctx context.Context, c *Cache, key string, p Policy) (T, bool) {
	var zero T

	entry, ok := c.lookup(ctx, key, p)
	if !ok {
		return zero, false
	}

	var value T
	if err := sonic.Unmarshal(entry.Payload, &value); err != nil {
		logger.Debug("cache payload undecodable", "key", key, "error", err)
		stats.CacheLookups.WithLabelValues(p.Family, "error").Inc()
		return zero, false
	}

	stats.CacheLookups.WithLabelValues(p.Family, "hit").Inc()
	return value, true
}

// Entry returns the raw envelope for key, applying the same checks as Get.
func (c *Cache) Entry(ctx context.Context, key string, p Policy) (*Entry, bool) {
	entry, ok := c.lookup(ctx, key, p)
	if ok {
		stats.CacheLookups.WithLabelValues(p.Family, "hit").Inc()
	}
	return entry, ok
}

func (c *Cache) lookup(ctx context.Context, key string, p Policy) (*Entry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "key", key, "error", err)
		stats.CacheLookups.WithLabelValues(p.Family, "error").Inc()
		return nil, false
	}
	if !ok {
		stats.CacheLookups.WithLabelValues(p.Family, "miss").Inc()
		return nil, false
	}

	var entry Entry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		logger.Debug("cache envelope undecodable", "key", key, "error", err)
		stats.CacheLookups.WithLabelValues(p.Family, "error").Inc()
		return nil, false
	}

	if p.Version != 0 && entry.Version != p.Version {
		logger.Debug("cache version mismatch", "key", key, "version", entry.Version, "want", p.Version)
		stats.CacheLookups.WithLabelValues(p.Family, "version").Inc()
		return nil, false
	}

	if p.MaxAge > 0 && c.clock.Since(entry.CachedAt) >= p.MaxAge {
		stats.CacheLookups.WithLabelValues(p.Family, "stale").Inc()
		return nil, false
	}

	return &entry, true
}

func (c *Cache) encode(key string, value any, p Policy) ([]byte, error) {
	payload, err := sonic.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Family, err)
	}

	raw, err := sonic.Marshal(Entry{
		Key:        key,
		Payload:    payload,
		CachedAt:   c.clock.Now().UTC(),
		Version:    p.Version,
		TTLSeconds: int64(p.TTL / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", p.Family, err)
	}
	return raw, nil
}

// Put stores value under key with the policy's TTL and version.
func (c *Cache) Put(ctx context.Context, key string, value any, p Policy) error {
	raw, err := c.encode(key, value, p)
	if err != nil {
		return err
	}

	if err := c.store.Put(ctx, key, raw, p.TTL); err != nil {
		stats.CacheWrites.WithLabelValues(p.Family, "error").Inc()
		return err
	}
	stats.CacheWrites.WithLabelValues(p.Family, "ok").Inc()
	return nil
}

// PutIfAbsent stores value only if key has no live entry.
func (c *Cache) PutIfAbsent(ctx context.Context, key string, value any, p Policy) (bool, error) {
	raw, err := c.encode(key, value, p)
	if err != nil {
		return false, err
	}

	written, err := c.store.PutIfAbsent(ctx, key, raw, p.TTL)
	if err != nil {
		stats.CacheWrites.WithLabelValues(p.Family, "error").Inc()
		return false, err
	}
	if written {
		stats.CacheWrites.WithLabelValues(p.Family, "ok").Inc()
	} else {
		stats.CacheWrites.WithLabelValues(p.Family, "exists").Inc()
	}
	return written, nil
}

// Keys lists live keys under prefix.
func (c *Cache) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.store.List(ctx, prefix)
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Scan decodes every live entry under prefix in key order. Entries that miss
// for any reason are skipped.
func Scan[T any](ctx context.Context, c *Cache, prefix string, p Policy) ([]T, error) {
	keys, err := c.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	values := make([]T, 0, len(keys))
	for _, key := range keys {
		if v, ok := Get[T](ctx, c, key, p); ok {
			values = append(values, v)
		}
	}
	return values, nil
}
