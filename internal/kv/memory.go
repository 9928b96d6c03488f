package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps entries in process memory. It is used for tests and
// single-process deployments that accept losing caches on restart.
type MemoryStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryStore creates a store and starts its expiry loop.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go cache.Start()

	return &MemoryStore{cache: cache}
}

func memoryTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(key, value, memoryTTL(ttl))
	return nil
}

// PutIfAbsent implements Store.
func (s *MemoryStore) PutIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.cache.Get(key); item != nil && !item.IsExpired() {
		return false, nil
	}
	s.cache.Set(key, value, memoryTTL(ttl))
	return true, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	s.cache.Range(func(item *ttlcache.Item[string, []byte]) bool {
		if !item.IsExpired() && strings.HasPrefix(item.Key(), prefix) {
			keys = append(keys, item.Key())
		}
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Close stops the expiry loop.
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}
