// Package cachemem holds a small TTL cache for verification results so hot
// executions are not re-verified on every request.
package cachemem

import (
	"context"
	"sync"
	"time"

	"sigil/internal/domain"
)

type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// cacheEntry pairs a result with its deadline; a zero expiresAt never lapses.
type cacheEntry struct {
	value     domain.VerificationResult
	expiresAt time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached result for an execution id, dropping it if the TTL
// has lapsed. A nil Cache is a valid no-op cache.
func (c *Cache) Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	value := entry.value
	return &value, true, nil
}

// Put stores a result under the execution id. ttl <= 0 means no expiry.
func (c *Cache) Put(ctx context.Context, key string, value domain.VerificationResult, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}
