package cache

import (
	"context"
	"sync"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// MemoryCache is a map-backed Cache safe for concurrent use
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

// NewMemoryCache creates an empty memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]models.CacheEntry)}
}

// Get implements Cache
func (c *MemoryCache) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, models.ErrCacheMiss
	}
	return &entry, nil
}

// Set implements Cache
func (c *MemoryCache) Set(ctx context.Context, key string, entry models.CacheEntry) error {
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close implements Cache
func (c *MemoryCache) Close() error {
	return nil
}
