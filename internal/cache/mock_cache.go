package cache

import (
	"context"
	"sync"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// MockCache is a test double for the Cache interface.
// It wraps a MemoryCache and counts calls.
type MockCache struct {
	*MemoryCache

	mu       sync.Mutex
	GetCalls []string
	SetCalls []string

	// Control behavior for error scenarios
	GetError error
	SetError error
}

// NewMockCache creates an empty mock cache
func NewMockCache() *MockCache {
	return &MockCache{MemoryCache: NewMemoryCache()}
}

// Get implements Cache
func (m *MockCache) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, key)
	err := m.GetError
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.MemoryCache.Get(ctx, key)
}

// Set implements Cache
func (m *MockCache) Set(ctx context.Context, key string, entry models.CacheEntry) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, key)
	err := m.SetError
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.MemoryCache.Set(ctx, key, entry)
}

// Sets returns how many times Set was called
func (m *MockCache) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SetCalls)
}
