package store

import (
	"context"
	"sync"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// MockStore is a test double for the KnownStore interface.
// It serves the default tables and records every lookup.
type MockStore struct {
	mu    sync.Mutex
	inner *MemoryStore

	// Track method calls for verification in tests
	FindAddressCalls []string
	FindCityCalls    []string
	CloseCalled      bool

	// Control behavior for error scenarios
	FindAddressError error
	FindCityError    error
	CloseError       error
}

// NewMockStore creates a mock store with the default known tables
func NewMockStore() *MockStore {
	return &MockStore{inner: NewDefaultStore()}
}

// NewEmptyMockStore creates a mock store with no data
// Useful for testing "not found" scenarios
func NewEmptyMockStore() *MockStore {
	return &MockStore{inner: NewMemoryStore(nil, nil)}
}

// FindAddress implements the KnownStore interface
func (m *MockStore) FindAddress(ctx context.Context, key string) (*models.KnownLocation, error) {
	m.mu.Lock()
	m.FindAddressCalls = append(m.FindAddressCalls, key)
	err := m.FindAddressError
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.FindAddress(ctx, key)
}

// FindCity implements the KnownStore interface
func (m *MockStore) FindCity(ctx context.Context, name string) (*models.KnownCity, error) {
	m.mu.Lock()
	m.FindCityCalls = append(m.FindCityCalls, name)
	err := m.FindCityError
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.FindCity(ctx, name)
}

// Close implements the KnownStore interface
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return m.CloseError
}
