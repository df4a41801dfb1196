package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// MockProvider is a test double for PrimaryProvider, SearchProvider and ReverseProvider.
// It is safe for concurrent use since the resolver fans requests out.
type MockProvider struct {
	mu sync.Mutex

	// Primary geocoder behavior
	GeocodeResults []models.OpenCageResult
	GeocodeError   error

	// Open index behavior, keyed by the exact query string.
	// Queries without an entry return no candidates.
	SearchResults map[string][]models.Candidate
	SearchErrors  map[string]error
	SearchDelay   map[string]time.Duration

	// Reverse behavior
	ReverseResult *models.ReverseAddress
	ReverseError  error

	// Track method calls for verification in tests
	geocodeCalls []string
	searchCalls  []string
	reverseCalls [][2]float64
}

// NewMockProvider creates a mock that finds nothing anywhere
func NewMockProvider() *MockProvider {
	return &MockProvider{
		SearchResults: map[string][]models.Candidate{},
		SearchErrors:  map[string]error{},
		SearchDelay:   map[string]time.Duration{},
	}
}

// Geocode implements PrimaryProvider
func (m *MockProvider) Geocode(ctx context.Context, query string, limit int) ([]models.OpenCageResult, error) {
	m.mu.Lock()
	m.geocodeCalls = append(m.geocodeCalls, query)
	results, err := m.GeocodeResults, m.GeocodeError
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(results) > limit && limit > 0 {
		results = results[:limit]
	}
	return results, nil
}

// Search implements SearchProvider. A configured delay honors ctx cancellation.
func (m *MockProvider) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	m.mu.Lock()
	m.searchCalls = append(m.searchCalls, query)
	results := m.SearchResults[query]
	err := m.SearchErrors[query]
	delay := m.SearchDelay[query]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("mock search %q: %w", query, ctx.Err())
		}
	}

	if err != nil {
		return nil, err
	}
	return results, nil
}

// Reverse implements ReverseProvider
func (m *MockProvider) Reverse(ctx context.Context, lat, lon float64) (*models.ReverseAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reverseCalls = append(m.reverseCalls, [2]float64{lat, lon})
	if m.ReverseError != nil {
		return nil, m.ReverseError
	}
	if m.ReverseResult == nil {
		return nil, models.ErrEmptyResult
	}
	result := *m.ReverseResult
	return &result, nil
}

// GeocodeCalls returns the queries sent to Geocode
func (m *MockProvider) GeocodeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.geocodeCalls...)
}

// SearchCalls returns the queries sent to Search in call order
func (m *MockProvider) SearchCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searchCalls...)
}

// ReverseCalls returns the coordinates sent to Reverse
func (m *MockProvider) ReverseCalls() [][2]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]float64(nil), m.reverseCalls...)
}

// TotalCalls is the number of requests of any kind
func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.geocodeCalls) + len(m.searchCalls) + len(m.reverseCalls)
}
