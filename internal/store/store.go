package store

import (
	"context"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// KnownStore defines the lookups on the curated known-location tables.
// Allows multiple implementations (memory, CSV, MySQL, Redis) and easy testing with mocks.
//
// Keys are normalized (see geocode.Normalize). Both lookups try an exact
// match first, then the first entry whose key contains or is contained in
// the requested one. A miss returns models.ErrStoreNotFound.
type KnownStore interface {
	// FindAddress looks up a known street address
	FindAddress(ctx context.Context, key string) (*models.KnownLocation, error)

	// FindCity looks up a known city centre
	FindCity(ctx context.Context, name string) (*models.KnownCity, error)

	// Close cleans up resources (database connections, file handles, etc.)
	Close() error
}

// Loader is implemented by the stores that can be populated from the CSV tables
type Loader interface {
	SaveAddresses(ctx context.Context, locations []models.KnownLocation) error
	SaveCities(ctx context.Context, cities []models.KnownCity) error
}
