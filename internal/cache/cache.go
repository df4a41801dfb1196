// Package cache stores resolved queries. The persistent cache (Redis or
// MySQL) survives restarts and is shared by every session; the memory cache
// backs each session. Entries never expire on their own: readers decide
// freshness from the entry timestamp.
package cache

import (
	"context"
	"time"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// KeyPrefix is prepended to every normalized query
const KeyPrefix = "geocode_"

// Cache defines the operations of a result cache
type Cache interface {
	// Get returns the entry stored under key or models.ErrCacheMiss
	Get(ctx context.Context, key string) (*models.CacheEntry, error)

	// Set stores entry under key, replacing any previous one
	Set(ctx context.Context, key string, entry models.CacheEntry) error

	// Close cleans up resources
	Close() error
}

// Key returns the cache key of a normalized query
func Key(normalized string) string {
	return KeyPrefix + normalized
}

// NewEntry wraps a result for storage, stamped with now
func NewEntry(result *models.GeocodeResult, now time.Time) models.CacheEntry {
	return models.CacheEntry{
		Lat:       result.Lat,
		Lon:       result.Lon,
		Result:    result,
		ZoomLevel: result.ZoomLevel,
		Timestamp: now.UnixMilli(),
	}
}

// Fresh reports whether entry was written less than ttl before now.
// Entries without a timestamp are never fresh; a zero ttl disables expiry.
func Fresh(entry *models.CacheEntry, now time.Time, ttl time.Duration) bool {
	if entry == nil {
		return false
	}
	if ttl <= 0 {
		return true
	}
	if entry.Timestamp <= 0 {
		return false
	}
	return now.Sub(time.UnixMilli(entry.Timestamp)) < ttl
}
