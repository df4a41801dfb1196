package service

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/uber/h3-go/v4"
)

// reverseCache keeps reverse results by H3 cell so that nearby clicks on
// the same building reuse one lookup
type reverseCache struct {
	mu      sync.RWMutex
	entries map[h3.Cell]models.ReverseAddress
	max     int
}

func newReverseCache(max int) *reverseCache {
	return &reverseCache{entries: make(map[h3.Cell]models.ReverseAddress), max: max}
}

func (c *reverseCache) get(cell h3.Cell) (*models.ReverseAddress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addr, ok := c.entries[cell]
	if !ok {
		return nil, false
	}
	return &addr, true
}

func (c *reverseCache) set(cell h3.Cell, addr models.ReverseAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		clear(c.entries)
	}
	c.entries[cell] = addr
}

// ValidateCoordinates checks a WGS84 pair, NaN included
func (s *GeocodeService) ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return fmt.Errorf("%w: not a number", models.ErrInvalidCoordinates)
	}
	if err := s.validate.Struct(models.Coordinates{Lat: lat, Lon: lon}); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidCoordinates, err)
	}
	return nil
}

// Reverse finds the address at a coordinate pair
//
// Flow:
//  1. Validate ranges (no request is sent for invalid input)
//  2. Look up the H3 cell cache
//  3. Ask the reverse provider, bounded by ReverseTimeout
func (s *GeocodeService) Reverse(ctx context.Context, lat, lon float64) (*models.ReverseAddress, error) {
	// Step 1: validate
	if err := s.ValidateCoordinates(lat, lon); err != nil {
		s.logger.Warn().Float64("lat", lat).Float64("lon", lon).Msg("Invalid coordinates for reverse geocoding")
		s.countReverse("invalid")
		return nil, err
	}

	if s.reverse == nil {
		return nil, fmt.Errorf("reverse: %w", models.ErrProviderUnavailable)
	}

	// Step 2: cache
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), s.opts.ReverseResolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCoordinates, err)
	}
	if addr, ok := s.reverseCache.get(cell); ok {
		s.countReverse("cached")
		// The cell is shared by nearby points; report the requested one
		addr.Lat, addr.Lon = lat, lon
		return addr, nil
	}

	// Step 3: provider
	reqCtx, cancel := context.WithTimeout(ctx, s.opts.ReverseTimeout)
	defer cancel()

	addr, err := s.reverse.Reverse(reqCtx, lat, lon)
	if err != nil {
		s.logger.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("Reverse geocoding failed")
		s.countReverse("error")
		return nil, fmt.Errorf("reverse geocoding failed: %w", err)
	}

	s.reverseCache.set(cell, *addr)
	s.countReverse("ok")
	return addr, nil
}

func (s *GeocodeService) countReverse(result string) {
	if s.metrics != nil {
		s.metrics.ReverseLookupsTotal.WithLabelValues(result).Inc()
	}
}
