package store

import (
	"context"
	"fmt"
)

// LoadStats reports how many rows a load wrote
type LoadStats struct {
	Addresses int
	Cities    int
}

// LoadCSV reads the CSV tables and writes them through loader.
// Empty paths are skipped.
func LoadCSV(ctx context.Context, loader Loader, addressPath, cityPath string) (LoadStats, error) {
	src, err := NewCSVStore(addressPath, cityPath)
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to load CSV: %w", err)
	}
	defer src.Close()

	return Copy(ctx, loader, src.MemoryStore)
}

// Copy writes every entry of src through loader
func Copy(ctx context.Context, loader Loader, src *MemoryStore) (LoadStats, error) {
	addresses := src.Addresses()
	if err := loader.SaveAddresses(ctx, addresses); err != nil {
		return LoadStats{}, err
	}

	cities := src.Cities()
	if err := loader.SaveCities(ctx, cities); err != nil {
		return LoadStats{Addresses: len(addresses)}, err
	}

	return LoadStats{Addresses: len(addresses), Cities: len(cities)}, nil
}
