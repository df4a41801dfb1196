package store

import (
	"context"
	"fmt"

	"github.com/evyataryagoni/geocoder/internal/geocode"
	"github.com/evyataryagoni/geocoder/internal/models"
)

// MemoryStore implements KnownStore over in-memory tables.
// Entries keep their load order, which decides substring matches.
type MemoryStore struct {
	addresses   []models.KnownLocation
	addressKeys []string
	cities      []models.KnownCity
	cityKeys    []string
}

// NewMemoryStore creates a store over the given tables. Keys and names are
// normalized on the way in.
func NewMemoryStore(addresses []models.KnownLocation, cities []models.KnownCity) *MemoryStore {
	s := &MemoryStore{}
	for _, a := range addresses {
		s.addAddress(a)
	}
	for _, c := range cities {
		s.addCity(c)
	}
	return s
}

// NewDefaultStore creates a store with the tables shipped with the service
func NewDefaultStore() *MemoryStore {
	return NewMemoryStore(DefaultKnownAddresses(), DefaultKnownCities())
}

func (s *MemoryStore) addAddress(a models.KnownLocation) {
	a.Key = geocode.Normalize(a.Key)
	if a.Key == "" {
		return
	}
	s.addresses = append(s.addresses, a)
	s.addressKeys = append(s.addressKeys, a.Key)
}

func (s *MemoryStore) addCity(c models.KnownCity) {
	c.Name = geocode.Normalize(c.Name)
	if c.Name == "" {
		return
	}
	s.cities = append(s.cities, c)
	s.cityKeys = append(s.cityKeys, c.Name)
}

// FindAddress implements KnownStore
func (s *MemoryStore) FindAddress(ctx context.Context, key string) (*models.KnownLocation, error) {
	i, ok := geocode.MatchKey(s.addressKeys, geocode.Normalize(key))
	if !ok {
		return nil, fmt.Errorf("address %q: %w", key, models.ErrStoreNotFound)
	}
	location := s.addresses[i]
	return &location, nil
}

// FindCity implements KnownStore
func (s *MemoryStore) FindCity(ctx context.Context, name string) (*models.KnownCity, error) {
	i, ok := geocode.MatchKey(s.cityKeys, geocode.Normalize(name))
	if !ok {
		return nil, fmt.Errorf("city %q: %w", name, models.ErrStoreNotFound)
	}
	city := s.cities[i]
	return &city, nil
}

// Addresses returns a copy of the address table in load order
func (s *MemoryStore) Addresses() []models.KnownLocation {
	return append([]models.KnownLocation(nil), s.addresses...)
}

// Cities returns a copy of the city table in load order
func (s *MemoryStore) Cities() []models.KnownCity {
	return append([]models.KnownCity(nil), s.cities...)
}

// Close implements KnownStore. Nothing to release.
func (s *MemoryStore) Close() error {
	return nil
}

// DefaultKnownAddresses returns addresses the open index places poorly
func DefaultKnownAddresses() []models.KnownLocation {
	house := func(key string, lat, lon float64, display string) models.KnownLocation {
		return models.KnownLocation{Key: key, Lat: lat, Lon: lon, Type: "house", Display: display, Zoom: 19}
	}
	return []models.KnownLocation{
		house("bolivia 133 cordoba", -31.4144, -64.1857, "Bolivia 133, Córdoba, Argentina"),
		house("ayacucho 367 cordoba", -31.4181, -64.1831, "Ayacucho 367, Córdoba, Argentina"),
		house("dean funes 70 cordoba", -31.4147, -64.1857, "Dean Funes 70, Córdoba, Argentina"),
		house("buenos aires 990 cordoba", -31.4112, -64.1918, "Buenos Aires 990, Córdoba, Argentina"),
		house("independencia 184 rio tercero", -32.1755, -64.1124, "Independencia 184, Río Tercero, Córdoba, Argentina"),
		house("general paz 506 rio tercero", -32.1719, -64.1138, "General Paz 506, Río Tercero, Córdoba, Argentina"),
		house("wenceslao paunero 2453 rio tercero", -32.1799, -64.1028, "Wenceslao Paunero 2453, Río Tercero, Córdoba, Argentina"),
	}
}

// DefaultKnownCities returns city centres used by the city shortcut and as last resort
func DefaultKnownCities() []models.KnownCity {
	return []models.KnownCity{
		{Name: "cordoba", Lat: -31.420, Lon: -64.188, Zoom: 12},
		{Name: "cordoba capital", Lat: -31.420, Lon: -64.188, Zoom: 12},
		{Name: "rio tercero", Lat: -32.173, Lon: -64.112, Zoom: 14},
		{Name: "rio cuarto", Lat: -33.123, Lon: -64.349, Zoom: 13},
		{Name: "villa maria", Lat: -32.407, Lon: -63.240, Zoom: 13},
		{Name: "buenos aires", Lat: -34.603, Lon: -58.381, Zoom: 12},
		{Name: "la plata", Lat: -34.921, Lon: -57.954, Zoom: 13},
		{Name: "mar del plata", Lat: -38.005, Lon: -57.542, Zoom: 13},
		{Name: "rosario", Lat: -32.944, Lon: -60.639, Zoom: 13},
		{Name: "mendoza", Lat: -32.889, Lon: -68.844, Zoom: 13},
		{Name: "san juan", Lat: -31.537, Lon: -68.525, Zoom: 13},
		{Name: "tucuman", Lat: -26.808, Lon: -65.217, Zoom: 13},
	}
}
