package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// CSVStore implements KnownStore from two CSV files.
// It loads all data into memory for fast lookups.
type CSVStore struct {
	*MemoryStore
}

// NewCSVStore creates a new CSV store by reading the known-address and known-city tables
//
// Parameters:
//   - addressPath: address table, header then key,lat,lon,type,display,zoom
//   - cityPath: city table, header then name,lat,lon,zoom
//
// Either path may be empty, in which case that table stays empty.
//
// Example rows:
//
//	bolivia 133 cordoba,-31.4144,-64.1857,house,"Bolivia 133, Córdoba, Argentina",19
//	rosario,-32.944,-60.639,13
func NewCSVStore(addressPath, cityPath string) (*CSVStore, error) {
	var (
		addresses []models.KnownLocation
		cities    []models.KnownCity
		err       error
	)

	if addressPath != "" {
		addresses, err = readFile(addressPath, ReadKnownAddressesCSV)
		if err != nil {
			return nil, err
		}
	}
	if cityPath != "" {
		cities, err = readFile(cityPath, ReadKnownCitiesCSV)
		if err != nil {
			return nil, err
		}
	}

	return &CSVStore{MemoryStore: NewMemoryStore(addresses, cities)}, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ReadKnownAddressesCSV parses an address table. The first row is a header.
// Malformed rows are skipped instead of failing the whole load.
func ReadKnownAddressesCSV(r io.Reader) ([]models.KnownLocation, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	locations := make([]models.KnownLocation, 0, len(records))
	for _, record := range records {
		if len(record) < 3 {
			continue
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		location := models.KnownLocation{Key: record[0], Lat: lat, Lon: lon, Type: "house"}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			location.Type = strings.TrimSpace(record[3])
		}
		if len(record) > 4 {
			location.Display = strings.TrimSpace(record[4])
		}
		if len(record) > 5 {
			location.Zoom, _ = strconv.Atoi(strings.TrimSpace(record[5]))
		}

		locations = append(locations, location)
	}

	return locations, nil
}

// ReadKnownCitiesCSV parses a city table. The first row is a header.
func ReadKnownCitiesCSV(r io.Reader) ([]models.KnownCity, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	cities := make([]models.KnownCity, 0, len(records))
	for _, record := range records {
		if len(record) < 3 {
			continue
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		city := models.KnownCity{Name: record[0], Lat: lat, Lon: lon, Zoom: 13}
		if len(record) > 3 {
			if zoom, err := strconv.Atoi(strings.TrimSpace(record[3])); err == nil {
				city.Zoom = zoom
			}
		}

		cities = append(cities, city)
	}

	return cities, nil
}

// readRecords reads every record and drops the header row
func readRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}
	return records[1:], nil
}
