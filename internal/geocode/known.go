package geocode

import (
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// Result scores attached by the non-ranking steps
const (
	KnownScore    = 0.95
	ProviderScore = 0.9
	CityScore     = 0.75
	FallbackScore = 0.7
)

// KnownAddressKey builds the lookup key of the known-address table:
// "street number city" when a number was parsed, else the full text.
// Queries without a street never hit the table.
func KnownAddressKey(parts models.AddressParts) (string, bool) {
	if parts.Street == "" {
		return "", false
	}

	var key string
	switch {
	case parts.Number != "":
		key = parts.Street + " " + parts.Number
		if parts.City != "" {
			key += " " + parts.City
		}
	case parts.FullAddress != "":
		key = parts.FullAddress
	default:
		return "", false
	}

	return Normalize(key), true
}

// KnownResult turns a known-table hit into a result
func KnownResult(loc models.KnownLocation) *models.GeocodeResult {
	placeType := loc.Type
	if placeType == "" {
		placeType = "house"
	}
	zoom := loc.Zoom
	if zoom == 0 {
		zoom = ZoomForType(placeType)
	}
	return &models.GeocodeResult{
		Lat:         loc.Lat,
		Lon:         loc.Lon,
		DisplayName: loc.Display,
		Type:        placeType,
		Score:       KnownScore,
		ZoomLevel:   zoom,
		Source:      models.SourceKnown,
	}
}

// CityResult turns a city-table hit into a result labelled with the query's
// own city and province spelling
func CityResult(city models.KnownCity, parts models.AddressParts, country string, fallback bool) *models.GeocodeResult {
	if country == "" {
		country = DefaultCountry
	}

	segments := []string{strings.TrimSpace(parts.City)}
	if parts.Province != "" {
		segments = append(segments, parts.Province)
	}
	segments = append(segments, country)

	result := &models.GeocodeResult{
		Lat:         city.Lat,
		Lon:         city.Lon,
		DisplayName: strings.Join(segments, ", "),
		Type:        "city",
		Score:       CityScore,
		ZoomLevel:   city.Zoom,
		Source:      models.SourceCityTable,
	}
	if fallback {
		result.Score = FallbackScore
		result.Source = models.SourceCityFallback
		result.Fallback = true
	}
	return result
}

// MatchKey finds key among ordered table keys: an exact match first, then
// the first key containing or contained in it. Keys must be normalized.
func MatchKey(keys []string, key string) (int, bool) {
	if key == "" {
		return -1, false
	}
	for i, k := range keys {
		if k == key {
			return i, true
		}
	}
	for i, k := range keys {
		if matchesEither(k, key) {
			return i, true
		}
	}
	return -1, false
}
