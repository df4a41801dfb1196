package geocode

import (
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// Suggestion field kinds
const (
	FieldProvince = "province"
	FieldCity     = "city"
	FieldAddress  = "address"
)

// MinSuggestionLength is the shortest input worth sending to a provider
const MinSuggestionLength = 2

// SuggestionContext carries the form fields already filled in
type SuggestionContext struct {
	Province string
	City     string
	Country  string
}

// SuggestionQuery adds the surrounding form context to what the user typed
func SuggestionQuery(text, field string, sc SuggestionContext) string {
	text = strings.TrimSpace(text)
	country := sc.Country
	if country == "" {
		country = DefaultCountry
	}

	segments := []string{text}
	switch field {
	case FieldCity:
		if sc.Province != "" {
			segments = append(segments, sc.Province)
		}
	case FieldAddress:
		if sc.City != "" {
			segments = append(segments, sc.City)
		}
		if sc.Province != "" {
			segments = append(segments, sc.Province)
		}
	}
	segments = append(segments, country)

	return strings.Join(segments, ", ")
}

// FilterSuggestions keeps the results that fit the field being completed.
// When nothing fits, every result is returned.
func FilterSuggestions(results []models.OpenCageResult, field string) []models.OpenCageResult {
	kept := make([]models.OpenCageResult, 0, len(results))
	for _, r := range results {
		if fitsField(r.Components, field) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return results
	}
	return kept
}

func fitsField(c map[string]string, field string) bool {
	hasStreet := c["road"] != "" || c["street"] != ""
	hasCity := c["city"] != "" || c["town"] != "" || c["village"] != ""

	switch field {
	case FieldProvince:
		return c["state"] != "" && c["city"] == "" && !hasStreet
	case FieldCity:
		return hasCity && !hasStreet
	case FieldAddress:
		return hasStreet
	default:
		return true
	}
}
