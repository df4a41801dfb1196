package geocode

import (
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// FilterByCountry keeps the candidates located in country.
// The address country must match exactly (case-insensitive); candidates
// without one fall back to a substring check on the display label.
func FilterByCountry(candidates []models.Candidate, country string) []models.Candidate {
	target := strings.ToLower(strings.TrimSpace(country))
	if target == "" {
		return candidates
	}

	kept := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Address.Country != "" {
			if strings.ToLower(c.Address.Country) == target {
				kept = append(kept, c)
			}
			continue
		}
		if strings.Contains(strings.ToLower(c.DisplayName), target) {
			kept = append(kept, c)
		}
	}
	return kept
}
