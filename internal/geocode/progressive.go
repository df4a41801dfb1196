package geocode

import (
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// Zoom hints for progressive queries
const (
	ZoomStreetNumber = 19
	ZoomStreet       = 18
	ZoomCity         = 13
	ZoomProvince     = 7
)

// ProgressiveQuery builds the most specific query the form fields allow and
// the zoom level matching that precision. Province is mandatory; ok is false
// without it.
func ProgressiveQuery(p models.ProgressiveQuery) (query string, zoom int, ok bool) {
	province := strings.TrimSpace(p.Province)
	city := strings.TrimSpace(p.City)
	street := strings.TrimSpace(p.Street)
	country := strings.TrimSpace(p.Country)

	if province == "" {
		return "", 0, false
	}

	var segments []string
	switch {
	case street != "" && city != "":
		segments = []string{street, city, province}
		zoom = ZoomStreet
		if numberPattern.MatchString(street) {
			zoom = ZoomStreetNumber
		}
	case city != "":
		segments = []string{city, province}
		zoom = ZoomCity
	default:
		segments = []string{province}
		zoom = ZoomProvince
	}

	if country != "" {
		segments = append(segments, country)
	}

	return strings.Join(segments, ", "), zoom, true
}
