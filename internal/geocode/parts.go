package geocode

import (
	"regexp"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
)

var (
	numberPattern = regexp.MustCompile(`\d+`)
	streetPattern = regexp.MustCompile(`([^\d,]+)\s*\d+`)
)

// Decompose splits a comma separated address into its parts.
//
// Segments are read positionally as [street+number, city, province, country].
// The first digit run is the house number and the text right before it (up to
// the previous comma) the street. Without digits the first segment is kept as
// an opaque SpecificAddress. Missing segments stay empty, extra ones are dropped.
func Decompose(text string) models.AddressParts {
	parts := models.AddressParts{FullAddress: text}

	segments := strings.Split(text, ",")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	if number := numberPattern.FindString(text); number != "" {
		parts.Number = number
		if m := streetPattern.FindStringSubmatch(text); m != nil {
			parts.Street = strings.TrimSpace(m[1])
		}
	}

	if parts.Street == "" && len(segments) > 0 {
		parts.SpecificAddress = segments[0]
	}

	if len(segments) > 1 {
		parts.City = segments[1]
	}
	if len(segments) > 2 {
		parts.Province = segments[2]
	}
	if len(segments) > 3 {
		parts.Country = segments[3]
	}

	return parts
}

// PartsFor returns the parts of a query. Free text is decomposed; structured
// queries map field by field, pulling the number out of the street when the
// caller typed both in one field.
func PartsFor(q models.AddressQuery) models.AddressParts {
	if strings.TrimSpace(q.Text) != "" {
		return Decompose(strings.TrimSpace(q.Text))
	}

	parts := models.AddressParts{
		Street:      strings.TrimSpace(q.Street),
		Number:      strings.TrimSpace(q.HouseNumber),
		City:        strings.TrimSpace(q.City),
		Province:    strings.TrimSpace(q.Province),
		Country:     strings.TrimSpace(q.Country),
		FullAddress: q.String(),
	}

	if parts.Number == "" && parts.Street != "" {
		inner := Decompose(parts.Street)
		if inner.Number != "" && inner.Street != "" {
			parts.Street = inner.Street
			parts.Number = inner.Number
		}
	}

	return parts
}
