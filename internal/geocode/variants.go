package geocode

import (
	"fmt"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// DefaultCountry is appended to variants when the query carries no country
const DefaultCountry = "Argentina"

// Region is a locality with sparse address coverage in the open index.
// Queries naming it get extra phrasings (with and without diacritics, one per
// neighbourhood) and candidates mentioning it get a scoring bonus.
type Region struct {
	Locality       string   `json:"locality"`
	Province       string   `json:"province"`
	Neighbourhoods []string `json:"neighbourhoods"`
	Bonus          int      `json:"bonus"`
}

// DefaultRegions returns the regional corrections shipped with the service
func DefaultRegions() []Region {
	return []Region{
		{
			Locality: "Río Tercero",
			Province: "Córdoba",
			Neighbourhoods: []string{
				"Centro", "Norte", "Sur", "Media Luna", "Cerino",
				"Panamericano", "Belgrano", "Cabero", "Castagnino",
			},
			Bonus: 10,
		},
	}
}

// matches reports whether the (raw) text names the region's locality
func (r Region) matches(text string) bool {
	locality := Normalize(r.Locality)
	return locality != "" && strings.Contains(Normalize(text), locality)
}

// Variants builds the ordered, duplicate-free list of alternate queries for
// parts. The order is also the order in which the open index is queried.
func Variants(parts models.AddressParts, country string, regions []Region) []string {
	if country == "" {
		country = DefaultCountry
	}
	if parts.Country != "" {
		country = parts.Country
	}

	variants := make([]string, 0, 8)
	add := func(format string, args ...any) {
		variants = append(variants, fmt.Sprintf(format, args...))
	}

	if parts.FullAddress != "" {
		variants = append(variants, parts.FullAddress)
	}

	hasStreetNumber := parts.Street != "" && parts.Number != ""

	if hasStreetNumber {
		v := parts.Street + " " + parts.Number
		if parts.City != "" {
			v += ", " + parts.City
		}
		if parts.Province != "" {
			v += ", " + parts.Province
		}
		variants = append(variants, v+", "+country)
	}

	if parts.Street != "" && parts.City != "" {
		add("%s, %s, %s", parts.Street, parts.City, country)
	}

	if hasStreetNumber && parts.City != "" {
		add("%s %s, %s", parts.Street, parts.Number, parts.City)
	}

	for _, region := range regions {
		if parts.City == "" || !region.matches(parts.City) {
			continue
		}

		locality := region.Locality
		asciiLocality := StripDiacritics(region.Locality)
		if region.Province != "" {
			add("%s, %s, %s", locality, region.Province, country)
		} else {
			add("%s, %s", locality, country)
		}

		if !hasStreetNumber {
			continue
		}

		street := parts.Street + " " + parts.Number
		if region.Province != "" {
			add("%s, %s, %s, %s", street, locality, region.Province, country)
			add("%s, %s, %s, %s", street, asciiLocality, StripDiacritics(region.Province), country)
		} else {
			add("%s, %s, %s", street, locality, country)
		}
		add("%s, %s, %s", street, asciiLocality, country)

		for _, barrio := range region.Neighbourhoods {
			if region.Province != "" {
				add("%s, Barrio %s, %s, %s, %s", street, barrio, locality, region.Province, country)
			} else {
				add("%s, Barrio %s, %s, %s", street, barrio, locality, country)
			}
		}
	}

	if parts.City != "" && parts.Province != "" {
		add("%s, %s, %s", parts.City, parts.Province, country)
	}

	return dedupe(variants)
}

// dedupe drops repeated strings keeping the first occurrence
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
