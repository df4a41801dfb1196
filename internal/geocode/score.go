package geocode

import (
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
)

// Score bonuses
const (
	StreetExactBonus   = 30
	StreetPartialBonus = 20
	NumberExactBonus   = 30
	CityBonus          = 20
	ProvinceBonus      = 15
)

// typeWeights ranks place types: dense categories first, administrative last
var typeWeights = map[string]int{
	"house":       50,
	"building":    45,
	"residential": 40,
	"address":     35,
	"street":      30,
	"road":        25,
	"pedestrian":  20,
	"path":        15,
	"quarter":     10,
	"suburb":      8,
	"village":     5,
	"town":        3,
	"city":        2,
}

// TypeWeight returns the base points of a place type
func TypeWeight(placeType string) int {
	return typeWeights[placeType]
}

// ZoomForType maps a place type to the suggested map zoom level
func ZoomForType(placeType string) int {
	switch placeType {
	case "house", "building":
		return 19
	case "street", "road":
		return 17
	case "suburb", "quarter":
		return 15
	case "city", "town":
		return 13
	default:
		return 15
	}
}

// Scored is a candidate with its relevance points
type Scored struct {
	Candidate models.Candidate
	Score     int
	ZoomLevel int
}

// Score rates how well a candidate matches the parsed query
func Score(c models.Candidate, parts models.AddressParts, regions []Region) int {
	score := TypeWeight(c.Type)

	if parts.Street != "" && c.Address.Road != "" {
		street := Normalize(parts.Street)
		road := Normalize(c.Address.Road)
		switch {
		case street == road:
			score += StreetExactBonus
		case matchesEither(street, road):
			score += StreetPartialBonus
		}
	}

	if parts.Number != "" && parts.Number == strings.TrimSpace(c.Address.HouseNumber) {
		score += NumberExactBonus
	}

	if parts.City != "" {
		city := Normalize(parts.City)
		for _, locality := range c.Address.Localities() {
			if matchesEither(city, Normalize(locality)) {
				score += CityBonus
				break
			}
		}
	}

	if parts.Province != "" && c.Address.State != "" {
		province := Normalize(parts.Province)
		state := Normalize(c.Address.State)
		if province == state || strings.Contains(state, province) {
			score += ProvinceBonus
		}
	}

	for _, region := range regions {
		if region.matches(parts.City) || region.matches(c.DisplayName) {
			score += region.Bonus
		}
	}

	return score
}

// Best returns the highest scoring candidate. Ties keep the provider's order.
func Best(candidates []models.Candidate, parts models.AddressParts, regions []Region) (Scored, bool) {
	var best Scored
	found := false

	for _, c := range candidates {
		s := Score(c, parts, regions)
		if !found || s > best.Score {
			best = Scored{Candidate: c, Score: s, ZoomLevel: ZoomForType(c.Type)}
			found = true
		}
	}

	return best, found
}
