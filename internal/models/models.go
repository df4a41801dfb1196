package models

import "strings"

// Result sources
const (
	SourceKnown        = "known"
	SourceCache        = "cache"
	SourceCityTable    = "city_table"
	SourceOpenCage     = "opencage"
	SourceNominatim    = "nominatim"
	SourceCityFallback = "city_fallback"
)

// AddressQuery is the caller's input: free text or structured fields
// At least one field must be set; values are used as typed by the user
type AddressQuery struct {
	Text        string `json:"q,omitempty" validate:"required_without_all=Street City Province Country"`
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"number,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	Country     string `json:"country,omitempty"`
}

// String renders the query as the single line sent to providers
// Free text wins when present
func (q AddressQuery) String() string {
	if strings.TrimSpace(q.Text) != "" {
		return strings.TrimSpace(q.Text)
	}

	street := strings.TrimSpace(strings.TrimSpace(q.Street) + " " + strings.TrimSpace(q.HouseNumber))

	segments := make([]string, 0, 4)
	for _, s := range []string{street, q.City, q.Province, q.Country} {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, ", ")
}

// ProgressiveQuery is the structured province/city/street form input
type ProgressiveQuery struct {
	Country  string `json:"country,omitempty"`
	Province string `json:"province" validate:"required"`
	City     string `json:"city,omitempty"`
	Street   string `json:"street,omitempty"`
}

// AddressParts is the best-effort split of a free-text address
type AddressParts struct {
	Street          string `json:"street,omitempty"`
	Number          string `json:"number,omitempty"`
	SpecificAddress string `json:"specificAddress,omitempty"`
	City            string `json:"city,omitempty"`
	Province        string `json:"province,omitempty"`
	Country         string `json:"country,omitempty"`
	FullAddress     string `json:"fullAddress,omitempty"`
}

// GeocodeResult is a resolved location
// Score is the confidence attached by the step that produced it (0..1),
// Relevance the heuristic points earned during candidate ranking
type GeocodeResult struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
	Type        string  `json:"type"`
	Score       float64 `json:"score"`
	Relevance   int     `json:"relevance,omitempty"`
	ZoomLevel   int     `json:"zoomLevel"`
	Source      string  `json:"source"`
	Fallback    bool    `json:"fallback,omitempty"`
	Cached      bool    `json:"cached,omitempty"`
}

// KnownLocation is a curated address with fixed coordinates
type KnownLocation struct {
	Key     string  `json:"key"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Type    string  `json:"type"`
	Display string  `json:"display"`
	Zoom    int     `json:"zoom"`
}

// KnownCity is a curated city centre
type KnownCity struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// CacheEntry is what the result caches store under geocode_<normalized-query>
// Timestamp is in Unix milliseconds
type CacheEntry struct {
	Lat       float64        `json:"lat"`
	Lon       float64        `json:"lon"`
	Result    *GeocodeResult `json:"result"`
	ZoomLevel int            `json:"zoomLevel"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// Candidate is one result from the open geocoding index
type Candidate struct {
	Lat         float64          `json:"lat"`
	Lon         float64          `json:"lon"`
	DisplayName string           `json:"display_name"`
	Type        string           `json:"type"`
	Importance  float64          `json:"importance"`
	Address     CandidateAddress `json:"address"`
}

// CandidateAddress holds the address details of a Candidate
type CandidateAddress struct {
	Road        string `json:"road,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	Suburb      string `json:"suburb,omitempty"`
	City        string `json:"city,omitempty"`
	Town        string `json:"town,omitempty"`
	Village     string `json:"village,omitempty"`
	Hamlet      string `json:"hamlet,omitempty"`
	State       string `json:"state,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// Localities returns the city-like fields in lookup order
func (a CandidateAddress) Localities() []string {
	return []string{a.City, a.Town, a.Village, a.Hamlet}
}

// OpenCageResult is one result of the proxied commercial geocoder
type OpenCageResult struct {
	Lat        float64           `json:"lat"`
	Lng        float64           `json:"lng"`
	Formatted  string            `json:"formatted"`
	Components map[string]string `json:"components"`
	Confidence int               `json:"confidence,omitempty"`
}

// ReverseAddress is the address found for a coordinate pair
type ReverseAddress struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	DisplayName   string  `json:"display_name"`
	Road          string  `json:"road,omitempty"`
	HouseNumber   string  `json:"house_number,omitempty"`
	Suburb        string  `json:"suburb,omitempty"`
	Neighbourhood string  `json:"neighbourhood,omitempty"`
	City          string  `json:"city,omitempty"`
	State         string  `json:"state,omitempty"`
	Postcode      string  `json:"postcode,omitempty"`
	Country       string  `json:"country,omitempty"`
	CountryCode   string  `json:"country_code,omitempty"`
	IsUrban       bool    `json:"isUrbanAddress"`
}

// Coordinates is a WGS84 pair as received from callers
type Coordinates struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

// GeocodeResponse is returned by the forward geocoding endpoints
type GeocodeResponse struct {
	Lat       float64        `json:"lat"`
	Lon       float64        `json:"lon"`
	ZoomLevel int            `json:"zoomLevel"`
	Result    *GeocodeResult `json:"result"`
}

// SuggestionsResponse wraps autocomplete suggestions
type SuggestionsResponse struct {
	Suggestions []OpenCageResult `json:"suggestions"`
}

// ProxyResponse mirrors the envelope of the proxied provider endpoint
type ProxyResponse struct {
	Results []OpenCageResult `json:"results"`
	Error   string           `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}
