package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/metrics"
	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/tidwall/gjson"
)

// DefaultNominatimURL is the public Nominatim instance
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// DefaultUserAgent identifies the service to Nominatim, which rejects anonymous clients
const DefaultUserAgent = "geocoder/1.0"

// reverseZoom asks Nominatim for building-level detail
const reverseZoom = 18

// NominatimConfig configures the Nominatim client
type NominatimConfig struct {
	BaseURL      string
	UserAgent    string
	CountryCodes string // comma separated ISO codes, e.g. "ar"
	Language     string // accept-language, e.g. "es"
}

// Nominatim is the open index client used for variant search and reverse geocoding
type Nominatim struct {
	http   httpClient
	cfg    NominatimConfig
	header http.Header
}

// NewNominatim creates a Nominatim client
func NewNominatim(cfg NominatimConfig, client *http.Client, m *metrics.Metrics) *Nominatim {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNominatimURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	header := http.Header{}
	header.Set("User-Agent", cfg.UserAgent)
	header.Set("Accept", "application/json")

	return &Nominatim{
		http:   newHTTPClient(NameNominatim, client, m),
		cfg:    cfg,
		header: header,
	}
}

type nominatimPlace struct {
	Lat         float64          `json:"lat,string"`
	Lon         float64          `json:"lon,string"`
	DisplayName string           `json:"display_name"`
	Type        string           `json:"type"`
	AddressType string           `json:"addresstype"`
	Importance  float64          `json:"importance"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	Road          string `json:"road"`
	Pedestrian    string `json:"pedestrian"`
	Footway       string `json:"footway"`
	Path          string `json:"path"`
	HouseNumber   string `json:"house_number"`
	Residential   string `json:"residential"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Hamlet        string `json:"hamlet"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
	CountryCode   string `json:"country_code"`
}

// Search queries /search and returns the candidates in provider order
func (n *Nominatim) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	if n.cfg.CountryCodes != "" {
		params.Set("countrycodes", n.cfg.CountryCodes)
	}
	if n.cfg.Language != "" {
		params.Set("accept-language", n.cfg.Language)
	}

	body, err := n.http.get(ctx, "search", n.cfg.BaseURL+"/search?"+params.Encode(), n.header)
	if err != nil {
		return nil, err
	}
	if err := reportedError(body); err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim search payload: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(places))
	for _, p := range places {
		candidates = append(candidates, p.candidate())
	}
	return candidates, nil
}

// Reverse queries /reverse at building zoom and enriches the address:
// road falls back to pedestrian, footway then path, and IsUrban is set when
// any street-level field is present.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (*models.ReverseAddress, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("zoom", strconv.Itoa(reverseZoom))
	params.Set("addressdetails", "1")
	if n.cfg.Language != "" {
		params.Set("accept-language", n.cfg.Language)
	}

	body, err := n.http.get(ctx, "reverse", n.cfg.BaseURL+"/reverse?"+params.Encode(), n.header)
	if err != nil {
		return nil, err
	}
	if err := reportedError(body); err != nil {
		return nil, err
	}

	var place nominatimPlace
	if err := json.Unmarshal(body, &place); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim reverse payload: %w", err)
	}

	return place.reverseAddress(), nil
}

// reportedError turns {"error": "..."} payloads into models.ErrProviderReported
func reportedError(body []byte) error {
	msg := gjson.GetBytes(body, "error")
	if !msg.Exists() {
		return nil
	}
	// the message is either a string or {"code":..,"message":..}
	text := msg.String()
	if m := msg.Get("message"); m.Exists() {
		text = m.String()
	}
	return fmt.Errorf("nominatim: %w: %s", models.ErrProviderReported, text)
}

func (p nominatimPlace) candidate() models.Candidate {
	placeType := p.Type
	if placeType == "" {
		placeType = p.AddressType
	}
	return models.Candidate{
		Lat:         p.Lat,
		Lon:         p.Lon,
		DisplayName: p.DisplayName,
		Type:        placeType,
		Importance:  p.Importance,
		Address: models.CandidateAddress{
			Road:        p.Address.Road,
			HouseNumber: p.Address.HouseNumber,
			Suburb:      p.Address.Suburb,
			City:        p.Address.City,
			Town:        p.Address.Town,
			Village:     p.Address.Village,
			Hamlet:      p.Address.Hamlet,
			State:       p.Address.State,
			Postcode:    p.Address.Postcode,
			Country:     p.Address.Country,
			CountryCode: p.Address.CountryCode,
		},
	}
}

func (p nominatimPlace) reverseAddress() *models.ReverseAddress {
	a := p.Address

	road := a.Road
	switch {
	case road != "":
	case a.Pedestrian != "":
		road = a.Pedestrian
	case a.Footway != "":
		road = a.Footway
	case a.Path != "":
		road = a.Path
	}

	city := a.City
	for _, alt := range []string{a.Town, a.Village, a.Hamlet} {
		if city == "" {
			city = alt
		}
	}

	return &models.ReverseAddress{
		Lat:           p.Lat,
		Lon:           p.Lon,
		DisplayName:   p.DisplayName,
		Road:          road,
		HouseNumber:   a.HouseNumber,
		Suburb:        a.Suburb,
		Neighbourhood: a.Neighbourhood,
		City:          city,
		State:         a.State,
		Postcode:      a.Postcode,
		Country:       a.Country,
		CountryCode:   a.CountryCode,
		IsUrban:       road != "" || a.Suburb != "" || a.Neighbourhood != "" || a.Residential != "",
	}
}
