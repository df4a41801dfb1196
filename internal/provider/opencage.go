package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/evyataryagoni/geocoder/internal/metrics"
	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/tidwall/gjson"
)

// DefaultOpenCageURL is the forward geocoding endpoint of OpenCage
const DefaultOpenCageURL = "https://api.opencagedata.com/geocode/v1/json"

// OpenCageConfig configures the OpenCage client
type OpenCageConfig struct {
	BaseURL     string
	APIKey      string
	CountryCode string // ISO code restricting results, e.g. "ar"
	Language    string // e.g. "es"
}

// OpenCage is the primary geocoder client. The API key stays on the server:
// callers only ever see the parsed results.
type OpenCage struct {
	http httpClient
	cfg  OpenCageConfig
}

// NewOpenCage creates an OpenCage client
//
// Parameters:
//   - cfg: endpoint, key and result restrictions
//   - client: HTTP client to use (nil for a default with a 10s timeout)
//   - m: metrics collector (optional, can be nil)
func NewOpenCage(cfg OpenCageConfig, client *http.Client, m *metrics.Metrics) *OpenCage {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenCageURL
	}
	return &OpenCage{
		http: newHTTPClient(NameOpenCage, client, m),
		cfg:  cfg,
	}
}

// Geocode forwards query to OpenCage and returns up to limit results.
// A missing key yields models.ErrProviderUnavailable without any request.
func (o *OpenCage) Geocode(ctx context.Context, query string, limit int) ([]models.OpenCageResult, error) {
	if o.cfg.APIKey == "" {
		return nil, fmt.Errorf("opencage: %w", models.ErrProviderUnavailable)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("key", o.cfg.APIKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("no_annotations", "1")
	if o.cfg.CountryCode != "" {
		params.Set("countrycode", o.cfg.CountryCode)
	}
	if o.cfg.Language != "" {
		params.Set("language", o.cfg.Language)
	}

	body, err := o.http.get(ctx, "geocode", o.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	return parseOpenCage(body)
}

// parseOpenCage extracts results from an OpenCage envelope:
//
//	{"status":{"code":200,"message":"OK"},"results":[{"geometry":{"lat":..,"lng":..},"formatted":..,"components":{..},"confidence":..}]}
func parseOpenCage(body []byte) ([]models.OpenCageResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("opencage: invalid JSON payload")
	}
	js := gjson.ParseBytes(body)

	if code := js.Get("status.code"); code.Exists() && code.Int() != http.StatusOK {
		return nil, fmt.Errorf("opencage: %w: %s", models.ErrProviderReported, js.Get("status.message").String())
	}

	raw := js.Get("results").Array()
	results := make([]models.OpenCageResult, 0, len(raw))
	for _, r := range raw {
		geometry := r.Get("geometry")
		if !geometry.Get("lat").Exists() || !geometry.Get("lng").Exists() {
			continue
		}

		components := make(map[string]string)
		r.Get("components").ForEach(func(key, value gjson.Result) bool {
			// "_type", "ISO_3166-1_alpha-2" and friends are strings too; nested objects are skipped
			if value.Type == gjson.String || value.Type == gjson.Number {
				components[key.String()] = value.String()
			}
			return true
		})

		results = append(results, models.OpenCageResult{
			Lat:        geometry.Get("lat").Float(),
			Lng:        geometry.Get("lng").Float(),
			Formatted:  r.Get("formatted").String(),
			Components: components,
			Confidence: int(r.Get("confidence").Int()),
		})
	}

	return results, nil
}
