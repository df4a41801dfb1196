// Package provider holds the HTTP clients of the external geocoders: the
// commercial primary geocoder (OpenCage) and the open index (Nominatim).
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evyataryagoni/geocoder/internal/metrics"
	"github.com/evyataryagoni/geocoder/internal/models"
)

// Provider names used in logs and metrics
const (
	NameOpenCage  = "opencage"
	NameNominatim = "nominatim"
)

// maxBodySize caps how much of a provider answer is read
const maxBodySize = 4 << 20

// PrimaryProvider is the commercial geocoder queried first
type PrimaryProvider interface {
	Geocode(ctx context.Context, query string, limit int) ([]models.OpenCageResult, error)
}

// SearchProvider is the open index queried with address variants
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)
}

// ReverseProvider turns a coordinate pair into an address
type ReverseProvider interface {
	Reverse(ctx context.Context, lat, lon float64) (*models.ReverseAddress, error)
}

// httpClient is the part shared by every provider: one http.Client, an
// optional metrics collector and the request/response plumbing.
type httpClient struct {
	name    string
	client  *http.Client
	metrics *metrics.Metrics
}

func newHTTPClient(name string, client *http.Client, m *metrics.Metrics) httpClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return httpClient{name: name, client: client, metrics: m}
}

// get performs a GET and returns the body of a 200 answer.
// Any other status is wrapped in models.ErrProviderStatus.
func (c httpClient) get(ctx context.Context, operation, reqURL string, header http.Header) (body []byte, err error) {
	start := time.Now()
	defer func() {
		c.observe(operation, start, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", c.name, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: %w: %d", c.name, operation, models.ErrProviderStatus, resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.name, err)
	}
	return body, nil
}

func (c httpClient) observe(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.ProviderRequestsTotal.WithLabelValues(c.name, operation, status).Inc()
	c.metrics.ProviderDuration.WithLabelValues(c.name, operation).Observe(time.Since(start).Seconds())
}
