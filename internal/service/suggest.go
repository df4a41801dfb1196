package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/evyataryagoni/geocoder/internal/geocode"
	"github.com/evyataryagoni/geocoder/internal/models"
)

// maxProxyLimit caps the limit a caller may ask the proxied provider for
const maxProxyLimit = 10

// Suggest returns autocomplete suggestions for one form field.
// Inputs shorter than geocode.MinSuggestionLength return nothing without
// any request.
func (s *GeocodeService) Suggest(ctx context.Context, text, field string, sc geocode.SuggestionContext) ([]models.OpenCageResult, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < geocode.MinSuggestionLength {
		return []models.OpenCageResult{}, nil
	}

	switch field {
	case geocode.FieldProvince, geocode.FieldCity, geocode.FieldAddress:
	default:
		return nil, fmt.Errorf("%w: unknown field %q", models.ErrInvalidQuery, field)
	}

	if sc.Country == "" {
		sc.Country = s.opts.Country
	}

	results, err := s.Proxy(ctx, geocode.SuggestionQuery(text, field, sc), s.opts.SuggestLimit)
	if err != nil {
		return nil, err
	}

	return geocode.FilterSuggestions(results, field), nil
}

// Proxy forwards a free query to the primary provider, keeping its API
// key on the server. limit is clamped to 1..10.
func (s *GeocodeService) Proxy(ctx context.Context, query string, limit int) ([]models.OpenCageResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", models.ErrInvalidQuery)
	}
	if s.primary == nil {
		return nil, fmt.Errorf("proxy: %w", models.ErrProviderUnavailable)
	}

	switch {
	case limit <= 0:
		limit = 1
	case limit > maxProxyLimit:
		limit = maxProxyLimit
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	results, err := s.primary.Geocode(reqCtx, query, limit)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("Proxied geocoding failed")
		return nil, fmt.Errorf("proxied geocoding failed: %w", err)
	}
	return results, nil
}
