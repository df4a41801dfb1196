package service

import (
	"context"
	"fmt"

	"github.com/evyataryagoni/geocoder/internal/geocode"
	"github.com/evyataryagoni/geocoder/internal/models"
)

// GeocodeProgressive resolves the province/city/street form as the user
// fills it in. The query is as specific as the filled fields allow and the
// zoom hint follows that precision unless the resolver found a better one.
func (s *GeocodeService) GeocodeProgressive(ctx context.Context, sess *Session, p models.ProgressiveQuery) (*models.GeocodeResult, error) {
	if err := s.validate.Struct(p); err != nil {
		s.countError("validation")
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidQuery, err)
	}

	query, zoom, ok := geocode.ProgressiveQuery(p)
	if !ok {
		return nil, fmt.Errorf("%w: province is required", models.ErrInvalidQuery)
	}

	result, err := s.Resolve(ctx, sess, models.AddressQuery{Text: query})
	if err != nil {
		return nil, err
	}

	if result.ZoomLevel == 0 {
		hinted := *result
		hinted.ZoomLevel = zoom
		return &hinted, nil
	}
	return result, nil
}
