package models

import "errors"

var (
	// ErrInvalidQuery is returned when an address query has no usable field
	ErrInvalidQuery = errors.New("invalid address query")

	// ErrInvalidCoordinates is returned for coordinates outside WGS84 ranges
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrNotFound means every resolution step was exhausted without a location
	ErrNotFound = errors.New("location not found")

	// ErrSuperseded is the cancellation cause of a resolution replaced by a newer one in the same session
	ErrSuperseded = errors.New("resolution superseded by a newer request")

	// ErrProviderStatus wraps non-OK HTTP answers from a provider
	ErrProviderStatus = errors.New("provider returned an unexpected status")

	// ErrProviderReported wraps application errors reported in a provider payload
	ErrProviderReported = errors.New("provider reported an error")

	// ErrProviderUnavailable is returned when a provider is not configured
	ErrProviderUnavailable = errors.New("provider not configured")

	// ErrEmptyResult means the provider answered without candidates
	ErrEmptyResult = errors.New("provider returned no candidates")

	// ErrStoreNotFound is returned by known-location stores on a miss
	ErrStoreNotFound = errors.New("known location not found")

	// ErrCacheMiss is returned by caches on a miss
	ErrCacheMiss = errors.New("cache miss")
)
