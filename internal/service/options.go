package service

import (
	"time"

	"github.com/evyataryagoni/geocoder/internal/geocode"
)

// Options tunes the resolver. Zero fields take the DefaultOptions value.
type Options struct {
	// Country is the target country name used for filtering and query suffixes
	Country string

	// Regions are the localities with extra query variants and a score bonus
	Regions []geocode.Region

	// Stagger is the launch delay between two variant requests
	Stagger time.Duration

	// RequestTimeout bounds each provider request of a forward resolution
	RequestTimeout time.Duration

	// ReverseTimeout bounds a reverse lookup
	ReverseTimeout time.Duration

	// ResolveTimeout bounds the shared part of a resolution (provider calls included)
	ResolveTimeout time.Duration

	// CacheTTL is the freshness window of the persistent cache
	CacheTTL time.Duration

	PrimaryLimit int
	SearchLimit  int
	SuggestLimit int

	// ReverseResolution is the H3 resolution keying the reverse cache
	ReverseResolution int

	// ReverseCacheSize caps the reverse cache; it is reset when full
	ReverseCacheSize int
}

// DefaultOptions returns the resolver defaults
func DefaultOptions() Options {
	return Options{
		Country:           geocode.DefaultCountry,
		Regions:           geocode.DefaultRegions(),
		Stagger:           200 * time.Millisecond,
		RequestTimeout:    3 * time.Second,
		ReverseTimeout:    5 * time.Second,
		ResolveTimeout:    30 * time.Second,
		CacheTTL:          24 * time.Hour,
		PrimaryLimit:      5,
		SearchLimit:       5,
		SuggestLimit:      5,
		ReverseResolution: 12,
		ReverseCacheSize:  10000,
	}
}

// withDefaults fills zero fields. A non-nil empty Regions disables the
// regional corrections and a negative Stagger launches every variant at once.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Country == "" {
		o.Country = d.Country
	}
	if o.Regions == nil {
		o.Regions = d.Regions
	}
	if o.Stagger < 0 {
		o.Stagger = 0
	} else if o.Stagger == 0 {
		o.Stagger = d.Stagger
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.ReverseTimeout <= 0 {
		o.ReverseTimeout = d.ReverseTimeout
	}
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = d.ResolveTimeout
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = d.CacheTTL
	}
	if o.PrimaryLimit <= 0 {
		o.PrimaryLimit = d.PrimaryLimit
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = d.SearchLimit
	}
	if o.SuggestLimit <= 0 {
		o.SuggestLimit = d.SuggestLimit
	}
	if o.ReverseResolution <= 0 || o.ReverseResolution > 15 {
		o.ReverseResolution = d.ReverseResolution
	}
	if o.ReverseCacheSize <= 0 {
		o.ReverseCacheSize = d.ReverseCacheSize
	}
	return o
}
