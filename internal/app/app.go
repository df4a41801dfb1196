// Package app assembles the geocoding service from configuration.
// Both the HTTP server and the command-line tool build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/cache"
	"github.com/evyataryagoni/geocoder/internal/config"
	"github.com/evyataryagoni/geocoder/internal/limiter"
	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/evyataryagoni/geocoder/internal/metrics"
	"github.com/evyataryagoni/geocoder/internal/provider"
	"github.com/evyataryagoni/geocoder/internal/service"
	"github.com/evyataryagoni/geocoder/internal/store"
)

// App holds the assembled components
type App struct {
	Config   *config.Config
	Known    store.KnownStore
	Cache    cache.Cache
	Service  *service.GeocodeService
	Sessions *service.SessionManager
	Metrics  *metrics.Metrics
	Conns    *Connections

	logger  *logger.Logger
	closers []func() error
}

// Build wires stores, cache, providers and the service from cfg.
// m may be nil to run without metrics.
func Build(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*App, error) {
	return BuildWith(ctx, cfg, NewConnections(cfg), m, log)
}

// BuildWith is Build on an existing connection set
func BuildWith(ctx context.Context, cfg *config.Config, conns *Connections, m *metrics.Metrics, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Global()
	}
	a := &App{Config: cfg, Metrics: m, Conns: conns, logger: log.WithComponent("App")}

	known, err := BuildKnownStore(ctx, cfg, conns, log)
	if err != nil {
		conns.Close()
		return nil, err
	}
	a.Known = known
	if !usesConnection(cfg.KnownStoreType) {
		a.closers = append(a.closers, known.Close)
	}

	resultCache, err := BuildCache(ctx, cfg, conns)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = resultCache
	if resultCache != nil && !usesConnection(cfg.CacheType) {
		a.closers = append(a.closers, resultCache.Close)
	}

	primary, search, reverse := BuildProviders(cfg, m)
	a.Service = service.NewGeocodeService(service.Deps{
		Known:   known,
		Cache:   resultCache,
		Primary: primary,
		Search:  search,
		Reverse: reverse,
		Metrics: m,
		Logger:  log,
	}, Options(cfg))
	a.Sessions = service.NewSessionManager(cfg.SessionIdleTimeout, m)
	a.Sessions.SetLimit(cfg.SessionMax)

	a.logger.Info().
		Str("known_store", cfg.KnownStoreType).
		Str("cache", cfg.CacheType).
		Bool("primary_provider", primary != nil).
		Msg("Geocoding service assembled")

	return a, nil
}

// BuildLimiter creates the rate limiter, reusing the shared Redis client for the redis type
func (a *App) BuildLimiter(ctx context.Context) (limiter.Limiter, error) {
	cfg := limiter.LimiterConfig{
		Type:              a.Config.RateLimitType,
		RequestsPerSecond: a.Config.RequestsPerSecond(),
	}

	shared := strings.EqualFold(strings.TrimSpace(a.Config.RateLimitType), "redis")
	if shared {
		client, err := a.Conns.Redis(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis limiter: %w", err)
		}
		cfg.Client = client
	}

	l, err := limiter.NewLimiter(cfg)
	if err != nil {
		return nil, err
	}
	if !shared {
		a.closers = append(a.closers, l.Close)
	}
	return l, nil
}

// Close releases every component and the shared connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	errs = append(errs, a.Conns.Close())
	return errors.Join(errs...)
}

// Options maps the configuration onto resolver options
func Options(cfg *config.Config) service.Options {
	return service.Options{
		Country:        cfg.TargetCountry,
		Stagger:        cfg.VariantStagger,
		RequestTimeout: cfg.ProviderTimeout,
		ReverseTimeout: cfg.ReverseTimeout,
		ResolveTimeout: cfg.ResolveTimeout,
		CacheTTL:       cfg.CacheTTL,
	}
}

// BuildProviders creates the provider clients. The primary provider is nil
// without an OpenCage key; the open index serves both search and reverse.
func BuildProviders(cfg *config.Config, m *metrics.Metrics) (provider.PrimaryProvider, provider.SearchProvider, provider.ReverseProvider) {
	var primary provider.PrimaryProvider
	if cfg.OpenCageAPIKey != "" {
		primary = provider.NewOpenCage(provider.OpenCageConfig{
			BaseURL:     cfg.OpenCageURL,
			APIKey:      cfg.OpenCageAPIKey,
			CountryCode: cfg.CountryCode,
			Language:    cfg.Language,
		}, nil, m)
	}

	nominatim := provider.NewNominatim(provider.NominatimConfig{
		BaseURL:      cfg.NominatimURL,
		UserAgent:    cfg.NominatimUserAgent,
		CountryCodes: cfg.CountryCode,
		Language:     cfg.Language,
	}, nil, m)

	return primary, nominatim, nominatim
}

// usesConnection reports whether a backend type runs on a shared connection
func usesConnection(backend string) bool {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "mysql", "redis":
		return true
	}
	return false
}
