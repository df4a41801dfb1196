package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evyataryagoni/geocoder/internal/app"
	"github.com/evyataryagoni/geocoder/internal/config"
	"github.com/evyataryagoni/geocoder/internal/handler"
	"github.com/evyataryagoni/geocoder/internal/limiter"
	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/evyataryagoni/geocoder/internal/metrics"
	"github.com/evyataryagoni/geocoder/internal/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	appConfig := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize components
	appLogger := setupLogger(appConfig)
	metricsCollector := setupMetrics(appLogger)

	geocoder := setupApp(ctx, appConfig, metricsCollector, appLogger)
	defer geocoder.Close()

	rateLimiter := setupRateLimiter(ctx, geocoder, appLogger)

	// Drop idle sessions in the background
	go geocoder.Sessions.Run(ctx, appConfig.SessionCleanup)

	// Build application layers
	geocodeHandler := handler.NewGeocodeHandler(geocoder.Service, appLogger)
	appRouter := router.SetupRouter(geocodeHandler, geocoder.Sessions, rateLimiter, metricsCollector, appLogger)

	// Start server
	startServer(ctx, appConfig, appRouter, appLogger)
}

// setupLogger initializes the structured logger
func setupLogger(appConfig *config.Config) *logger.Logger {
	appLogger := logger.New(logger.Config{
		Level:  appConfig.LogLevel,
		Pretty: true,
	})

	appLogger.Info().Msg("Starting geocoding server...")
	appLogger.Info().
		Str("port", appConfig.Port).
		Str("rate_limiter_type", appConfig.RateLimitType).
		Float64("rate_limit", appConfig.RateLimit).
		Int("rate_limit_window", appConfig.RateLimitWindow).
		Str("known_store_type", appConfig.KnownStoreType).
		Str("cache_type", appConfig.CacheType).
		Dur("cache_ttl", appConfig.CacheTTL).
		Str("target_country", appConfig.TargetCountry).
		Bool("opencage_key", appConfig.OpenCageAPIKey != "").
		Msg("Configuration loaded")

	return appLogger
}

// setupMetrics initializes the Prometheus metrics collector
func setupMetrics(log *logger.Logger) *metrics.Metrics {
	metricsCollector := metrics.New()
	log.Info().Msg("Metrics initialized")
	return metricsCollector
}

// setupApp builds the known store, cache, providers and service
func setupApp(ctx context.Context, appConfig *config.Config, m *metrics.Metrics, log *logger.Logger) *app.App {
	geocoder, err := app.Build(ctx, appConfig, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize geocoding service")
	}
	return geocoder
}

// setupRateLimiter initializes the rate limiter
// Supports in-memory and Redis-based rate limiting
func setupRateLimiter(ctx context.Context, geocoder *app.App, log *logger.Logger) limiter.Limiter {
	rateLimiter, err := geocoder.BuildLimiter(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}

	log.Info().
		Str("type", geocoder.Config.RateLimitType).
		Float64("requests_per_second", geocoder.Config.RequestsPerSecond()).
		Msg("Rate limiter initialized")

	return rateLimiter
}

// startServer serves until ctx is cancelled, then drains in-flight requests
func startServer(ctx context.Context, appConfig *config.Config, appRouter http.Handler, log *logger.Logger) {
	server := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           appRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	log.Info().
		Str("port", appConfig.Port).
		Str("api_endpoint", "http://localhost:"+appConfig.Port+"/v1/geocode?q=<address>").
		Str("proxy_endpoint", "http://localhost:"+appConfig.Port+"/api/geocode?q=<address>").
		Str("health_check", "http://localhost:"+appConfig.Port+"/health").
		Str("metrics", "http://localhost:"+appConfig.Port+"/metrics").
		Msg("Server is running")

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}
