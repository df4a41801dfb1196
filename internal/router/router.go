package router

import (
	"github.com/evyataryagoni/geocoder/internal/handler"
	"github.com/evyataryagoni/geocoder/internal/limiter"
	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/evyataryagoni/geocoder/internal/metrics"
	custommiddleware "github.com/evyataryagoni/geocoder/internal/middleware"
	v1 "github.com/evyataryagoni/geocoder/internal/router/v1"
	"github.com/evyataryagoni/geocoder/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the Chi router with all middleware and routes
//
// Parameters:
//   - h: the geocoding handler
//   - sessions: session manager backing the X-Session-ID header
//   - rateLimiter: the rate limiter (memory or Redis)
//   - m: metrics collector
//   - log: structured logger
func SetupRouter(h *handler.GeocodeHandler, sessions *service.SessionManager, rateLimiter limiter.Limiter, m *metrics.Metrics, log *logger.Logger) chi.Router {
	r := chi.NewRouter()

	// Order matters: request ID and real IP first
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.LoggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(custommiddleware.MetricsMiddleware(m))

	// Health and metrics are neither rate limited nor session bound
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		// Rejected requests never create a session
		r.Use(custommiddleware.RateLimitMiddleware(rateLimiter))
		r.Use(custommiddleware.SessionMiddleware(sessions))

		r.Mount("/v1", v1.SetupRoutes(h))

		// Server-side proxy of the primary provider
		r.Get("/api/geocode", h.Proxy)
	})

	return r
}
