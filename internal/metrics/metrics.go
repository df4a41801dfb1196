package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Datastore Metrics
	DatastoreQueriesTotal  *prometheus.CounterVec
	DatastoreQueryDuration *prometheus.HistogramVec
	DatastoreCacheHits     *prometheus.CounterVec

	// Geocoding Metrics
	ResolutionsTotal      *prometheus.CounterVec
	ResolutionsNotFound   prometheus.Counter
	ResolutionsSuperseded prometheus.Counter
	GeocodeErrors         *prometheus.CounterVec
	ProviderRequestsTotal *prometheus.CounterVec
	ProviderDuration      *prometheus.HistogramVec
	VariantFanoutSize     prometheus.Histogram
	ReverseLookupsTotal   *prometheus.CounterVec
	SessionsActive        prometheus.Gauge
}

// New creates all Prometheus metrics and registers them with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all Prometheus metrics on reg.
// Tests pass a fresh prometheus.NewRegistry() so collectors never clash.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP Metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "endpoint", "status"},
		),

		// Datastore Metrics
		DatastoreQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datastore_queries_total",
				Help: "Total number of datastore queries",
			},
			[]string{"datastore", "operation", "status"},
		),

		DatastoreQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datastore_query_duration_seconds",
				Help:    "Datastore query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"datastore", "operation"},
		),

		DatastoreCacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datastore_cache_hits_total",
				Help: "Total number of cache hits vs misses",
			},
			[]string{"datastore", "result"},
		),

		// Geocoding Metrics
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geocode_resolutions_total",
				Help: "Total number of resolved addresses by the step that produced them",
			},
			[]string{"source"},
		),

		ResolutionsNotFound: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "geocode_resolutions_not_found_total",
				Help: "Total number of resolutions that exhausted every step",
			},
		),

		ResolutionsSuperseded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "geocode_resolutions_superseded_total",
				Help: "Total number of resolutions cancelled by a newer request in the same session",
			},
		),

		GeocodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geocode_errors_total",
				Help: "Total number of geocoding errors by kind",
			},
			[]string{"error_type"},
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geocode_provider_requests_total",
				Help: "Total number of requests sent to geocoding providers",
			},
			[]string{"provider", "operation", "status"},
		),

		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geocode_provider_duration_seconds",
				Help:    "Geocoding provider latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),

		VariantFanoutSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "geocode_variant_fanout_size",
				Help:    "Number of query variants sent to the open index per resolution",
				Buckets: prometheus.LinearBuckets(1, 2, 10),
			},
		),

		ReverseLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geocode_reverse_lookups_total",
				Help: "Total number of reverse geocoding lookups",
			},
			[]string{"result"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "geocode_sessions_active",
				Help: "Number of live resolver sessions",
			},
		),
	}
}
