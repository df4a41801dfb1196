package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port     string
	LogLevel string

	// Rate limiting
	RateLimitType   string  // "memory" or "redis"
	RateLimit       float64 // requests allowed per window
	RateLimitWindow int     // window in seconds

	// Known-location tables
	KnownStoreType     string // "memory", "csv", "mysql" or "redis"
	KnownAddressesPath string
	KnownCitiesPath    string

	// Persistent result cache
	CacheType string // "memory", "redis" or "mysql"
	CacheTTL  time.Duration

	// MySQL configuration
	MySQLDSN string // Data Source Name

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Providers
	OpenCageAPIKey     string
	OpenCageURL        string
	NominatimURL       string
	NominatimUserAgent string

	// Resolver tuning
	TargetCountry   string
	CountryCode     string
	Language        string
	VariantStagger  time.Duration
	ProviderTimeout time.Duration
	ReverseTimeout  time.Duration
	ResolveTimeout  time.Duration

	// Sessions
	SessionIdleTimeout time.Duration
	SessionCleanup     time.Duration
	SessionMax         int
}

// Load reads configuration from environment variables
// with sensible defaults
func Load() *Config {
	// Load .env file if it exists (for local development)
	// In production/Docker, environment variables are set directly
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables or defaults")
	}

	return &Config{
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Rate limiting (default: memory, 10 requests per 1 second)
		RateLimitType:   getEnv("RATE_LIMITER_TYPE", "memory"),
		RateLimit:       getEnvAsFloat("RATE_LIMIT", 10),
		RateLimitWindow: getEnvAsInt("RATE_LIMIT_WINDOW", 1),

		KnownStoreType:     getEnv("KNOWN_STORE_TYPE", "memory"),
		KnownAddressesPath: getEnv("KNOWN_ADDRESSES_PATH", "./data/known_addresses.csv"),
		KnownCitiesPath:    getEnv("KNOWN_CITIES_PATH", "./data/known_cities.csv"),

		CacheType: getEnv("CACHE_TYPE", "memory"),
		CacheTTL:  getEnvAsDuration("CACHE_TTL", 24*time.Hour),

		MySQLDSN: getEnv("MYSQL_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		OpenCageAPIKey:     getEnv("OPENCAGE_API_KEY", ""),
		OpenCageURL:        getEnv("OPENCAGE_URL", "https://api.opencagedata.com/geocode/v1/json"),
		NominatimURL:       getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", "geocoder/1.0"),

		TargetCountry:   getEnv("TARGET_COUNTRY", "Argentina"),
		CountryCode:     getEnv("COUNTRY_CODE", "ar"),
		Language:        getEnv("LANGUAGE", "es"),
		VariantStagger:  getEnvAsDuration("VARIANT_STAGGER", 200*time.Millisecond),
		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 3*time.Second),
		ReverseTimeout:  getEnvAsDuration("REVERSE_TIMEOUT", 5*time.Second),
		ResolveTimeout:  getEnvAsDuration("RESOLVE_TIMEOUT", 30*time.Second),

		SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionCleanup:     getEnvAsDuration("SESSION_CLEANUP_INTERVAL", time.Minute),
		SessionMax:         getEnvAsInt("SESSION_MAX", 10000),
	}
}

// RequestsPerSecond converts the configured window into a rate
func (c *Config) RequestsPerSecond() float64 {
	if c.RateLimitWindow <= 0 {
		return c.RateLimit
	}
	return c.RateLimit / float64(c.RateLimitWindow)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt reads an environment variable as an integer
// Returns default if not set or invalid
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat reads an environment variable as a float64
// Returns default if not set or invalid
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration reads a Go duration ("200ms", "24h").
// A bare number is taken as seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}

	return defaultValue
}
