package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/cache"
	"github.com/evyataryagoni/geocoder/internal/config"
	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/evyataryagoni/geocoder/internal/store"
)

// BuildKnownStore initializes the known-location store based on configuration
// Supports memory (built-in tables), CSV, MySQL and Redis backends
func BuildKnownStore(ctx context.Context, cfg *config.Config, conns *Connections, log *logger.Logger) (store.KnownStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.KnownStoreType)) {
	case "memory", "":
		return store.NewDefaultStore(), nil

	case "csv":
		csvStore, err := store.NewCSVStore(cfg.KnownAddressesPath, cfg.KnownCitiesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize CSV store: %w", err)
		}
		return csvStore, nil

	case "mysql":
		db, err := conns.MySQL()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MySQL store: %w", err)
		}
		if err := db.AutoMigrate(&store.KnownAddressModel{}, &store.KnownCityModel{}); err != nil {
			return nil, fmt.Errorf("failed to migrate known-location tables: %w", err)
		}
		return store.NewMySQLStoreWithDB(db), nil

	case "redis":
		client, err := conns.Redis(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis store: %w", err)
		}
		redisStore := store.NewRedisStoreWithClient(client)
		SeedIfEmpty(ctx, redisStore, cfg, log)
		return redisStore, nil

	default:
		return nil, fmt.Errorf("unknown known store type: %s (supported: 'memory', 'csv', 'mysql', 'redis')", cfg.KnownStoreType)
	}
}

// SeedIfEmpty loads the CSV tables into an empty Redis store. When the files
// cannot be read the built-in tables are loaded instead.
func SeedIfEmpty(ctx context.Context, redisStore *store.RedisStore, cfg *config.Config, log *logger.Logger) {
	empty, err := redisStore.IsEmpty(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to check if Redis is empty")
		return
	}
	if !empty {
		return
	}

	stats, err := redisStore.LoadFromCSV(ctx, cfg.KnownAddressesPath, cfg.KnownCitiesPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load known tables from CSV, using built-in tables")
		stats, err = store.Copy(ctx, redisStore, store.NewDefaultStore())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load built-in known tables")
			return
		}
	}

	log.Info().
		Int("addresses", stats.Addresses).
		Int("cities", stats.Cities).
		Msg("Redis known tables were empty, loaded")
}

// BuildCache initializes the persistent result cache. The "none" type
// disables it and returns a nil cache.
func BuildCache(ctx context.Context, cfg *config.Config, conns *Connections) (cache.Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CacheType)) {
	case "memory", "":
		return cache.NewMemoryCache(), nil

	case "none":
		return nil, nil

	case "redis":
		client, err := conns.Redis(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		return cache.NewRedisCacheWithClient(client), nil

	case "mysql":
		db, err := conns.MySQL()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MySQL cache: %w", err)
		}
		return cache.NewMySQLCache(db)

	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: 'memory', 'redis', 'mysql', 'none')", cfg.CacheType)
	}
}
