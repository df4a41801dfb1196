package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/geocode"
	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes of the known-location tables
const (
	addressPrefix = "known:address:"
	cityPrefix    = "known:city:"
)

// RedisStore implements KnownStore using Redis
//
// Redis Key Format: known:address:<key> and known:city:<name>
// Example: known:city:rosario
// Value: JSON-encoded KnownLocation / KnownCity
//
// Redis keeps no insertion order, so substring matches scan keys in sorted order.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string if no password)
//   - db: Redis database number (0-15, default is 0)
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// FindAddress implements KnownStore
func (s *RedisStore) FindAddress(ctx context.Context, key string) (*models.KnownLocation, error) {
	var location models.KnownLocation
	if err := s.find(ctx, addressPrefix, geocode.Normalize(key), &location); err != nil {
		return nil, fmt.Errorf("address %q: %w", key, err)
	}
	return &location, nil
}

// FindCity implements KnownStore
func (s *RedisStore) FindCity(ctx context.Context, name string) (*models.KnownCity, error) {
	var city models.KnownCity
	if err := s.find(ctx, cityPrefix, geocode.Normalize(name), &city); err != nil {
		return nil, fmt.Errorf("city %q: %w", name, err)
	}
	return &city, nil
}

func (s *RedisStore) find(ctx context.Context, prefix, key string, dest any) error {
	if key == "" {
		return models.ErrStoreNotFound
	}

	val, err := s.client.Get(ctx, prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		keys, scanErr := s.keys(ctx, prefix)
		if scanErr != nil {
			return scanErr
		}
		i, ok := geocode.MatchKey(keys, key)
		if !ok {
			return models.ErrStoreNotFound
		}
		val, err = s.client.Get(ctx, prefix+keys[i]).Result()
	}
	if errors.Is(err, redis.Nil) {
		return models.ErrStoreNotFound
	}
	if err != nil {
		return fmt.Errorf("Redis query failed: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to decode known location: %w", err)
	}
	return nil
}

// keys returns the table keys under prefix, without it, sorted
func (s *RedisStore) keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan Redis keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// SaveAddresses implements Loader (no expiration)
func (s *RedisStore) SaveAddresses(ctx context.Context, locations []models.KnownLocation) error {
	if len(locations) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, l := range locations {
		l.Key = geocode.Normalize(l.Key)
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to encode known address: %w", err)
		}
		pipe.Set(ctx, addressPrefix+l.Key, data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store known addresses in Redis: %w", err)
	}
	return nil
}

// SaveCities implements Loader (no expiration)
func (s *RedisStore) SaveCities(ctx context.Context, cities []models.KnownCity) error {
	if len(cities) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, c := range cities {
		c.Name = geocode.Normalize(c.Name)
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode known city: %w", err)
		}
		pipe.Set(ctx, cityPrefix+c.Name, data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store known cities in Redis: %w", err)
	}
	return nil
}

// LoadFromCSV loads both CSV tables into Redis
func (s *RedisStore) LoadFromCSV(ctx context.Context, addressPath, cityPath string) (LoadStats, error) {
	return LoadCSV(ctx, s, addressPath, cityPath)
}

// IsEmpty checks whether no known address or city is loaded
func (s *RedisStore) IsEmpty(ctx context.Context) (bool, error) {
	for _, prefix := range []string{addressPrefix, cityPrefix} {
		keys, err := s.keys(ctx, prefix)
		if err != nil {
			return false, err
		}
		if len(keys) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
