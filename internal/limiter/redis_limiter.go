package limiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/redis/go-redis/v9"
)

// windowScript increments the counter of the current window and sets its
// expiry on the first hit, atomically
var windowScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
	end
	return current
`)

// RedisLimiter implements distributed rate limiting using Redis
// This is suitable for multi-server deployments where rate limits need to be
// shared across all instances
//
// Algorithm: fixed window counter
// - Key format: "ratelimit:{client}:{window}"
// - Keys expire after two windows
type RedisLimiter struct {
	client         *redis.Client
	requestsPerSec float64
	windowSize     time.Duration
	logger         *logger.Logger
	now            func() time.Time
}

// NewRedisLimiter connects to Redis and creates a limiter
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string if no password)
//   - db: Redis database number
//   - requestsPerSecond: allowed requests per second per client (can be fractional, e.g., 0.2)
func NewRedisLimiter(addr, password string, db int, requestsPerSecond float64) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for rate limiting: %w", err)
	}

	return NewRedisLimiterWithClient(client, requestsPerSecond), nil
}

// NewRedisLimiterWithClient creates a limiter on an existing client
func NewRedisLimiterWithClient(client *redis.Client, requestsPerSecond float64) *RedisLimiter {
	// Fractional rates get a window long enough to hold one request
	// (0.2 req/s -> 5 second window)
	windowSize := time.Second
	if requestsPerSecond > 0 && requestsPerSecond < 1.0 {
		windowSize = time.Duration(float64(time.Second) / requestsPerSecond)
	}

	return &RedisLimiter{
		client:         client,
		requestsPerSec: requestsPerSecond,
		windowSize:     windowSize,
		logger:         logger.Global().WithComponent("RedisLimiter"),
		now:            time.Now,
	}
}

// Allow implements Limiter. Redis failures fail open.
func (rl *RedisLimiter) Allow(ctx context.Context, client string) bool {
	windowSeconds := int64(rl.windowSize.Seconds())
	window := rl.now().Unix() / windowSeconds
	key := fmt.Sprintf("ratelimit:%s:%d", client, window)

	count, err := windowScript.Run(ctx, rl.client, []string{key}, windowSeconds*2).Int64()
	if err != nil {
		rl.logger.Warn().Err(err).Str("client", client).Msg("Rate limiter unavailable, allowing request")
		return true
	}

	limit := int64(math.Ceil(rl.requestsPerSec * rl.windowSize.Seconds()))
	return count <= limit
}

// Close closes the Redis connection
func (rl *RedisLimiter) Close() error {
	if rl.client != nil {
		return rl.client.Close()
	}
	return nil
}
