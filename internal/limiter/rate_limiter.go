package limiter

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the interface that all rate limiters must implement
// This allows us to easily swap between in-memory and Redis implementations
type Limiter interface {
	// Allow reports whether one more request from client may proceed
	Allow(ctx context.Context, client string) bool

	// Close cleans up any resources (Redis connections, goroutines, etc.)
	Close() error
}

// idleAfter is how long a client bucket may sit unused before cleanup drops it
const idleAfter = 5 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per client.
// This is an in-memory implementation suitable for single-server deployments.
type MemoryLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
	now         func() time.Time
}

// NewMemoryLimiter creates a new in-memory rate limiter
//
// Parameters:
//   - requestsPerSecond: allowed requests per second per client (can be fractional, e.g., 0.2)
//
// The burst equals one second worth of requests, and is at least 1.
func NewMemoryLimiter(requestsPerSecond float64) *MemoryLimiter {
	burst := int(math.Ceil(requestsPerSecond))
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		buckets:     make(map[string]*bucket),
		limit:       rate.Limit(requestsPerSecond),
		burst:       burst,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow implements Limiter
func (rl *MemoryLimiter) Allow(ctx context.Context, client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[client] = b
	}
	b.lastSeen = now

	rl.maybeCleanup(now)

	return b.limiter.AllowN(now, 1)
}

// maybeCleanup drops buckets idle for longer than idleAfter.
// Must be called with mutex locked.
func (rl *MemoryLimiter) maybeCleanup(now time.Time) {
	if now.Sub(rl.lastCleanup) < idleAfter {
		return
	}

	threshold := now.Add(-idleAfter)
	for client, b := range rl.buckets {
		if b.lastSeen.Before(threshold) {
			delete(rl.buckets, client)
		}
	}
	rl.lastCleanup = now
}

// clients returns the number of tracked clients
func (rl *MemoryLimiter) clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Close implements Limiter. The in-memory limiter holds no resources.
func (rl *MemoryLimiter) Close() error {
	return nil
}
