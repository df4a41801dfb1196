package limiter

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TestMemoryLimiter_BasicRateLimit tests basic rate limiting functionality
func TestMemoryLimiter_BasicRateLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(5)
	limiter.now = clock.Now
	defer limiter.Close()
	ctx := context.Background()

	client := "192.168.1.1"

	// First 5 requests should be allowed
	for i := 0; i < 5; i++ {
		if !limiter.Allow(ctx, client) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 6th request should be blocked
	if limiter.Allow(ctx, client) {
		t.Error("Request 6 should be rate limited")
	}

	clock.Advance(time.Second)

	if !limiter.Allow(ctx, client) {
		t.Error("Request should be allowed after refill")
	}
}

// TestMemoryLimiter_PerClientIsolation tests that clients have separate limits
func TestMemoryLimiter_PerClientIsolation(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(3)
	limiter.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "session-a") {
			t.Errorf("Request %d for session-a should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, "session-a") {
		t.Error("session-a should be rate limited")
	}

	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "session-b") {
			t.Errorf("Request %d for session-b should be allowed", i+1)
		}
	}
}

// TestMemoryLimiter_FractionalRate tests rates below one request per second
func TestMemoryLimiter_FractionalRate(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(0.2)
	limiter.now = clock.Now
	ctx := context.Background()

	if !limiter.Allow(ctx, "c") {
		t.Fatal("first request should be allowed")
	}
	if limiter.Allow(ctx, "c") {
		t.Error("second request should wait 5 seconds")
	}

	clock.Advance(5100 * time.Millisecond)
	if !limiter.Allow(ctx, "c") {
		t.Error("request should be allowed after 5 seconds")
	}
}

// TestMemoryLimiter_TokenRefill tests that tokens refill over time
func TestMemoryLimiter_TokenRefill(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(10)
	limiter.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		limiter.Allow(ctx, "c")
	}
	if limiter.Allow(ctx, "c") {
		t.Error("Should be rate limited after using all tokens")
	}

	// Half a second refills 5 tokens
	clock.Advance(500 * time.Millisecond)

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow(ctx, "c") {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("Expected 5 allowed requests after 0.5s refill, got %d", allowed)
	}
}

// TestMemoryLimiter_Cleanup tests that idle clients are dropped
func TestMemoryLimiter_Cleanup(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(10)
	limiter.now = clock.Now
	limiter.lastCleanup = clock.Now()
	ctx := context.Background()

	limiter.Allow(ctx, "old")
	clock.Advance(idleAfter + time.Second)
	limiter.Allow(ctx, "new")

	if n := limiter.clients(); n != 1 {
		t.Errorf("expected idle client dropped, got %d clients", n)
	}
}

// TestMemoryLimiter_Concurrency tests thread safety
func TestMemoryLimiter_Concurrency(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(100)
	limiter.now = clock.Now
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup

	// 200 goroutines against a burst of 100
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow(ctx, "c") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 100 {
		t.Errorf("Expected 100 allowed requests, got %d", got)
	}
}

func newTestRedisLimiter(t *testing.T, rps float64) (*RedisLimiter, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clock := newFakeClock()

	rl := NewRedisLimiterWithClient(client, rps)
	rl.now = clock.Now
	t.Cleanup(func() { rl.Close() })
	return rl, mr, clock
}

// TestRedisLimiter_Window tests the fixed window counter
func TestRedisLimiter_Window(t *testing.T) {
	rl, mr, clock := newTestRedisLimiter(t, 2)
	ctx := context.Background()

	if !rl.Allow(ctx, "c") || !rl.Allow(ctx, "c") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.Allow(ctx, "c") {
		t.Error("third request should be rate limited")
	}
	if !rl.Allow(ctx, "other") {
		t.Error("other client should have its own counter")
	}

	key := "ratelimit:c:" + itoa(clock.Now().Unix())
	if ttl := mr.TTL(key); ttl != 2*time.Second {
		t.Errorf("expected 2s expiry on %s, got %v", key, ttl)
	}

	clock.Advance(time.Second)
	if !rl.Allow(ctx, "c") {
		t.Error("request in the next window should be allowed")
	}
}

// TestRedisLimiter_FractionalRate tests the widened window
func TestRedisLimiter_FractionalRate(t *testing.T) {
	rl, _, _ := newTestRedisLimiter(t, 0.2)

	if rl.windowSize != 5*time.Second {
		t.Errorf("expected 5s window, got %v", rl.windowSize)
	}
	ctx := context.Background()
	if !rl.Allow(ctx, "c") {
		t.Error("first request should be allowed")
	}
	if rl.Allow(ctx, "c") {
		t.Error("second request in the window should be rate limited")
	}
}

// TestRedisLimiter_FailOpen tests that an unreachable Redis allows traffic
func TestRedisLimiter_FailOpen(t *testing.T) {
	rl, mr, _ := newTestRedisLimiter(t, 1)
	mr.Close()

	if !rl.Allow(context.Background(), "c") {
		t.Error("expected request allowed when Redis is down")
	}
}

// TestLimiterInterface tests that both limiters implement Limiter
func TestLimiterInterface(t *testing.T) {
	var _ Limiter = (*MemoryLimiter)(nil)
	var _ Limiter = (*RedisLimiter)(nil)
	var _ Limiter = (*MockLimiter)(nil)
}

// TestNewLimiter_Memory tests factory function for memory limiter
func TestNewLimiter_Memory(t *testing.T) {
	for _, typ := range []string{"memory", "MEMORY", ""} {
		t.Run(typ, func(t *testing.T) {
			limiter, err := NewLimiter(LimiterConfig{Type: typ, RequestsPerSecond: 10})
			if err != nil {
				t.Fatalf("NewLimiter() error = %v", err)
			}
			defer limiter.Close()

			if !limiter.Allow(context.Background(), "192.168.1.1") {
				t.Error("First request should be allowed")
			}
		})
	}
}

// TestNewLimiter_Redis tests factory function for redis limiter
func TestNewLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	limiter, err := NewLimiter(LimiterConfig{Type: "redis", RequestsPerSecond: 10, RedisAddr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	defer limiter.Close()

	if _, ok := limiter.(*RedisLimiter); !ok {
		t.Errorf("expected *RedisLimiter, got %T", limiter)
	}
}

// TestNewLimiter_InvalidType tests factory function with invalid type
func TestNewLimiter_InvalidType(t *testing.T) {
	_, err := NewLimiter(LimiterConfig{Type: "invalid", RequestsPerSecond: 10})
	if err == nil {
		t.Error("Expected error for invalid limiter type")
	}
}

// BenchmarkMemoryLimiter_Allow benchmarks the Allow method
func BenchmarkMemoryLimiter_Allow(b *testing.B) {
	limiter := NewMemoryLimiter(1000000)
	defer limiter.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow(ctx, "192.168.1.1")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
