package service

import (
	"context"
	"sync"
	"time"

	"github.com/evyataryagoni/geocoder/internal/models"
	"golang.org/x/sync/singleflight"
)

// coalescer shares one in-flight resolution between concurrent callers
// asking the same normalized query.
//
// The shared work runs on a context detached from any single caller and
// bounded by the resolve timeout. It is cancelled only when every caller
// waiting on it has left.
type coalescer struct {
	group singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

type flight struct {
	waiters int
	cancel  context.CancelFunc
}

type resolveFunc func(ctx context.Context) (*models.GeocodeResult, error)

func newCoalescer() *coalescer {
	return &coalescer{flights: make(map[string]*flight)}
}

// do runs fn for key unless a run is already in flight, in which case it
// waits for that one. shared reports whether the result went to several callers.
func (c *coalescer) do(ctx context.Context, key string, timeout time.Duration, fn resolveFunc) (result *models.GeocodeResult, shared bool, err error) {
	c.mu.Lock()
	f, ok := c.flights[key]
	if !ok {
		f = &flight{}
		c.flights[key] = f
	}
	f.waiters++
	c.mu.Unlock()

	ch := c.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		c.mu.Lock()
		if f.waiters == 0 {
			c.mu.Unlock()
			return nil, context.Canceled
		}
		f.cancel = cancel
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			if c.flights[key] == f {
				delete(c.flights, key)
			}
			c.mu.Unlock()
		}()

		return fn(runCtx)
	})

	select {
	case r := <-ch:
		c.leave(key, f, false)
		res, _ := r.Val.(*models.GeocodeResult)
		return res, r.Shared, r.Err
	case <-ctx.Done():
		c.leave(key, f, true)
		return nil, false, context.Cause(ctx)
	}
}

// leave unregisters a caller. The last caller abandoning a run cancels it.
func (c *coalescer) leave(key string, f *flight, abandon bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	if abandon && f.cancel != nil {
		f.cancel()
	}
	if c.flights[key] != f {
		return
	}
	delete(c.flights, key)
	if abandon {
		c.group.Forget(key)
	}
}

// inflight returns the number of keys being resolved
func (c *coalescer) inflight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flights)
}
