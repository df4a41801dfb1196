package service

import (
	"sync"

	"github.com/evyataryagoni/geocoder/internal/geocode"
)

// fanoutTracker collects the outcome of the variant requests of one
// resolution. Every request settles exactly once (with a candidate, with
// nothing after filtering, or with an error or timeout); the tracker
// finalizes exactly once, when the settled count reaches the total.
type fanoutTracker struct {
	mu        sync.Mutex
	total     int
	completed int
	best      geocode.Scored
	found     bool

	once sync.Once
	done chan struct{}
}

// newFanoutTracker creates a tracker for total requests.
// With nothing to wait for it is final right away.
func newFanoutTracker(total int) *fanoutTracker {
	t := &fanoutTracker{total: total, done: make(chan struct{})}
	if total <= 0 {
		t.finalize()
	}
	return t
}

// settle records one finished request. A nil candidate means nothing usable.
// The best candidate is replaced only by a strictly higher score.
func (t *fanoutTracker) settle(candidate *geocode.Scored) {
	t.mu.Lock()
	if t.completed >= t.total {
		t.mu.Unlock()
		return
	}
	t.completed++
	if candidate != nil && (!t.found || candidate.Score > t.best.Score) {
		t.best = *candidate
		t.found = true
	}
	final := t.completed == t.total
	t.mu.Unlock()

	if final {
		t.finalize()
	}
}

func (t *fanoutTracker) finalize() {
	t.once.Do(func() {
		close(t.done)
	})
}

// Done is closed once every request has settled
func (t *fanoutTracker) Done() <-chan struct{} {
	return t.done
}

// result returns the best candidate seen so far
func (t *fanoutTracker) result() (geocode.Scored, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.best, t.found
}

// settled returns how many requests have settled
func (t *fanoutTracker) settled() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}
