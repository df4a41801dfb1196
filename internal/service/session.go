package service

import (
	"context"
	"sync"
	"time"

	"github.com/evyataryagoni/geocoder/internal/cache"
	"github.com/evyataryagoni/geocoder/internal/metrics"
	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/rs/xid"
)

// Session is the state of one client: its own result cache and the
// resolution currently in flight. A new resolution supersedes the previous
// one instead of waiting for it.
type Session struct {
	ID    string
	Cache *cache.MemoryCache

	mu       sync.Mutex
	cancel   context.CancelCauseFunc
	seq      uint64
	lastSeen time.Time
}

// NewSession creates a session with an empty cache
func NewSession(id string) *Session {
	if id == "" {
		id = xid.New().String()
	}
	return &Session{ID: id, Cache: cache.NewMemoryCache(), lastSeen: time.Now()}
}

// begin cancels the resolution in flight (cause models.ErrSuperseded) and
// returns the context of the new one with its release function
func (s *Session) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(models.ErrSuperseded)
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.lastSeen = time.Now()
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// idleSince is negative while a resolution is in flight
func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return -1
	}
	return now.Sub(s.lastSeen)
}

// DefaultMaxSessions bounds a SessionManager unless SetLimit says otherwise
const DefaultMaxSessions = 10000

// SessionManager hands out sessions by ID and drops idle ones
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idle     time.Duration
	max      int
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSessionManager creates a manager dropping sessions idle for longer than idle
//
// Parameters:
//   - idle: idle time after which Cleanup drops a session (0 keeps them forever)
//   - m: metrics collector (optional, can be nil)
func NewSessionManager(idle time.Duration, m *metrics.Metrics) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		idle:     idle,
		max:      DefaultMaxSessions,
		metrics:  m,
		now:      time.Now,
	}
}

// SetLimit bounds the number of live sessions (n <= 0 keeps the default)
func (m *SessionManager) SetLimit(n int) {
	if n <= 0 {
		n = DefaultMaxSessions
	}
	m.mu.Lock()
	m.max = n
	m.mu.Unlock()
}

// Get returns the session with id. Only IDs handed out by this manager are
// honoured: an empty or unknown id gets a new session with a fresh ID, so
// clients cannot pick the IDs of other sessions.
// When the manager is full the least recently used idle session is dropped.
func (m *SessionManager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if s, ok := m.sessions[id]; ok && id != "" {
		s.touch(now)
		return s
	}

	for len(m.sessions) >= m.max {
		m.evictLocked(now)
	}

	s := NewSession("")
	s.touch(now)
	m.sessions[s.ID] = s
	if m.metrics != nil {
		m.metrics.SessionsActive.Set(float64(len(m.sessions)))
	}
	return s
}

// evictLocked drops the session idle for the longest time.
// Sessions with a resolution in flight count as not idle.
func (m *SessionManager) evictLocked(now time.Time) {
	var (
		victim  string
		longest time.Duration
	)
	for id, s := range m.sessions {
		if idle := s.idleSince(now); victim == "" || idle > longest {
			victim, longest = id, idle
		}
	}
	delete(m.sessions, victim)
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cleanup drops sessions idle for longer than the configured limit and
// returns how many were dropped. Sessions with a resolution in flight stay.
func (m *SessionManager) Cleanup() int {
	if m.idle <= 0 {
		return 0
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, s := range m.sessions {
		if s.idleSince(now) > m.idle {
			delete(m.sessions, id)
			dropped++
		}
	}
	if m.metrics != nil {
		m.metrics.SessionsActive.Set(float64(len(m.sessions)))
	}
	return dropped
}

// Run calls Cleanup every interval until ctx is done
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.idle <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
