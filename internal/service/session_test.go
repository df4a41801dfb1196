package service

import (
	"context"
	"testing"
	"time"
)

func TestSessionManager_UnknownIDGetsFreshSession(t *testing.T) {
	m := NewSessionManager(time.Minute, nil)

	sess := m.Get("chosen-by-client")
	if sess.ID == "chosen-by-client" {
		t.Errorf("expected a server generated ID, got %s", sess.ID)
	}
	if sess.ID == "" {
		t.Fatal("expected a non-empty ID")
	}

	if again := m.Get(sess.ID); again != sess {
		t.Errorf("expected the minted ID to select the same session")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 session, got %d", m.Len())
	}
}

func TestSessionManager_Limit(t *testing.T) {
	m := NewSessionManager(time.Minute, nil)
	m.SetLimit(3)

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	oldest := m.Get("")
	busy := m.Get("")
	recent := m.Get("")

	// busy has a resolution in flight, oldest was seen first
	_, release := busy.begin(context.Background())
	defer release()
	oldest.touch(clock.Add(-2 * time.Minute))
	busy.touch(clock.Add(-3 * time.Minute))
	recent.touch(clock.Add(-time.Minute))

	for i := 0; i < 50; i++ {
		m.Get("rotated")
		if m.Len() > 3 {
			t.Fatalf("expected at most 3 sessions, got %d", m.Len())
		}
	}

	if m.Get(busy.ID) != busy {
		t.Error("expected the session with a resolution in flight to survive")
	}
	if m.Get(oldest.ID) == oldest {
		t.Error("expected the least recently used idle session to be dropped")
	}
}

func TestSessionManager_SetLimitDefault(t *testing.T) {
	m := NewSessionManager(time.Minute, nil)
	m.SetLimit(0)
	if m.max != DefaultMaxSessions {
		t.Errorf("expected limit %d, got %d", DefaultMaxSessions, m.max)
	}
}
