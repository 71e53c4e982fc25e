package reply

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.json")
	return NewSessionStore(path, nil)
}

func TestSessionStore_GetCreatesOnFirstUse(t *testing.T) {
	st := newTestStore(t)

	s, isNew, isFirstTurn := st.Get("alice", 30, false)
	if !isNew || !isFirstTurn {
		t.Errorf("first Get: isNew=%v isFirstTurn=%v, want true,true", isNew, isFirstTurn)
	}
	if s.ID == "" {
		t.Error("expected a generated session id")
	}
}

func TestSessionStore_GetReturnsSameSessionWithinIdleWindow(t *testing.T) {
	st := newTestStore(t)

	first, _, _ := st.Get("alice", 30, false)
	second, isNew, isFirstTurn := st.Get("alice", 30, false)

	if isNew || isFirstTurn {
		t.Errorf("second Get: isNew=%v isFirstTurn=%v, want false,false", isNew, isFirstTurn)
	}
	if second.ID != first.ID {
		t.Errorf("session id changed: %s -> %s", first.ID, second.ID)
	}
}

func TestSessionStore_GetExpiresAfterIdleMinutes(t *testing.T) {
	st := newTestStore(t)

	first, _, _ := st.Get("alice", 1, false)
	st.ForSession("alice", func(s *Session) {
		s.UpdatedAt = time.Now().Add(-2 * time.Minute)
	})

	second, isNew, _ := st.Get("alice", 1, false)
	if !isNew {
		t.Error("expected isNew = true after idle expiry")
	}
	if second.ID == first.ID {
		t.Error("expected a new session id after expiry")
	}
}

func TestSessionStore_ResetRequestedForcesNewSession(t *testing.T) {
	st := newTestStore(t)

	first, _, _ := st.Get("alice", 30, false)
	second, isNew, _ := st.Get("alice", 30, true)

	if !isNew {
		t.Error("expected isNew = true when reset is requested")
	}
	if second.ID == first.ID {
		t.Error("expected a new session id on reset")
	}
}

func TestSessionStore_TouchDoesNotAffectOtherFields(t *testing.T) {
	st := newTestStore(t)
	st.Get("alice", 30, false)
	st.SetThinkDefault("alice", ThinkHigh)

	before, _, _ := st.Get("alice", 30, false)
	st.Touch("alice")
	after, _, _ := st.Get("alice", 30, false)

	if after.ThinkDefault != before.ThinkDefault {
		t.Errorf("Touch mutated ThinkDefault: %v -> %v", before.ThinkDefault, after.ThinkDefault)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) && !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("expected UpdatedAt to advance or stay equal after Touch")
	}
}

func TestSessionStore_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	st1 := NewSessionStore(path, nil)
	s1, _, _ := st1.Get("alice", 30, false)

	st2 := NewSessionStore(path, nil)
	s2, isNew, _ := st2.Get("alice", 30, false)

	if isNew {
		t.Error("expected a reloaded store to see the persisted session")
	}
	if s2.ID != s1.ID {
		t.Errorf("reloaded session id = %s, want %s", s2.ID, s1.ID)
	}
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey("+1555", true); got != "+1555" {
		t.Errorf("SessionKey(perSender=true) = %q, want %q", got, "+1555")
	}
	if got := SessionKey("+1555", false); got != GlobalScopeKey {
		t.Errorf("SessionKey(perSender=false) = %q, want %q", got, GlobalScopeKey)
	}
}
