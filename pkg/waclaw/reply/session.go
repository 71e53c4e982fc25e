package reply

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GlobalScopeKey is the session key used when the store is scoped globally
// rather than per-sender.
const GlobalScopeKey = "__global__"

// Session is the persisted state for one conversation thread.
type Session struct {
	ID             string       `json:"id"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	SystemSent     bool         `json:"system_sent"`
	ThinkDefault   ThinkLevel   `json:"think_default"`
	VerboseDefault VerboseLevel `json:"verbose_default"`
	AbortPending   bool         `json:"abort_pending"`
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) expired(now time.Time, idleMinutes int) bool {
	if idleMinutes <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > time.Duration(idleMinutes)*time.Minute
}

// SessionStore is the single-writer, durable key→Session mapping. One
// mutex guards every mutation; reads return a copy so callers never share
// the internal pointer across goroutines.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	path     string
	logger   *slog.Logger
}

// NewSessionStore creates a store backed by the given file path. If the
// file exists, it is loaded eagerly; load failures are logged and treated
// as an empty store (the in-memory state is authoritative for the current
// run per the SessionStoreWriteFailure design note).
func NewSessionStore(path string, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	st := &SessionStore{
		sessions: make(map[string]*Session),
		path:     path,
		logger:   logger.With("component", "session_store"),
	}
	st.load()
	return st
}

func (st *SessionStore) load() {
	if st.path == "" {
		return
	}
	b, err := os.ReadFile(st.path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.logger.Warn("failed to read session store", "path", st.path, "err", err)
		}
		return
	}
	var m map[string]*Session
	if err := json.Unmarshal(b, &m); err != nil {
		st.logger.Warn("failed to parse session store, starting fresh", "path", st.path, "err", err)
		return
	}
	st.sessions = m
}

// flush persists the current map via atomic replace: write to a temp file
// in the same directory, then rename over the target. Must be called with
// st.mu held.
func (st *SessionStore) flush() error {
	if st.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(st.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir session store dir: %w", err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp session store: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("rename session store: %w", err)
	}
	return nil
}

func (st *SessionStore) flushLogged() {
	if err := st.flush(); err != nil {
		st.logger.Error("session store write failed", "err", err)
	}
}

// Get returns the session for key, whether it is new, and whether this is
// the first turn in the session's lifetime — creating (or replacing, on
// expiry/reset) the record as needed.
func (st *SessionStore) Get(key string, idleMinutes int, resetRequested bool) (Session, bool, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	existing, ok := st.sessions[key]

	if !ok {
		s := newSession(now)
		st.sessions[key] = s
		st.flushLogged()
		return *s, true, true
	}

	if resetRequested || existing.expired(now, idleMinutes) {
		s := newSession(now)
		st.sessions[key] = s
		st.flushLogged()
		return *s, true, true
	}

	return *existing, false, false
}

// Touch updates UpdatedAt to now. Called only on the user-initiated path —
// heartbeat operations must never call this.
func (st *SessionStore) Touch(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[key]; ok {
		s.UpdatedAt = time.Now()
		st.flushLogged()
	}
}

// ForSession performs an atomic read-modify-write against the session at
// key, creating one first if absent.
func (st *SessionStore) ForSession(key string, updater func(s *Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[key]
	if !ok {
		s = newSession(time.Now())
		st.sessions[key] = s
	}
	updater(s)
	st.flushLogged()
}

// SetSystemSent marks the session's template prefix as delivered.
func (st *SessionStore) SetSystemSent(key string) {
	st.ForSession(key, func(s *Session) { s.SystemSent = true })
}

// SetThinkDefault pins the session's thinking level.
func (st *SessionStore) SetThinkDefault(key string, level ThinkLevel) {
	st.ForSession(key, func(s *Session) { s.ThinkDefault = level })
}

// SetVerboseDefault pins the session's verbosity.
func (st *SessionStore) SetVerboseDefault(key string, level VerboseLevel) {
	st.ForSession(key, func(s *Session) { s.VerboseDefault = level })
}

// SetAbortPending sets or clears the abort-reminder flag.
func (st *SessionStore) SetAbortPending(key string, pending bool) {
	st.ForSession(key, func(s *Session) { s.AbortPending = pending })
}

// Snapshot returns a copy of every session currently held, keyed the same
// way as the store itself. Used by the heartbeat scheduler to find idle
// candidates without holding the store lock while it runs probes.
func (st *SessionStore) Snapshot() map[string]Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]Session, len(st.sessions))
	for k, v := range st.sessions {
		out[k] = *v
	}
	return out
}

// SessionKey computes the store key for a sender given the configured
// scope.
func SessionKey(from string, perSender bool) string {
	if perSender {
		return from
	}
	return GlobalScopeKey
}
