package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

var _ ports.SessionStore = (*SessionStore)(nil)

type session struct {
	values   map[string][]byte
	lastSeen time.Time
}

// SessionStore keeps per-session values in memory. A session ends once it has
// been idle for longer than the TTL; its values go with it.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
	now      func() time.Time
}

// NewSessionStore creates a session store with the given idle TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Get returns a copy of the value stored under key for the session.
// Reading refreshes the session's idle timer.
func (s *SessionStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil {
		return nil, domain.NewNotFoundError("session", sessionID)
	}

	value, ok := sess.values[key]
	if !ok {
		return nil, domain.NewNotFoundError(key, "")
	}

	return slices.Clone(value), nil
}

// Set stores a copy of value under key for the session, starting the session
// if needed.
func (s *SessionStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil {
		sess = &session{values: make(map[string][]byte), lastSeen: s.now()}
		s.sessions[sessionID] = sess
	}

	sess.values[key] = slices.Clone(value)

	return nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// Sweep drops every expired session and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0

	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.DebugContext(ctx, "expired sessions removed", slog.Int("count", n))
			}
		}
	}
}

// live returns the session if it exists and has not expired, refreshing its
// idle timer. Expired sessions are removed. Callers hold s.mu.
func (s *SessionStore) live(sessionID string) *session {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}

	now := s.now()
	if now.Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, sessionID)
		return nil
	}

	sess.lastSeen = now

	return sess
}
