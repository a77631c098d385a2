// Package memory provides an in-process SessionStore for tests and
// single-instance deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
)

// SessionStore implements domain.SessionStore with in-memory storage.
// Sessions are held as snapshots so callers never share a mutable session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionSnapshot // sessionID -> last saved snapshot
	opts     []domain.SessionOption
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates an empty store. opts are applied to every session
// it returns.
func NewSessionStore(opts ...domain.SessionOption) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.SessionSnapshot),
		opts:     opts,
	}
}

// Save stores s if its version matches the stored one.
func (m *SessionStore) Save(ctx context.Context, s *domain.CheckoutSession) error {
	const op = "memory.save_session"

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.sessions[snap.ID]
	if !exists && snap.Version != 0 {
		return domain.ErrConflict.With(op, "session_id", snap.ID, "version", snap.Version)
	}
	if exists && current.Version != snap.Version {
		return domain.ErrConflict.With(op, "session_id", snap.ID, "version", snap.Version, "stored_version", current.Version)
	}

	snap.Version++
	m.sessions[snap.ID] = snap
	s.Stored(snap.Version)
	return nil
}

// Get returns a copy of the stored session.
func (m *SessionStore) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	snap, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, domain.NotFound("memory.get_session", id)
	}
	return domain.RestoreCheckoutSession(snap, m.opts...)
}

// ListExpired returns non-terminal sessions that expired before now, oldest first.
func (m *SessionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var expired []domain.SessionSnapshot
	for _, snap := range m.sessions {
		if !snap.State.IsTerminal() && snap.ExpiresAt.Before(now) {
			expired = append(expired, snap)
		}
	}
	m.mu.RUnlock()

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	sessions := make([]*domain.CheckoutSession, 0, len(expired))
	for _, snap := range expired {
		s, err := domain.RestoreCheckoutSession(snap, m.opts...)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// DeleteFinishedBefore removes terminal sessions that ended before cutoff.
func (m *SessionStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, snap := range m.sessions {
		finished := snap.FinishedAt()
		if !finished.IsZero() && finished.Before(cutoff) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored sessions.
func (m *SessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
