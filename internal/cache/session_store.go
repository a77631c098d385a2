// Package cache wraps a SessionStore with a Redis read-through cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Lookup when the session is not cached.
var ErrCacheMiss = errors.New("cache miss")

// setIfNewer stores the snapshot only if no newer version is cached.
// KEYS[1] session key, ARGV[1] version, ARGV[2] snapshot JSON, ARGV[3] TTL ms.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// markFinished replaces the entry with a version-only tombstone so that a
// racing read cannot cache an older snapshot after the session finished.
// KEYS[1] session key, ARGV[1] version, ARGV[2] TTL ms.
var markFinished = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HDEL', KEYS[1], 'data')
redis.call('HSET', KEYS[1], 'version', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// tombstoneTTL bounds how long a finished session's version is remembered.
const tombstoneTTL = 5 * time.Minute

// SessionStore caches open checkout sessions in Redis in front of another
// store. Entries expire with the session. Terminal sessions leave only a
// short-lived version tombstone, so deletes in the backing store cannot
// leave stale entries.
type SessionStore struct {
	next   domain.SessionStore
	client redis.UniversalClient
	prefix string
	now    func() time.Time
	logger *slog.Logger
	opts   []domain.SessionOption
}

var _ domain.SessionStore = (*SessionStore)(nil)

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithPrefix sets the key prefix. Default: "checkout:session:"
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// WithClock overrides the time source used to compute entry TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for cache failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionOptions sets options applied to sessions decoded from the cache.
func WithSessionOptions(opts ...domain.SessionOption) Option {
	return func(s *SessionStore) {
		s.opts = opts
	}
}

// NewSessionStore wraps next with a Redis cache.
func NewSessionStore(next domain.SessionStore, client redis.UniversalClient, opts ...Option) *SessionStore {
	s := &SessionStore{
		next:   next,
		client: client,
		prefix: "checkout:session:",
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session_cache")
	return s
}

// Save writes to the backing store, then refreshes the cache entry.
func (s *SessionStore) Save(ctx context.Context, session *domain.CheckoutSession) error {
	if err := s.next.Save(ctx, session); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.evict(ctx, session.ID())
		}
		return err
	}
	s.store(ctx, session.Snapshot())
	return nil
}

// Get serves from the cache and falls back to the backing store on a miss
// or a cache failure.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	snap, err := s.Lookup(ctx, id)
	switch {
	case err == nil:
		if session, err := domain.RestoreCheckoutSession(snap, s.opts...); err == nil {
			return session, nil
		}
		s.evict(ctx, id)
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("session cache read failed", "session_id", id, "error", err)
	}

	session, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, session.Snapshot())
	return session, nil
}

// Lookup returns the cached snapshot for id, or ErrCacheMiss.
func (s *SessionStore) Lookup(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	data, err := s.client.HGet(ctx, s.key(id), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionSnapshot{}, ErrCacheMiss
	}
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("redis hget failed: %w", err)
	}

	var snap domain.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return snap, nil
}

// ListExpired reads from the backing store.
func (s *SessionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.CheckoutSession, error) {
	return s.next.ListExpired(ctx, now, limit)
}

// DeleteFinishedBefore deletes from the backing store.
func (s *SessionStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.next.DeleteFinishedBefore(ctx, cutoff)
}

func (s *SessionStore) store(ctx context.Context, snap domain.SessionSnapshot) {
	if snap.State.IsTerminal() {
		s.finish(ctx, snap)
		return
	}

	ttl := snap.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		s.evict(ctx, snap.ID)
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("failed to encode session for cache", "session_id", snap.ID, "error", err)
		return
	}

	if err := setIfNewer.Run(ctx, s.client, []string{s.key(snap.ID)}, snap.Version, data, ttl.Milliseconds()).Err(); err != nil {
		s.logger.Warn("session cache write failed", "session_id", snap.ID, "error", err)
		s.evict(ctx, snap.ID)
	}
}

func (s *SessionStore) finish(ctx context.Context, snap domain.SessionSnapshot) {
	if err := markFinished.Run(ctx, s.client, []string{s.key(snap.ID)}, snap.Version, tombstoneTTL.Milliseconds()).Err(); err != nil {
		s.logger.Warn("session cache tombstone failed", "session_id", snap.ID, "error", err)
		s.evict(ctx, snap.ID)
	}
}

func (s *SessionStore) evict(ctx context.Context, id string) {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		s.logger.Warn("session cache delete failed", "session_id", id, "error", err)
	}
}

func (s *SessionStore) key(id string) string {
	return s.prefix + id
}
