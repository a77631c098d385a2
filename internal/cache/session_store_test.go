package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/memory"
	"github.com/dukerupert/checkout/internal/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts reads that reach the backing store.
type countingStore struct {
	domain.SessionStore
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	c.gets.Add(1)
	return c.SessionStore.Get(ctx, id)
}

// setupTestRedis creates a miniredis server and a cached store over an
// in-memory backing store.
func setupTestRedis(t *testing.T) (*SessionStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()

	// Create an in-memory Redis server
	mr := miniredis.RunT(t)

	// Create Redis client pointing to miniredis
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	clock := func() time.Time { return storetest.Base.Add(5 * time.Minute) }
	backing := &countingStore{SessionStore: memory.NewSessionStore(domain.WithClock(clock))}
	store := NewSessionStore(backing, client,
		WithClock(clock),
		WithSessionOptions(domain.WithClock(clock)),
	)

	return store, backing, mr
}

func TestSessionStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.SessionStore {
		store, _, _ := setupTestRedis(t)
		return store
	})
}

func TestGet_ServedFromCache(t *testing.T) {
	store, backing, mr := setupTestRedis(t)
	ctx := context.Background()

	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	storetest.AssertSameSession(t, s, got)
	assert.Equal(t, int32(0), backing.gets.Load(), "hit must not reach the backing store")

	// Entry lives until the session expires.
	assert.Equal(t, 25*time.Minute, mr.TTL("checkout:session:"+s.ID()))
}

func TestGet_CacheMissPopulates(t *testing.T) {
	store, backing, mr := setupTestRedis(t)
	ctx := context.Background()

	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, backing.Save(ctx, s))
	assert.False(t, mr.Exists("checkout:session:"+s.ID()))

	_, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.True(t, mr.Exists("checkout:session:"+s.ID()))

	_, err = store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, int32(1), backing.gets.Load())
}

func TestSave_TerminalSessionLeavesTombstone(t *testing.T) {
	store, _, mr := setupTestRedis(t)
	ctx := context.Background()

	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, store.Save(ctx, s))
	require.True(t, mr.Exists("checkout:session:"+s.ID()))

	require.NoError(t, s.Cancel("customer left"))
	require.NoError(t, store.Save(ctx, s))

	key := "checkout:session:" + s.ID()
	assert.Equal(t, "2", mr.HGet(key, "version"))
	assert.Empty(t, mr.HGet(key, "data"))
	assert.Equal(t, tombstoneTTL, mr.TTL(key))

	_, err := store.Lookup(ctx, s.ID())
	assert.ErrorIs(t, err, ErrCacheMiss)

	got, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCanceled, got.State())
}

func TestGet_StaleReadAfterFinishIsNotCached(t *testing.T) {
	store, _, mr := setupTestRedis(t)
	ctx := context.Background()

	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, store.Save(ctx, s))
	// A reader that missed the cache holds the started snapshot.
	stale := s.Snapshot()

	require.NoError(t, s.Cancel("customer left"))
	require.NoError(t, store.Save(ctx, s))

	// The reader now populates the cache with what it read.
	store.store(ctx, stale)

	assert.Empty(t, mr.HGet("checkout:session:"+s.ID(), "data"))
	got, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCanceled, got.State())
}

func TestSave_OlderVersionDoesNotOverwrite(t *testing.T) {
	store, _, mr := setupTestRedis(t)
	ctx := context.Background()

	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, store.Save(ctx, s))
	stale := s.Snapshot()

	require.NoError(t, s.ConfirmPayment("pi_123"))
	require.NoError(t, store.Save(ctx, s))

	store.store(ctx, stale)

	assert.Equal(t, "2", mr.HGet("checkout:session:"+s.ID(), "version"))
	cached, err := store.Lookup(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaymentConfirmed, cached.State)
}

func TestSave_ConflictEvicts(t *testing.T) {
	store, _, mr := setupTestRedis(t)
	ctx := context.Background()

	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, store.Save(ctx, s))

	stale, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	require.NoError(t, s.ConfirmPayment("pi_123"))
	require.NoError(t, store.Save(ctx, s))

	require.NoError(t, stale.Cancel("late"))
	assert.ErrorIs(t, store.Save(ctx, stale), domain.ErrConflict)
	assert.False(t, mr.Exists("checkout:session:"+s.ID()))
}

func TestGet_RedisUnavailableFallsBack(t *testing.T) {
	store, backing, mr := setupTestRedis(t)
	ctx := context.Background()

	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, store.Save(ctx, s))
	mr.Close()

	got, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, int32(1), backing.gets.Load())
}

func TestLookup_InvalidJSON(t *testing.T) {
	store, _, mr := setupTestRedis(t)

	mr.HSet("checkout:session:bad", "version", "1", "data", "{not json")

	_, err := store.Lookup(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
