package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/memory"
	"github.com/dukerupert/checkout/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SessionStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.SessionStore {
		return memory.NewSessionStore()
	})
}

func Test_SessionStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	require.NoError(t, got.Cancel("local change"))

	again, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStarted, again.State(), "unsaved changes must not leak into the store")
}

func Test_SessionStore_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	s := storetest.NewSession(t, "cart-1", storetest.Base)
	require.NoError(t, store.Save(ctx, s))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		sess, err := store.Get(ctx, s.ID())
		require.NoError(t, err)
		require.NoError(t, sess.Cancel("writer"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Save(ctx, sess); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, store.Len())
}

func Test_SessionStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := memory.NewSessionStore()
	err := store.Save(ctx, storetest.NewSession(t, "cart-1", storetest.Base))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Len())
}
