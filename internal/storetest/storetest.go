// Package storetest checks domain.SessionStore implementations against the
// behavior the checkout orchestrator and the expiry sweep rely on.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Base is the creation time of sessions built by NewSession.
var Base = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) domain.SessionStore

// NewSession builds a started session created at createdAt.
func NewSession(t *testing.T, cartID string, createdAt time.Time) *domain.CheckoutSession {
	t.Helper()

	delivery, err := domain.NewDeliveryDetails(domain.DeliveryInput{
		Address:    "123 Main Street",
		City:       "Springfield",
		PostalCode: "62704",
		Phone:      "217-555-0123",
		Country:    "US",
	})
	require.NoError(t, err)

	s, err := domain.NewCheckoutSession(domain.NewSessionParams{
		Guest:         &domain.GuestInfo{Name: "Ana", Email: "ana@example.com"},
		CartID:        cartID,
		PaymentMethod: domain.PaymentCreditCard,
		TotalCents:    5940,
		Delivery:      delivery,
	}, domain.WithClock(func() time.Time { return createdAt }))
	require.NoError(t, err)
	return s
}

// Run runs the conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("save and get", func(t *testing.T) { testSaveAndGet(t, newStore(t)) })
	t.Run("get missing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("stale write conflicts", func(t *testing.T) { testConflict(t, newStore(t)) })
	t.Run("list expired", func(t *testing.T) { testListExpired(t, newStore(t)) })
	t.Run("delete finished", func(t *testing.T) { testDeleteFinished(t, newStore(t)) })
}

func testSaveAndGet(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := NewSession(t, "cart-1", Base)

	require.NoError(t, store.Save(ctx, s))
	assert.Equal(t, int64(1), s.Version())

	require.NoError(t, s.ConfirmPayment("pi_123"))
	require.NoError(t, store.Save(ctx, s))
	assert.Equal(t, int64(2), s.Version())

	got, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	AssertSameSession(t, s, got)
}

func testGetMissing(t *testing.T, store domain.SessionStore) {
	_, err := store.Get(context.Background(), "3f1c2d9e-0000-4000-8000-000000000000")

	assert.True(t, errors.Is(err, domain.ErrSessionNotFound), "got %v", err)
}

func testConflict(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := NewSession(t, "cart-1", Base)
	require.NoError(t, store.Save(ctx, s))

	first, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	second, err := store.Get(ctx, s.ID())
	require.NoError(t, err)

	require.NoError(t, first.Cancel("first writer"))
	require.NoError(t, store.Save(ctx, first))

	require.NoError(t, second.Cancel("second writer"))
	err = store.Save(ctx, second)
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)

	got, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCanceled, got.State())
	assert.Equal(t, "first writer", got.CancelReason())
	assert.Equal(t, int64(2), got.Version())
}

func testListExpired(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()

	oldest := NewSession(t, "cart-oldest", Base)
	older := NewSession(t, "cart-older", Base.Add(time.Minute))
	fresh := NewSession(t, "cart-fresh", Base.Add(time.Hour))
	canceled := NewSession(t, "cart-canceled", Base)
	require.NoError(t, canceled.Cancel("abandoned"))

	for _, s := range []*domain.CheckoutSession{fresh, older, canceled, oldest} {
		require.NoError(t, store.Save(ctx, s))
	}

	now := Base.Add(45 * time.Minute)

	got, err := store.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, oldest.ID(), got[0].ID())
	assert.Equal(t, older.ID(), got[1].ID())

	got, err = store.ListExpired(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, oldest.ID(), got[0].ID())
}

func testDeleteFinished(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()

	completed := NewSession(t, "cart-completed", Base)
	require.NoError(t, completed.ConfirmPayment("pi_1"))
	require.NoError(t, completed.Complete("ord-1"))

	canceled := NewSession(t, "cart-canceled", Base)
	require.NoError(t, canceled.Cancel("abandoned"))

	recent := NewSession(t, "cart-recent", Base.Add(48*time.Hour))
	require.NoError(t, recent.Cancel("abandoned"))

	open := NewSession(t, "cart-open", Base)

	for _, s := range []*domain.CheckoutSession{completed, canceled, recent, open} {
		require.NoError(t, store.Save(ctx, s))
	}

	deleted, err := store.DeleteFinishedBefore(ctx, Base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	for _, s := range []*domain.CheckoutSession{completed, canceled} {
		_, err := store.Get(ctx, s.ID())
		assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	}
	for _, s := range []*domain.CheckoutSession{recent, open} {
		_, err := store.Get(ctx, s.ID())
		assert.NoError(t, err)
	}
}

// AssertSameSession compares two sessions field by field. Times are compared
// with Equal so stores may return them in any location.
func AssertSameSession(t *testing.T, want, got *domain.CheckoutSession) {
	t.Helper()

	w, g := want.Snapshot(), got.Snapshot()
	assert.Equal(t, w.ID, g.ID)
	assert.Equal(t, w.CustomerID, g.CustomerID)
	assert.Equal(t, w.Guest, g.Guest)
	assert.Equal(t, w.CartID, g.CartID)
	assert.Equal(t, w.PaymentMethod, g.PaymentMethod)
	assert.Equal(t, w.State, g.State)
	assert.Equal(t, w.TotalCents, g.TotalCents)
	assert.Equal(t, w.Delivery, g.Delivery)
	assert.Equal(t, w.PaymentReference, g.PaymentReference)
	assert.Equal(t, w.OrderID, g.OrderID)
	assert.Equal(t, w.CancelReason, g.CancelReason)
	assert.Equal(t, w.Version, g.Version)
	assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "created_at %v != %v", w.CreatedAt, g.CreatedAt)
	assert.True(t, w.ExpiresAt.Equal(g.ExpiresAt), "expires_at %v != %v", w.ExpiresAt, g.ExpiresAt)
	assert.True(t, w.FinishedAt().Equal(g.FinishedAt()), "finished_at %v != %v", w.FinishedAt(), g.FinishedAt())
	assertSameTime(t, "confirmed_at", w.ConfirmedAt, g.ConfirmedAt)
}

func assertSameTime(t *testing.T, name string, want, got *time.Time) {
	t.Helper()
	if want == nil || got == nil {
		assert.Equal(t, want == nil, got == nil, "%s presence differs", name)
		return
	}
	assert.True(t, want.Equal(*got), "%s %v != %v", name, *want, *got)
}
