package domain

//go:generate mockgen -source=session_store.go -destination=mock_session_store.go -package=domain

import (
	"context"
	"time"
)

// SessionStore persists checkout sessions. Implementations enforce optimistic
// concurrency: Save must fail with ECONFLICT when the stored version differs
// from the session's Version, and call Stored with the new version on success.
type SessionStore interface {
	// Save inserts or updates a session.
	Save(ctx context.Context, s *CheckoutSession) error

	// Get retrieves a session by ID. Returns ENOTFOUND if absent.
	Get(ctx context.Context, id string) (*CheckoutSession, error)

	// ListExpired returns up to limit non-terminal sessions whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*CheckoutSession, error)

	// DeleteFinishedBefore removes terminal sessions that ended before cutoff.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionSnapshot is the persisted form of a CheckoutSession.
type SessionSnapshot struct {
	ID               string        `json:"id"`
	CustomerID       string        `json:"customer_id,omitempty"`
	Guest            *GuestInfo    `json:"guest,omitempty"`
	CartID           string        `json:"cart_id"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	State            SessionState  `json:"state"`
	TotalCents       int64         `json:"total_cents"`
	Delivery         DeliveryInput `json:"delivery"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	PaymentReference string        `json:"payment_reference,omitempty"`
	OrderID          string        `json:"order_id,omitempty"`
	ConfirmedAt      *time.Time    `json:"confirmed_at,omitempty"`
	CanceledAt       *time.Time    `json:"canceled_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CancelReason     string        `json:"cancel_reason,omitempty"`
	Version          int64         `json:"version"`
}

// Snapshot returns the persisted form of s.
func (s *CheckoutSession) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:               s.id,
		CustomerID:       s.customerID,
		Guest:            s.Guest(),
		CartID:           s.cartID,
		PaymentMethod:    s.paymentMethod,
		State:            s.state,
		TotalCents:       s.totalCents,
		Delivery:         s.delivery.Input(),
		CreatedAt:        s.createdAt,
		ExpiresAt:        s.expiresAt,
		PaymentReference: s.paymentReference,
		OrderID:          s.orderID,
		ConfirmedAt:      timePtr(s.confirmedAt),
		CanceledAt:       timePtr(s.canceledAt),
		CompletedAt:      timePtr(s.completedAt),
		CancelReason:     s.cancelReason,
		Version:          s.version,
	}
}

// RestoreCheckoutSession rebuilds a session from its persisted form.
// Snapshots that break the session invariants are rejected.
func RestoreCheckoutSession(snap SessionSnapshot, opts ...SessionOption) (*CheckoutSession, error) {
	const op = "session.restore"

	if snap.ID == "" {
		return nil, Invalid(op, "session id is required")
	}
	if snap.TotalCents <= 0 {
		return nil, ErrInvalidTotal.With(op, "session_id", snap.ID)
	}

	delivery, err := NewDeliveryDetails(snap.Delivery)
	if err != nil {
		return nil, err
	}

	hasRef := snap.PaymentReference != ""
	hasOrder := snap.OrderID != ""
	var consistent bool
	switch snap.State {
	case SessionStarted:
		consistent = !hasRef && !hasOrder && snap.ConfirmedAt == nil && snap.CanceledAt == nil && snap.CompletedAt == nil
	case SessionPaymentConfirmed:
		consistent = hasRef && !hasOrder && snap.ConfirmedAt != nil && snap.CanceledAt == nil && snap.CompletedAt == nil
	case SessionCompleted:
		consistent = hasRef && hasOrder && snap.ConfirmedAt != nil && snap.CompletedAt != nil && snap.CanceledAt == nil
	case SessionCanceled:
		consistent = !hasRef && !hasOrder && snap.CanceledAt != nil && snap.CompletedAt == nil
	}
	if !consistent {
		return nil, Errorf(EINVALID, KindValidation, op, "session %s has inconsistent state %q", snap.ID, snap.State)
	}

	s := &CheckoutSession{
		id:               snap.ID,
		customerID:       snap.CustomerID,
		cartID:           snap.CartID,
		paymentMethod:    snap.PaymentMethod,
		state:            snap.State,
		totalCents:       snap.TotalCents,
		delivery:         delivery,
		createdAt:        snap.CreatedAt,
		expiresAt:        snap.ExpiresAt,
		paymentReference: snap.PaymentReference,
		orderID:          snap.OrderID,
		confirmedAt:      timeVal(snap.ConfirmedAt),
		canceledAt:       timeVal(snap.CanceledAt),
		completedAt:      timeVal(snap.CompletedAt),
		cancelReason:     snap.CancelReason,
		version:          snap.Version,
	}
	if snap.Guest != nil {
		g := *snap.Guest
		s.guest = &g
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// FinishedAt returns when the session reached a terminal state, or the zero
// time if it has not.
func (snap SessionSnapshot) FinishedAt() time.Time {
	switch snap.State {
	case SessionCompleted:
		return timeVal(snap.CompletedAt)
	case SessionCanceled:
		return timeVal(snap.CanceledAt)
	}
	return time.Time{}
}
