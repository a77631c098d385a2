// Package events publishes checkout lifecycle notifications.
//
// Notifications are fire-and-forget: they are not an event log and a failed
// publish never affects the outcome of a checkout.
package events

import (
	"context"
	"time"
)

// Type names a checkout lifecycle event.
type Type string

const (
	CheckoutCompleted Type = "checkout.completed"
	CheckoutCanceled  Type = "checkout.canceled"
)

// Event is the payload published for a checkout lifecycle change.
type Event struct {
	ID               string    `json:"id"`
	Type             Type      `json:"type"`
	SessionID        string    `json:"session_id"`
	OrderID          string    `json:"order_id,omitempty"`
	PaymentID        string    `json:"payment_id,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	PaymentMethod    string    `json:"payment_method,omitempty"`
	TotalCents       int64     `json:"total_cents,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Publisher delivers checkout events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }
