package domain

//go:generate mockgen -source=order.go -destination=mock_order.go -package=domain

import (
	"context"
)

// OrderStatus is the status an order collaborator tracks.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderCanceled       OrderStatus = "canceled"
)

// OrderService is the order collaborator consumed by checkout.
type OrderService interface {
	// CreateOrder creates an order in the pending payment status.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error)

	// CancelOrder cancels an order. Used to compensate a failed payment.
	CancelOrder(ctx context.Context, orderID string) error

	// UpdateStatus moves an order to status.
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) error
}

// CreateOrderParams contains parameters for creating an order.
type CreateOrderParams struct {
	Customer   Customer
	Items      []CartItem
	TotalCents int64
	Delivery   DeliveryDetails
	SessionID  string
}

// Order is an order as reported by the order collaborator.
type Order struct {
	ID     string
	Status OrderStatus
}
