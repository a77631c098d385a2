package domain

//go:generate mockgen -source=customer.go -destination=mock_customer.go -package=domain

import (
	"context"
)

// CustomerService is the customer collaborator consumed by checkout.
type CustomerService interface {
	// GetCustomer retrieves a registered customer.
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)

	// CreateGuestCustomer registers a transient customer from guest contact data.
	CreateGuestCustomer(ctx context.Context, guest GuestInfo) (*Customer, error)

	// ValidateDeliveryDetails checks deliverability beyond format rules.
	// It may return false, or an error carrying EDELIVERY.
	ValidateDeliveryDetails(ctx context.Context, details DeliveryDetails) (bool, error)
}

// Customer is the resolved buyer of an order.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
	Guest bool
}
