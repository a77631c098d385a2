package domain

//go:generate mockgen -source=cart.go -destination=mock_cart.go -package=domain

import (
	"context"
)

// CartService is the cart collaborator consumed by checkout.
// The cart owner guarantees a cart is checked out at most once, for example
// by reporting an already checked-out cart as unavailable.
type CartService interface {
	// GetCart retrieves a cart with its line items and totals.
	GetCart(ctx context.Context, cartID string) (*Cart, error)

	// CheckAvailability reports whether every line item is in stock.
	CheckAvailability(ctx context.Context, cartID string) (bool, error)

	// ComputeTotal prices the cart, applying discountCode when non-empty.
	ComputeTotal(ctx context.Context, cartID string, discountCode string) (*CartTotals, error)

	// ClearCart removes all items from a cart.
	ClearCart(ctx context.Context, cartID string) error
}

// Cart is a cart with its line items and totals in minor units.
type Cart struct {
	ID    string
	Items []CartItem
	CartTotals
}

// CartTotals is the price breakdown of a cart in minor units.
type CartTotals struct {
	SubtotalCents  int64
	DiscountsCents int64
	TaxesCents     int64
	TotalCents     int64
}

// CartItem is a cart line item.
type CartItem struct {
	ProductID      string
	Name           string
	Quantity       int32
	UnitPriceCents int64
	LineTotalCents int64
}
