package billing

import (
	"context"
	"fmt"

	"github.com/dukerupert/checkout/internal/domain"
)

// Owner is implemented by providers that can tell which payment IDs they
// issued. The Router uses it to send confirm and cancel calls to the provider
// that created the payment.
type Owner interface {
	Owns(paymentID string) bool
}

// Provider is a payment service that knows its own payment IDs.
type Provider interface {
	domain.PaymentService
	Owner
}

// Router implements domain.PaymentService by dispatching each payment method
// to the provider registered for it.
type Router struct {
	byMethod  map[domain.PaymentMethod]Provider
	providers []Provider
}

var _ domain.PaymentService = (*Router)(nil)

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{byMethod: make(map[domain.PaymentMethod]Provider)}
}

// Handle registers provider for the given methods. A later registration for
// the same method replaces the earlier one.
func (r *Router) Handle(provider Provider, methods ...domain.PaymentMethod) *Router {
	for _, m := range methods {
		r.byMethod[m] = provider
	}
	for _, p := range r.providers {
		if p == provider {
			return r
		}
	}
	r.providers = append(r.providers, provider)
	return r
}

// Supports reports whether a provider is registered for the method.
func (r *Router) Supports(method domain.PaymentMethod) bool {
	_, ok := r.byMethod[method]
	return ok
}

// ProcessPayment implements domain.PaymentService.
func (r *Router) ProcessPayment(ctx context.Context, params domain.ProcessPaymentParams) (*domain.Payment, error) {
	p, ok := r.byMethod[params.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, params.Method)
	}
	return p.ProcessPayment(ctx, params)
}

// ConfirmPayment implements domain.PaymentService.
func (r *Router) ConfirmPayment(ctx context.Context, paymentID string) error {
	p, err := r.owner(paymentID)
	if err != nil {
		return err
	}
	return p.ConfirmPayment(ctx, paymentID)
}

// CancelPayment implements domain.PaymentService.
func (r *Router) CancelPayment(ctx context.Context, paymentID string) error {
	p, err := r.owner(paymentID)
	if err != nil {
		return err
	}
	return p.CancelPayment(ctx, paymentID)
}

func (r *Router) owner(paymentID string) (Provider, error) {
	for _, p := range r.providers {
		if p.Owns(paymentID) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no provider owns %q", ErrPaymentNotFound, paymentID)
}
