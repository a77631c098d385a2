package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/google/uuid"
)

// OfflineProvider records cash on delivery and bank transfer payments. No
// money moves at checkout; payments stay pending until confirmed by whoever
// collects the cash or reconciles the transfer.
type OfflineProvider struct {
	mu       sync.Mutex
	payments map[string]*offlinePayment
	byKey    map[string]string
	now      func() time.Time
}

type offlinePayment struct {
	payment   domain.Payment
	orderID   string
	amount    int64
	createdAt time.Time
}

var _ domain.PaymentService = (*OfflineProvider)(nil)

// NewOfflineProvider creates an OfflineProvider.
func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{
		payments: make(map[string]*offlinePayment),
		byKey:    make(map[string]string),
		now:      time.Now,
	}
}

// Owns reports whether the payment ID was issued by an OfflineProvider.
func (p *OfflineProvider) Owns(paymentID string) bool {
	return strings.HasPrefix(paymentID, "off_")
}

// ProcessPayment records a pending payment and issues the reference the
// customer quotes when paying.
func (p *OfflineProvider) ProcessPayment(ctx context.Context, params domain.ProcessPaymentParams) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var prefix string
	switch params.Method {
	case domain.PaymentCash:
		prefix = "COD"
	case domain.PaymentBankTransfer:
		prefix = "BT"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, params.Method)
	}
	if params.AmountCents <= 0 {
		return nil, ErrAmountTooSmall
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if params.IdempotencyKey != "" {
		if id, ok := p.byKey[params.IdempotencyKey]; ok {
			existing := p.payments[id]
			if existing.orderID != params.OrderID || existing.amount != params.AmountCents {
				return nil, ErrIdempotencyConflict
			}
			out := existing.payment
			return &out, nil
		}
	}

	id := uuid.New()
	rec := &offlinePayment{
		payment: domain.Payment{
			ID:                "off_" + id.String(),
			Status:            domain.PaymentPending,
			ProviderReference: prefix + "-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10]),
		},
		orderID:   params.OrderID,
		amount:    params.AmountCents,
		createdAt: p.now(),
	}
	p.payments[rec.payment.ID] = rec
	if params.IdempotencyKey != "" {
		p.byKey[params.IdempotencyKey] = rec.payment.ID
	}

	out := rec.payment
	return &out, nil
}

// ConfirmPayment marks a pending payment as collected.
func (p *OfflineProvider) ConfirmPayment(ctx context.Context, paymentID string) error {
	return p.transition(ctx, paymentID, domain.PaymentSucceeded)
}

// CancelPayment voids a pending payment. Canceling twice succeeds.
func (p *OfflineProvider) CancelPayment(ctx context.Context, paymentID string) error {
	return p.transition(ctx, paymentID, domain.PaymentCanceled)
}

// Payment returns a copy of a recorded payment.
func (p *OfflineProvider) Payment(paymentID string) (domain.Payment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.payments[paymentID]
	if !ok {
		return domain.Payment{}, false
	}
	return rec.payment, true
}

func (p *OfflineProvider) transition(ctx context.Context, paymentID string, to domain.PaymentStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.payments[paymentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}

	switch rec.payment.Status {
	case to:
		return nil
	case domain.PaymentPending:
		rec.payment.Status = to
		return nil
	default:
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, paymentID, rec.payment.Status)
	}
}
