package billing

import (
	"context"
	"testing"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineParams(method domain.PaymentMethod) domain.ProcessPaymentParams {
	return domain.ProcessPaymentParams{
		OrderID:        "ord-1",
		AmountCents:    5940,
		Method:         method,
		IdempotencyKey: "sess-1",
	}
}

func TestOfflineProcessPayment(t *testing.T) {
	tests := []struct {
		name       string
		method     domain.PaymentMethod
		wantPrefix string
		wantErr    error
	}{
		{name: "cash on delivery", method: domain.PaymentCash, wantPrefix: "COD-"},
		{name: "bank transfer", method: domain.PaymentBankTransfer, wantPrefix: "BT-"},
		{name: "card is not offline", method: domain.PaymentCreditCard, wantErr: ErrUnsupportedMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewOfflineProvider()

			payment, err := p.ProcessPayment(context.Background(), offlineParams(tt.method))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.PaymentPending, payment.Status)
			assert.True(t, p.Owns(payment.ID))
			assert.Regexp(t, "^"+tt.wantPrefix+"[0-9A-F]{10}$", payment.ProviderReference)
		})
	}
}

func TestOfflineProcessPayment_Idempotent(t *testing.T) {
	p := NewOfflineProvider()

	first, err := p.ProcessPayment(context.Background(), offlineParams(domain.PaymentCash))
	require.NoError(t, err)
	second, err := p.ProcessPayment(context.Background(), offlineParams(domain.PaymentCash))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	conflicting := offlineParams(domain.PaymentCash)
	conflicting.AmountCents = 100
	_, err = p.ProcessPayment(context.Background(), conflicting)
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestOfflineTransitions(t *testing.T) {
	ctx := context.Background()
	p := NewOfflineProvider()

	paid, err := p.ProcessPayment(ctx, offlineParams(domain.PaymentCash))
	require.NoError(t, err)
	require.NoError(t, p.ConfirmPayment(ctx, paid.ID))
	require.NoError(t, p.ConfirmPayment(ctx, paid.ID), "confirming twice is a no-op")
	assert.ErrorIs(t, p.CancelPayment(ctx, paid.ID), ErrInvalidState)

	got, ok := p.Payment(paid.ID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentSucceeded, got.Status)

	voided, err := p.ProcessPayment(ctx, domain.ProcessPaymentParams{OrderID: "ord-2", AmountCents: 100, Method: domain.PaymentBankTransfer})
	require.NoError(t, err)
	require.NoError(t, p.CancelPayment(ctx, voided.ID))
	require.NoError(t, p.CancelPayment(ctx, voided.ID))
	assert.ErrorIs(t, p.ConfirmPayment(ctx, voided.ID), ErrInvalidState)

	assert.ErrorIs(t, p.CancelPayment(ctx, "off_missing"), ErrPaymentNotFound)
}

func TestOfflineProvider_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOfflineProvider().ProcessPayment(ctx, offlineParams(domain.PaymentCash))
	assert.ErrorIs(t, err, context.Canceled)
}
