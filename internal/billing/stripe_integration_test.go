//go:build integration
// +build integration

package billing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadTestConfig loads Stripe test credentials from .env.test
func loadTestConfig(t *testing.T) StripeConfig {
	t.Helper()

	// Load .env.test from project root
	if err := godotenv.Load("../../.env.test"); err != nil {
		t.Logf(".env.test not loaded (%v), falling back to environment", err)
	}

	apiKey := os.Getenv("STRIPE_TEST_API_SECRET_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	if apiKey == "" || apiKey == "sk_test_your_key_here" {
		t.Skip("Skipping integration test: STRIPE_TEST_API_SECRET_KEY or STRIPE_SECRET_KEY not set")
	}

	config := StripeConfig{
		APIKey:         apiKey,
		Currency:       "usd",
		MaxRetries:     3,
		TimeoutSeconds: 30,
	}

	// Verify it's a test key, not a live key
	if !config.IsTestMode() {
		t.Fatal("DANGER: Live Stripe key detected! Integration tests must use test mode keys (sk_test_...)")
	}

	return config
}

func integrationParams(token string) domain.ProcessPaymentParams {
	return domain.ProcessPaymentParams{
		OrderID:        "ord-it-" + uuid.NewString()[:8],
		AmountCents:    5940,
		Method:         domain.PaymentCreditCard,
		Card:           &domain.CardDetails{Token: token},
		CustomerEmail:  "integration@example.com",
		IdempotencyKey: uuid.NewString(),
	}
}

func TestStripeIntegration_ProcessAndConfirm(t *testing.T) {
	p, err := NewStripeProvider(loadTestConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payment, err := p.ProcessPayment(ctx, integrationParams("pm_card_visa"))
	require.NoError(t, err)
	assert.True(t, p.Owns(payment.ID))
	assert.Equal(t, domain.PaymentPending, payment.Status)

	require.NoError(t, p.ConfirmPayment(ctx, payment.ID))
}

func TestStripeIntegration_DeclinedCard(t *testing.T) {
	p, err := NewStripeProvider(loadTestConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payment, err := p.ProcessPayment(ctx, integrationParams("pm_card_chargeDeclined"))
	require.NoError(t, err)

	err = p.ConfirmPayment(ctx, payment.ID)
	assert.ErrorIs(t, err, ErrPaymentFailed)

	var se *StripeError
	if assert.ErrorAs(t, err, &se) {
		assert.True(t, se.IsDeclined())
	}
}

func TestStripeIntegration_Cancel(t *testing.T) {
	p, err := NewStripeProvider(loadTestConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payment, err := p.ProcessPayment(ctx, integrationParams("pm_card_visa"))
	require.NoError(t, err)

	require.NoError(t, p.CancelPayment(ctx, payment.ID))
	assert.ErrorIs(t, p.ConfirmPayment(ctx, payment.ID), ErrInvalidState)
}

func TestStripeIntegration_IdempotencyKey(t *testing.T) {
	p, err := NewStripeProvider(loadTestConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	params := integrationParams("pm_card_visa")
	first, err := p.ProcessPayment(ctx, params)
	require.NoError(t, err)
	second, err := p.ProcessPayment(ctx, params)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NoError(t, p.CancelPayment(ctx, first.ID))
}
