package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusinessMetrics_IsolatedRegistries(t *testing.T) {
	a := NewBusinessMetrics("checkout", prometheus.NewRegistry())
	b := NewBusinessMetrics("checkout", prometheus.NewRegistry())

	a.CheckoutStarted.WithLabelValues("credit_card").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.CheckoutStarted.WithLabelValues("credit_card")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CheckoutStarted.WithLabelValues("credit_card")))
}

func TestNewBusinessMetrics_Names(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBusinessMetrics("checkout", reg)

	m.FinalizeFailures.WithLabelValues("clear_cart").Inc()
	m.SessionsPurged.Add(2)
	m.BreakerState.WithLabelValues("stripe").Set(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "checkout_business_finalize_failures_total")
	assert.Contains(t, names, "checkout_business_sessions_purged_total")
	assert.Contains(t, names, "checkout_business_circuit_breaker_state")
}

func TestSentryDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cleanup, err := InitSentry(SentryConfig{Enabled: false}, logger)
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, IsEnabled())

	// All capture helpers are no-ops when disabled.
	CaptureError(errors.New("boom"))
	CaptureCheckoutError(errors.New("boom"), "session-1", "payment_failed", nil)
	CaptureMessage("paid checkout session expired without an order", sentry.LevelWarning, "session-1", nil)
	AddBreadcrumb("checkout", "payment", nil)

	ctx, finish := StartSpan(context.Background(), "checkout.execute", "test")
	assert.NotNil(t, ctx)
	finish()
}
