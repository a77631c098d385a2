package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/telemetry"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes a Breaker.
type BreakerSettings struct {
	// Name labels the breaker in logs and metrics.
	Name string

	// MaxFailures is the number of consecutive failures that opens the breaker.
	// Default: 5
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open before letting a trial
	// request through.
	// Default: 30s
	OpenTimeout time.Duration

	// HalfOpenRequests is the number of trial requests allowed while half-open.
	// Default: 1
	HalfOpenRequests uint32
}

// Breaker wraps a Provider with a circuit breaker so an unavailable payment
// API fails fast instead of holding checkouts for the full timeout. Card
// declines and other business rejections do not count as failures.
type Breaker struct {
	next    Provider
	cb      *gobreaker.CircuitBreaker[*domain.Payment]
	name    string
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics
}

var _ Provider = (*Breaker)(nil)

// NewBreaker wraps next. logger and metrics may be nil.
func NewBreaker(next Provider, s BreakerSettings, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *Breaker {
	if s.Name == "" {
		s.Name = "payments"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Breaker{
		next:    next,
		name:    s.Name,
		logger:  logger.With("breaker", s.Name),
		metrics: metrics,
	}
	b.cb = gobreaker.NewCircuitBreaker[*domain.Payment](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("payment circuit breaker state changed", "from", from.String(), "to", to.String())
			b.setState(to)
		},
		IsSuccessful: isBreakerSuccess,
	})
	b.setState(gobreaker.StateClosed)

	return b
}

// Owns implements Owner.
func (b *Breaker) Owns(paymentID string) bool {
	return b.next.Owns(paymentID)
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// ProcessPayment implements domain.PaymentService.
func (b *Breaker) ProcessPayment(ctx context.Context, params domain.ProcessPaymentParams) (*domain.Payment, error) {
	return b.cb.Execute(func() (*domain.Payment, error) {
		return b.next.ProcessPayment(ctx, params)
	})
}

// ConfirmPayment implements domain.PaymentService.
func (b *Breaker) ConfirmPayment(ctx context.Context, paymentID string) error {
	_, err := b.cb.Execute(func() (*domain.Payment, error) {
		return nil, b.next.ConfirmPayment(ctx, paymentID)
	})
	return err
}

// CancelPayment bypasses the breaker. Releasing a held payment must be
// attempted even while new payments are being shed.
func (b *Breaker) CancelPayment(ctx context.Context, paymentID string) error {
	return b.next.CancelPayment(ctx, paymentID)
}

func (b *Breaker) setState(s gobreaker.State) {
	if b.metrics == nil {
		return
	}
	var v float64
	switch s {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	b.metrics.BreakerState.WithLabelValues(b.name).Set(v)
}

// isBreakerSuccess treats rejections that say nothing about the provider's
// health as successes.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	var se *StripeError
	if errors.As(err, &se) {
		return !se.IsTemporary() && se.HTTPStatus != 0
	}

	switch {
	case errors.Is(err, ErrPaymentFailed),
		errors.Is(err, ErrAmountTooSmall),
		errors.Is(err, ErrInstrumentRequired),
		errors.Is(err, ErrUnsupportedMethod),
		errors.Is(err, ErrIdempotencyConflict),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrPaymentNotFound):
		return true
	}
	return false
}
