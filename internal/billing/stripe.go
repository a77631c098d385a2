package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/telemetry"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// IntentAPI is the subset of the Stripe PaymentIntent client used by
// StripeProvider. *paymentintent.Client satisfies it.
type IntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// StripeProvider implements domain.PaymentService for card payments using
// Stripe PaymentIntents.
type StripeProvider struct {
	intents IntentAPI
	config  StripeConfig
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics
}

var _ domain.PaymentService = (*StripeProvider)(nil)

// StripeOption configures a StripeProvider.
type StripeOption func(*StripeProvider)

// WithIntentAPI replaces the Stripe client, typically with a fake in tests.
func WithIntentAPI(api IntentAPI) StripeOption {
	return func(s *StripeProvider) {
		s.intents = api
	}
}

// WithStripeLogger sets the provider's logger.
func WithStripeLogger(logger *slog.Logger) StripeOption {
	return func(s *StripeProvider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStripeMetrics records call latency per operation.
func WithStripeMetrics(m *telemetry.BusinessMetrics) StripeOption {
	return func(s *StripeProvider) {
		s.metrics = m
	}
}

// NewStripeProvider creates a Stripe card payment provider.
func NewStripeProvider(cfg StripeConfig, opts ...StripeOption) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &StripeProvider{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.intents == nil {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient:        &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
			MaxNetworkRetries: stripe.Int64(int64(cfg.MaxRetries)),
		})
		s.intents = &paymentintent.Client{B: backend, Key: cfg.APIKey}
	}
	s.logger = s.logger.With("provider", "stripe")

	return s, nil
}

// Owns reports whether the payment ID is a Stripe PaymentIntent.
func (s *StripeProvider) Owns(paymentID string) bool {
	return strings.HasPrefix(paymentID, "pi_")
}

// ProcessPayment creates a PaymentIntent for the order total. Unless
// ConfirmOnCreate is set the intent comes back pending and must be confirmed
// with ConfirmPayment.
func (s *StripeProvider) ProcessPayment(ctx context.Context, params domain.ProcessPaymentParams) (*domain.Payment, error) {
	if !params.Method.RequiresCard() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, params.Method)
	}
	if params.Card == nil || strings.TrimSpace(params.Card.Token) == "" {
		return nil, ErrInstrumentRequired
	}
	if params.AmountCents <= 0 {
		return nil, ErrAmountTooSmall
	}

	p := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(params.AmountCents),
		Currency:           stripe.String(s.config.Currency),
		PaymentMethod:      stripe.String(params.Card.Token),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Confirm:            stripe.Bool(s.config.ConfirmOnCreate),
		Description:        stripe.String("Order " + params.OrderID),
	}
	if params.CustomerEmail != "" {
		p.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	if s.config.StatementDescriptor != "" {
		p.StatementDescriptorSuffix = stripe.String(s.config.StatementDescriptor)
	}
	p.Context = ctx
	p.AddMetadata("order_id", params.OrderID)
	p.AddMetadata("payment_method", string(params.Method))
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey("checkout-" + params.IdempotencyKey)
	}

	start := time.Now()
	pi, err := s.intents.New(p)
	s.observe("process", start)
	if err != nil {
		err = fromStripe(err)
		s.logger.Warn("payment intent creation failed", "order_id", params.OrderID, "error", err)
		return nil, err
	}

	payment := toPayment(pi)
	s.logger.Info("payment intent created",
		"order_id", params.OrderID,
		"payment_id", payment.ID,
		"status", pi.Status,
	)
	return payment, nil
}

// ConfirmPayment confirms a pending PaymentIntent. Anything other than a
// succeeded or processing intent afterwards is an error.
func (s *StripeProvider) ConfirmPayment(ctx context.Context, paymentID string) error {
	p := &stripe.PaymentIntentConfirmParams{}
	p.Context = ctx
	p.SetIdempotencyKey("confirm-" + paymentID)

	start := time.Now()
	pi, err := s.intents.Confirm(paymentID, p)
	s.observe("confirm", start)
	if err != nil {
		return fromStripe(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return nil
	case stripe.PaymentIntentStatusRequiresAction:
		return fmt.Errorf("%w: %s requires customer authentication", ErrPaymentFailed, paymentID)
	default:
		return fmt.Errorf("%w: %s is %s: %s", ErrPaymentFailed, paymentID, pi.Status, failureReason(pi))
	}
}

// CancelPayment cancels an uncaptured PaymentIntent. Canceling an already
// canceled intent succeeds.
func (s *StripeProvider) CancelPayment(ctx context.Context, paymentID string) error {
	p := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	p.Context = ctx

	start := time.Now()
	pi, err := s.intents.Cancel(paymentID, p)
	s.observe("cancel", start)
	if err != nil {
		return fromStripe(err)
	}
	if pi.Status != stripe.PaymentIntentStatusCanceled {
		return fmt.Errorf("%w: %s is %s after cancel", ErrInvalidState, paymentID, pi.Status)
	}

	s.logger.Info("payment intent canceled", "payment_id", paymentID)
	return nil
}

func (s *StripeProvider) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.PaymentAPILatency.WithLabelValues("stripe", operation).Observe(time.Since(start).Seconds())
	}
}

func toPayment(pi *stripe.PaymentIntent) *domain.Payment {
	p := &domain.Payment{
		ID:                pi.ID,
		ProviderReference: pi.ID,
	}
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		p.ProviderReference = pi.LatestCharge.ID
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		p.Status = domain.PaymentSucceeded
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// Returned to this state after a decline.
		if pi.LastPaymentError != nil {
			p.Status = domain.PaymentFailedStatus
			p.FailureReason = failureReason(pi)
		} else {
			p.Status = domain.PaymentPending
		}
	case stripe.PaymentIntentStatusCanceled:
		p.Status = domain.PaymentCanceled
		p.FailureReason = string(pi.CancellationReason)
	default:
		p.Status = domain.PaymentPending
	}
	return p
}

func failureReason(pi *stripe.PaymentIntent) string {
	if pi.LastPaymentError == nil {
		return string(pi.Status)
	}
	e := pi.LastPaymentError
	if e.DeclineCode != "" {
		return string(e.DeclineCode)
	}
	if e.Code != "" {
		return string(e.Code)
	}
	return e.Msg
}
