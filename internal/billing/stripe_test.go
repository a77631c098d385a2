package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

// fakeIntents is an in-process stand-in for the Stripe PaymentIntent API.
type fakeIntents struct {
	newFunc     func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	confirmFunc func(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	cancelFunc  func(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)

	created   []*stripe.PaymentIntentParams
	confirmed []string
	canceled  []string
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = append(f.created, params)
	if f.newFunc != nil {
		return f.newFunc(params)
	}
	return &stripe.PaymentIntent{
		ID:     "pi_test_123",
		Amount: *params.Amount,
		Status: stripe.PaymentIntentStatusRequiresConfirmation,
	}, nil
}

func (f *fakeIntents) Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	f.confirmed = append(f.confirmed, id)
	if f.confirmFunc != nil {
		return f.confirmFunc(id, params)
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func (f *fakeIntents) Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	f.canceled = append(f.canceled, id)
	if f.cancelFunc != nil {
		return f.cancelFunc(id, params)
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusCanceled}, nil
}

func newTestStripe(t *testing.T, api *fakeIntents, cfg StripeConfig) *StripeProvider {
	t.Helper()
	if cfg.APIKey == "" {
		cfg.APIKey = "sk_test_123"
	}
	p, err := NewStripeProvider(cfg, WithIntentAPI(api))
	require.NoError(t, err)
	return p
}

func cardParams() domain.ProcessPaymentParams {
	return domain.ProcessPaymentParams{
		OrderID:        "ord-1",
		AmountCents:    5940,
		Method:         domain.PaymentCreditCard,
		Card:           &domain.CardDetails{Token: "pm_card_visa"},
		CustomerEmail:  "customer@example.com",
		IdempotencyKey: "sess-1",
	}
}

// TestStripeProcessPayment tests payment intent creation with various scenarios
func TestStripeProcessPayment(t *testing.T) {
	tests := []struct {
		name       string
		params     func() domain.ProcessPaymentParams
		setupMock  func(*fakeIntents)
		wantStatus domain.PaymentStatus
		wantErr    error
	}{
		{
			name:       "creates pending intent awaiting confirmation",
			params:     cardParams,
			wantStatus: domain.PaymentPending,
		},
		{
			name:   "immediately succeeded intent",
			params: cardParams,
			setupMock: func(f *fakeIntents) {
				f.newFunc = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
					return &stripe.PaymentIntent{
						ID:           "pi_test_123",
						Status:       stripe.PaymentIntentStatusSucceeded,
						LatestCharge: &stripe.Charge{ID: "ch_test_1"},
					}, nil
				}
			},
			wantStatus: domain.PaymentSucceeded,
		},
		{
			name:   "declined card comes back as failed status",
			params: cardParams,
			setupMock: func(f *fakeIntents) {
				f.newFunc = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
					return &stripe.PaymentIntent{
						ID:     "pi_test_123",
						Status: stripe.PaymentIntentStatusRequiresPaymentMethod,
						LastPaymentError: &stripe.Error{
							Code:        stripe.ErrorCodeCardDeclined,
							DeclineCode: stripe.DeclineCodeInsufficientFunds,
						},
					}, nil
				}
			},
			wantStatus: domain.PaymentFailedStatus,
		},
		{
			name: "rejects offline method",
			params: func() domain.ProcessPaymentParams {
				p := cardParams()
				p.Method = domain.PaymentCash
				return p
			},
			wantErr: ErrUnsupportedMethod,
		},
		{
			name: "requires card token",
			params: func() domain.ProcessPaymentParams {
				p := cardParams()
				p.Card = &domain.CardDetails{}
				return p
			},
			wantErr: ErrInstrumentRequired,
		},
		{
			name:   "maps card error",
			params: cardParams,
			setupMock: func(f *fakeIntents) {
				f.newFunc = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
					return nil, &stripe.Error{
						Type:           "card_error",
						Code:           stripe.ErrorCodeCardDeclined,
						Msg:            "Your card was declined.",
						HTTPStatusCode: 402,
					}
				}
			},
			wantErr: ErrPaymentFailed,
		},
		{
			name:   "maps idempotency conflict",
			params: cardParams,
			setupMock: func(f *fakeIntents) {
				f.newFunc = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
					return nil, &stripe.Error{Type: "idempotency_error", Msg: "Keys for idempotent requests can only be used with the same parameters", HTTPStatusCode: 400}
				}
			},
			wantErr: ErrIdempotencyConflict,
		},
		{
			name:   "maps amount too small",
			params: cardParams,
			setupMock: func(f *fakeIntents) {
				f.newFunc = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
					return nil, &stripe.Error{Type: "invalid_request_error", Code: "amount_too_small", HTTPStatusCode: 400}
				}
			},
			wantErr: ErrAmountTooSmall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeIntents{}
			if tt.setupMock != nil {
				tt.setupMock(api)
			}
			p := newTestStripe(t, api, StripeConfig{})

			payment, err := p.ProcessPayment(context.Background(), tt.params())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, payment)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "pi_test_123", payment.ID)
			assert.Equal(t, tt.wantStatus, payment.Status)
		})
	}
}

func TestStripeProcessPayment_RequestParams(t *testing.T) {
	api := &fakeIntents{}
	p := newTestStripe(t, api, StripeConfig{Currency: "EUR", StatementDescriptor: "ROASTERY"})

	_, err := p.ProcessPayment(context.Background(), cardParams())
	require.NoError(t, err)

	require.Len(t, api.created, 1)
	req := api.created[0]
	assert.Equal(t, int64(5940), *req.Amount)
	assert.Equal(t, "eur", *req.Currency)
	assert.Equal(t, "pm_card_visa", *req.PaymentMethod)
	assert.False(t, *req.Confirm)
	assert.Equal(t, "customer@example.com", *req.ReceiptEmail)
	assert.Equal(t, "ROASTERY", *req.StatementDescriptorSuffix)
	assert.Equal(t, "ord-1", req.Metadata["order_id"])
	assert.Equal(t, "checkout-sess-1", *req.IdempotencyKey)
	assert.NotNil(t, req.Context)
}

func TestStripeProcessPayment_ReferenceFromCharge(t *testing.T) {
	api := &fakeIntents{
		newFunc: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return &stripe.PaymentIntent{
				ID:           "pi_test_123",
				Status:       stripe.PaymentIntentStatusSucceeded,
				LatestCharge: &stripe.Charge{ID: "ch_test_1"},
			}, nil
		},
	}
	p := newTestStripe(t, api, StripeConfig{ConfirmOnCreate: true})

	payment, err := p.ProcessPayment(context.Background(), cardParams())

	require.NoError(t, err)
	assert.Equal(t, "ch_test_1", payment.ProviderReference)
	assert.True(t, *api.created[0].Confirm)
}

func TestStripeConfirmPayment(t *testing.T) {
	tests := []struct {
		name    string
		status  stripe.PaymentIntentStatus
		err     error
		wantErr error
	}{
		{name: "succeeded", status: stripe.PaymentIntentStatusSucceeded},
		{name: "processing counts as confirmed", status: stripe.PaymentIntentStatusProcessing},
		{name: "requires action", status: stripe.PaymentIntentStatusRequiresAction, wantErr: ErrPaymentFailed},
		{name: "declined on confirm", status: stripe.PaymentIntentStatusRequiresPaymentMethod, wantErr: ErrPaymentFailed},
		{
			name:    "unexpected state",
			err:     &stripe.Error{Code: "payment_intent_unexpected_state", HTTPStatusCode: 400},
			wantErr: ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeIntents{
				confirmFunc: func(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &stripe.PaymentIntent{ID: id, Status: tt.status}, nil
				},
			}
			p := newTestStripe(t, api, StripeConfig{})

			err := p.ConfirmPayment(context.Background(), "pi_test_123")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []string{"pi_test_123"}, api.confirmed)
		})
	}
}

func TestStripeCancelPayment(t *testing.T) {
	api := &fakeIntents{}
	p := newTestStripe(t, api, StripeConfig{})

	require.NoError(t, p.CancelPayment(context.Background(), "pi_test_123"))
	assert.Equal(t, []string{"pi_test_123"}, api.canceled)

	api.cancelFunc = func(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
		return nil, &stripe.Error{Code: "resource_missing", Msg: "No such payment_intent", HTTPStatusCode: 404}
	}
	err := p.CancelPayment(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	var se *StripeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "404", se.StripeCode)
	assert.False(t, se.IsTemporary())
}

func TestStripeProvider_RecordsLatency(t *testing.T) {
	metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
	p, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123"}, WithIntentAPI(&fakeIntents{}), WithStripeMetrics(metrics))
	require.NoError(t, err)

	_, err = p.ProcessPayment(context.Background(), cardParams())
	require.NoError(t, err)
	require.NoError(t, p.ConfirmPayment(context.Background(), "pi_test_123"))

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.PaymentAPILatency))
}

func TestStripeConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   StripeConfig
		wantErr  bool
		testMode bool
	}{
		{name: "test key", config: StripeConfig{APIKey: "sk_test_abc"}, testMode: true},
		{name: "live key", config: StripeConfig{APIKey: "sk_live_abc"}},
		{name: "missing key", config: StripeConfig{}, wantErr: true},
		{name: "publishable key", config: StripeConfig{APIKey: "pk_test_abc"}, wantErr: true},
		{name: "descriptor too long", config: StripeConfig{APIKey: "sk_test_abc", StatementDescriptor: "THIS DESCRIPTOR IS FAR TOO LONG"}, wantErr: true, testMode: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.testMode, tt.config.IsTestMode())
		})
	}
}

func TestFromStripe(t *testing.T) {
	plain := errors.New("dial tcp: connection refused")
	assert.Same(t, plain, fromStripe(plain))
	assert.Nil(t, fromStripe(nil))

	err := fromStripe(&stripe.Error{Msg: "Invalid API Key provided", HTTPStatusCode: 401})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	err = fromStripe(&stripe.Error{Code: "rate_limit", HTTPStatusCode: 429})
	var se *StripeError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.IsTemporary())

	err = fromStripe(&stripe.Error{Type: "card_error", Code: stripe.ErrorCodeCardDeclined, DeclineCode: "stolen_card", HTTPStatusCode: 402})
	require.True(t, errors.As(err, &se))
	assert.True(t, se.IsDeclined())
}
