package billing

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
)

var (
	// ErrInvalidAPIKey is returned when Stripe API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrPaymentNotFound is returned when a payment does not exist or is owned
	// by no registered provider.
	ErrPaymentNotFound = errors.New("billing: payment not found")

	// ErrPaymentFailed is returned when payment fails (card declined, etc.)
	ErrPaymentFailed = errors.New("billing: payment failed")

	// ErrIdempotencyConflict is returned when idempotency key matches a different request.
	ErrIdempotencyConflict = errors.New("billing: idempotency key conflict")

	// ErrAmountTooSmall is returned when payment amount is below Stripe's minimum.
	ErrAmountTooSmall = errors.New("billing: amount too small (minimum $0.50 USD)")

	// ErrUnsupportedMethod is returned when no provider handles a payment method.
	ErrUnsupportedMethod = errors.New("billing: unsupported payment method")

	// ErrInstrumentRequired is returned when a card payment has no card token.
	ErrInstrumentRequired = errors.New("billing: card payment method required")

	// ErrInvalidState is returned when a payment cannot move to the requested status.
	ErrInvalidState = errors.New("billing: payment is not in a state that allows this operation")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "card_declined")
	DeclineCode   string // Card decline reason (if applicable)
	StripeCode    string // HTTP status code from Stripe
	HTTPStatus    int    // StripeCode as a number, 0 for network failures
	RequestID     string // Stripe request ID for debugging
	Kind          error  // Billing sentinel this error maps to, if any
	OriginalError error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// Is matches the billing sentinel the error was classified as.
func (e *StripeError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// IsDeclined returns true if error is due to card decline.
func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" || e.HTTPStatus == 429 || e.HTTPStatus >= 500
}

// fromStripe converts an SDK error into a *StripeError. Errors that did not
// come from the Stripe API are returned unchanged.
func fromStripe(err error) error {
	if err == nil {
		return nil
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}

	out := &StripeError{
		Message:       se.Msg,
		Code:          string(se.Code),
		DeclineCode:   string(se.DeclineCode),
		RequestID:     se.RequestID,
		HTTPStatus:    se.HTTPStatusCode,
		OriginalError: err,
	}
	if se.HTTPStatusCode != 0 {
		out.StripeCode = strconv.Itoa(se.HTTPStatusCode)
	}

	switch {
	case se.HTTPStatusCode == 401:
		out.Kind = ErrInvalidAPIKey
	case out.Code == "resource_missing":
		out.Kind = ErrPaymentNotFound
	case out.Code == "amount_too_small":
		out.Kind = ErrAmountTooSmall
	case out.Code == "payment_intent_unexpected_state":
		out.Kind = ErrInvalidState
	case string(se.Type) == "idempotency_error":
		out.Kind = ErrIdempotencyConflict
	case string(se.Type) == "card_error":
		out.Kind = ErrPaymentFailed
	}

	return out
}
