package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers deciding whether to retry, show a
// validation message, or escalate.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindBusiness       Kind = "business"
	KindInfrastructure Kind = "infrastructure"
	KindNotFound       Kind = "not_found"
)

// Application error codes.
// These are machine-readable and stable; callers switch on them.
const (
	ECARTEMPTY        = "empty_cart"                  // validation - cart has no items
	ESTOCK            = "stock_unavailable"           // business - availability check failed
	EDELIVERY         = "delivery_details_invalid"    // validation - address/city/postal/phone rules
	EINSTRUMENT       = "payment_instrument_required" // validation - card method without card data
	EGUEST            = "guest_info_required"         // validation - no customer id and no guest data
	ETOTAL            = "invalid_total"               // validation - total must be positive
	EPAYMENT          = "payment_failed"              // infrastructure - payment rejected or unavailable
	EEXPIRED          = "session_expired"             // business - session past expiresAt
	ECONFIRMED        = "session_already_confirmed"   // business - second confirmation
	ETRANSITION       = "invalid_transition"          // business - state does not permit operation
	ENOTFOUND         = "session_not_found"           // not found
	ECONFLICT         = "conflict"                    // business - concurrent write detected
	EINVALID          = "invalid"                     // validation - generic bad input
	EINTERNAL         = "internal"                    // infrastructure - hide details
	ECHECKOUT         = "checkout_failed"             // business - generic checkout failure
	ECUSTOMERNOTFOUND = "customer_not_found"          // not found
	ECARTNOTFOUND     = "cart_not_found"              // not found
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., ECARTEMPTY, EPAYMENT).
	Code string

	// Kind is the classification used to pick a status and retry policy.
	Kind Kind

	// Message is a human-readable error message safe to show to users.
	Message string

	// Op is the operation where the error occurred (e.g., "checkout.execute").
	// Used for debugging and logging, not shown to users.
	Op string

	// Err is the underlying error, if any. Used for error wrapping.
	Err error

	// Context carries structured diagnostics (cart id, order id, ...).
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a domain error with the same code.
// This lets the package-level sentinels match errors built with extra context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Status returns an HTTP-style status code used as a severity hint.
func (e *Error) Status() int {
	switch e.Code {
	case EPAYMENT:
		return http.StatusPaymentRequired
	case EEXPIRED:
		return http.StatusGone
	case ESTOCK, ECONFIRMED, ETRANSITION, ECONFLICT:
		return http.StatusConflict
	}

	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindBusiness:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// With returns a copy of e annotated with op and the given key/value pairs.
// Odd trailing keys are ignored.
func (e *Error) With(op string, kv ...any) *Error {
	c := &Error{
		Code:    e.Code,
		Kind:    e.Kind,
		Message: e.Message,
		Op:      op,
		Err:     e.Err,
	}
	if len(e.Context) > 0 || len(kv) > 1 {
		c.Context = make(map[string]any, len(e.Context)+len(kv)/2)
		for k, v := range e.Context {
			c.Context[k] = v
		}
		for i := 0; i+1 < len(kv); i += 2 {
			if k, ok := kv[i].(string); ok {
				c.Context[k] = kv[i+1]
			}
		}
	}
	return c
}

// Wrap returns a copy of e with err as the underlying cause.
func (e *Error) Wrap(err error) *Error {
	c := e.With(e.Op)
	c.Err = err
	return c
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorKind extracts the classification from an error.
// Non-domain errors are infrastructure failures.
func ErrorKind(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}

	return KindInfrastructure
}

// ErrorStatus extracts the HTTP-style status hint from an error.
func ErrorStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Status()
	}

	return http.StatusInternalServerError
}

// ErrorMessage extracts a user-facing message from an error.
// For internal errors, returns a generic message to avoid leaking details.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}

	return "An internal error occurred. Please try again later."
}

// ErrorOp extracts the operation from an error (for logging).
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}

	return ""
}

// ErrorContext extracts structured diagnostics from an error.
// Returns nil if err carries none.
func ErrorContext(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Context
	}
	return nil
}

// Errorf creates a new domain error with formatted message.
// Example: domain.Errorf(domain.EINVALID, domain.KindValidation, "checkout.execute", "unknown method: %s", m)
func Errorf(code string, kind Kind, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a domain error code and operation.
// Returns nil if err is nil.
func WrapError(err error, code string, kind Kind, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// =============================================================================
// Validation Errors (field-level errors)
// =============================================================================

// ValidationError represents one or more field validation failures.
type ValidationError struct {
	// Fields maps field names to error messages.
	Fields map[string]string

	// Op is the operation where validation failed.
	Op string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			if e.Op != "" {
				return fmt.Sprintf("%s: %s: %s", e.Op, field, msg)
			}
			return fmt.Sprintf("%s: %s", field, msg)
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: validation failed for %d fields", e.Op, len(e.Fields))
	}
	return fmt.Sprintf("validation failed for %d fields", len(e.Fields))
}

// GetValidationFields extracts field errors from a ValidationError.
// Returns nil if err is not a ValidationError.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// =============================================================================
// Checkout errors
// =============================================================================

// Sentinels for errors.Is comparisons. Errors returned by this module carry
// the same codes plus an Op and Context.
var (
	ErrEmptyCart                 = &Error{Code: ECARTEMPTY, Kind: KindValidation, Message: "Cart is empty"}
	ErrStockUnavailable          = &Error{Code: ESTOCK, Kind: KindBusiness, Message: "One or more items are out of stock"}
	ErrDeliveryDetailsInvalid    = &Error{Code: EDELIVERY, Kind: KindValidation, Message: "Delivery details are invalid"}
	ErrPaymentInstrumentRequired = &Error{Code: EINSTRUMENT, Kind: KindValidation, Message: "Card details are required for this payment method"}
	ErrGuestInfoRequired         = &Error{Code: EGUEST, Kind: KindValidation, Message: "Guest details are required when no customer is signed in"}
	ErrInvalidTotal              = &Error{Code: ETOTAL, Kind: KindValidation, Message: "Checkout total must be greater than zero"}
	ErrPaymentFailed             = &Error{Code: EPAYMENT, Kind: KindInfrastructure, Message: "Payment could not be processed"}
	ErrSessionExpired            = &Error{Code: EEXPIRED, Kind: KindBusiness, Message: "Checkout session has expired"}
	ErrSessionAlreadyConfirmed   = &Error{Code: ECONFIRMED, Kind: KindBusiness, Message: "Checkout payment already confirmed"}
	ErrInvalidTransition         = &Error{Code: ETRANSITION, Kind: KindBusiness, Message: "Checkout session cannot change to the requested state"}
	ErrSessionNotFound           = &Error{Code: ENOTFOUND, Kind: KindNotFound, Message: "Checkout session not found"}
	ErrConflict                  = &Error{Code: ECONFLICT, Kind: KindBusiness, Message: "Checkout session was modified concurrently"}
	ErrCheckoutFailed            = &Error{Code: ECHECKOUT, Kind: KindBusiness, Message: "Checkout could not be completed"}
	ErrCustomerNotFound          = &Error{Code: ECUSTOMERNOTFOUND, Kind: KindNotFound, Message: "Customer not found"}
	ErrCartNotFound              = &Error{Code: ECARTNOTFOUND, Kind: KindNotFound, Message: "Cart not found"}
)

// DeliveryDetailsInvalid creates a delivery validation error carrying per-field messages.
func DeliveryDetailsInvalid(op string, fields map[string]string) error {
	e := ErrDeliveryDetailsInvalid.With(op, "fields", fields)
	e.Err = &ValidationError{Op: op, Fields: fields}
	return e
}

// PaymentFailed creates a payment failure error for an order.
// compensated reports whether the order was canceled successfully.
func PaymentFailed(op, orderID string, compensated bool, cause error) error {
	return ErrPaymentFailed.With(op, "order_id", orderID, "compensated", compensated).Wrap(cause)
}

// NotFound creates a not found error for a session.
// Example: domain.NotFound("checkout.get_session", sessionID)
func NotFound(op, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Kind:    KindNotFound,
		Op:      op,
		Message: fmt.Sprintf("Checkout session not found: %s", identifier),
		Context: map[string]any{"session_id": identifier},
	}
}

// Invalid creates a validation error for a single issue.
// Example: domain.Invalid("checkout.execute", "cart id is required")
func Invalid(op, message string) error {
	return &Error{
		Code:    EINVALID,
		Kind:    KindValidation,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error (wraps underlying error).
// The message shown to users will be generic; the underlying error is for logging.
// Example: domain.Internal(err, "checkout.create_order", "failed to create order")
func Internal(err error, op, message string) error {
	return &Error{
		Code:    EINTERNAL,
		Kind:    KindInfrastructure,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
