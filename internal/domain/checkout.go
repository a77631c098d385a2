package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SessionLifetime is how long a checkout session stays open after creation.
const SessionLifetime = 30 * time.Minute

// SessionState is the lifecycle position of a checkout session.
type SessionState string

const (
	SessionStarted          SessionState = "started"
	SessionPaymentConfirmed SessionState = "payment_confirmed"
	SessionCompleted        SessionState = "completed"
	SessionCanceled         SessionState = "canceled"
)

// IsTerminal reports whether no further transition is permitted.
func (s SessionState) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCanceled
}

func (s SessionState) String() string {
	return string(s)
}

// PaymentMethod is how the customer pays for the order.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentDebitCard    PaymentMethod = "debit_card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether m is one of the supported methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentBankTransfer:
		return true
	}
	return false
}

// RequiresCard reports whether the method needs card instrument data.
func (m PaymentMethod) RequiresCard() bool {
	return m == PaymentCreditCard || m == PaymentDebitCard
}

// GuestInfo is contact data for a checkout without a customer account.
type GuestInfo struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// Validate checks that the guest can be contacted about the order.
func (g GuestInfo) Validate() error {
	const op = "guest.validate"

	g.Name = strings.TrimSpace(g.Name)
	g.Email = strings.TrimSpace(g.Email)
	if err := validate.Struct(g); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Internal(err, op, "failed to validate guest details")
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; !seen {
				fields[fe.Field()] = fieldMessage(fe)
			}
		}
		e := ErrGuestInfoRequired.With(op, "fields", fields)
		e.Err = &ValidationError{Op: op, Fields: fields}
		return e
	}
	return nil
}

// CheckoutSession is the stateful record of one checkout attempt.
//
// Transitions:
//
//	started -> payment_confirmed (ConfirmPayment)
//	started -> canceled          (Cancel)
//	payment_confirmed -> completed (Complete)
//
// A confirmed session cannot be canceled: the payment has been captured and
// reversing it is a refund, not a cancellation.
type CheckoutSession struct {
	id            string
	customerID    string
	guest         *GuestInfo
	cartID        string
	paymentMethod PaymentMethod
	state         SessionState
	totalCents    int64
	delivery      DeliveryDetails

	createdAt time.Time
	expiresAt time.Time

	paymentReference string
	orderID          string
	confirmedAt      time.Time
	canceledAt       time.Time
	completedAt      time.Time
	cancelReason     string

	version int64
	clock   func() time.Time
}

// NewSessionParams contains parameters for opening a checkout session.
type NewSessionParams struct {
	CustomerID    string
	Guest         *GuestInfo
	CartID        string
	PaymentMethod PaymentMethod
	TotalCents    int64
	Delivery      DeliveryDetails
}

// SessionOption configures a CheckoutSession.
type SessionOption func(*CheckoutSession)

// WithClock overrides the session's time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *CheckoutSession) {
		s.clock = now
	}
}

// NewCheckoutSession opens a session in the started state.
// The total must be positive and the delivery details constructed.
func NewCheckoutSession(params NewSessionParams, opts ...SessionOption) (*CheckoutSession, error) {
	const op = "session.new"

	if params.TotalCents <= 0 {
		return nil, ErrInvalidTotal.With(op, "total_cents", params.TotalCents)
	}
	if strings.TrimSpace(params.CartID) == "" {
		return nil, Invalid(op, "cart id is required")
	}
	if !params.PaymentMethod.Valid() {
		return nil, Errorf(EINVALID, KindValidation, op, "unsupported payment method: %q", params.PaymentMethod)
	}
	if params.Delivery.IsZero() {
		return nil, ErrDeliveryDetailsInvalid.With(op)
	}
	if params.CustomerID == "" && params.Guest == nil {
		return nil, ErrGuestInfoRequired.With(op)
	}

	s := &CheckoutSession{
		id:            uuid.NewString(),
		customerID:    params.CustomerID,
		cartID:        params.CartID,
		paymentMethod: params.PaymentMethod,
		state:         SessionStarted,
		totalCents:    params.TotalCents,
		delivery:      params.Delivery,
	}
	if params.Guest != nil {
		g := *params.Guest
		s.guest = &g
	}
	for _, opt := range opts {
		opt(s)
	}

	s.createdAt = s.now()
	s.expiresAt = s.createdAt.Add(SessionLifetime)

	return s, nil
}

func (s *CheckoutSession) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}

func (s *CheckoutSession) ID() string                   { return s.id }
func (s *CheckoutSession) CustomerID() string           { return s.customerID }
func (s *CheckoutSession) IsGuest() bool                { return s.customerID == "" }
func (s *CheckoutSession) CartID() string               { return s.cartID }
func (s *CheckoutSession) PaymentMethod() PaymentMethod { return s.paymentMethod }
func (s *CheckoutSession) State() SessionState          { return s.state }
func (s *CheckoutSession) TotalCents() int64            { return s.totalCents }
func (s *CheckoutSession) Delivery() DeliveryDetails    { return s.delivery }
func (s *CheckoutSession) CreatedAt() time.Time         { return s.createdAt }
func (s *CheckoutSession) ExpiresAt() time.Time         { return s.expiresAt }
func (s *CheckoutSession) PaymentReference() string     { return s.paymentReference }
func (s *CheckoutSession) OrderID() string              { return s.orderID }
func (s *CheckoutSession) ConfirmedAt() time.Time       { return s.confirmedAt }
func (s *CheckoutSession) CanceledAt() time.Time        { return s.canceledAt }
func (s *CheckoutSession) CompletedAt() time.Time       { return s.completedAt }
func (s *CheckoutSession) CancelReason() string         { return s.cancelReason }
func (s *CheckoutSession) Version() int64               { return s.version }

// Guest returns a copy of the guest contact data, or nil.
func (s *CheckoutSession) Guest() *GuestInfo {
	if s.guest == nil {
		return nil
	}
	g := *s.guest
	return &g
}

// IsExpired reports whether the session is past its expiry.
// Terminal sessions never expire.
func (s *CheckoutSession) IsExpired() bool {
	if s.state.IsTerminal() {
		return false
	}
	return s.now().After(s.expiresAt)
}

// CanBeModified reports whether delivery details may still change.
func (s *CheckoutSession) CanBeModified() bool {
	return s.state == SessionStarted && !s.IsExpired()
}

// ConfirmPayment records a captured payment. Repeating the call with the
// same reference on a confirmed session is a no-op; any other reference fails.
func (s *CheckoutSession) ConfirmPayment(reference string) error {
	const op = "session.confirm_payment"

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Invalid(op, "payment reference is required")
	}

	switch s.state {
	case SessionStarted:
	case SessionPaymentConfirmed:
		if reference == s.paymentReference {
			return nil
		}
		return ErrSessionAlreadyConfirmed.With(op, "session_id", s.id)
	default:
		return s.invalidTransition(op, SessionPaymentConfirmed)
	}

	if s.IsExpired() {
		return ErrSessionExpired.With(op, "session_id", s.id, "expires_at", s.expiresAt)
	}

	s.state = SessionPaymentConfirmed
	s.paymentReference = reference
	s.confirmedAt = s.now()
	return nil
}

// Complete links the produced order and closes the session. Completion is
// allowed after expiry because payment has already been captured.
func (s *CheckoutSession) Complete(orderID string) error {
	const op = "session.complete"

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Invalid(op, "order id is required")
	}

	switch s.state {
	case SessionPaymentConfirmed:
	case SessionCompleted:
		if orderID == s.orderID {
			return nil
		}
		return s.invalidTransition(op, SessionCompleted)
	default:
		return s.invalidTransition(op, SessionCompleted)
	}

	s.state = SessionCompleted
	s.orderID = orderID
	s.completedAt = s.now()
	return nil
}

// Cancel aborts a started session. Canceling a canceled session is a no-op
// that keeps the original reason.
func (s *CheckoutSession) Cancel(reason string) error {
	const op = "session.cancel"

	switch s.state {
	case SessionStarted:
	case SessionCanceled:
		return nil
	case SessionCompleted:
		e := ErrInvalidTransition.With(op, "session_id", s.id, "from", s.state, "to", SessionCanceled)
		e.Message = "Cannot cancel a completed checkout"
		return e
	default:
		e := ErrInvalidTransition.With(op, "session_id", s.id, "from", s.state, "to", SessionCanceled)
		e.Message = "Cannot cancel a checkout whose payment is confirmed"
		return e
	}

	s.state = SessionCanceled
	s.cancelReason = strings.TrimSpace(reason)
	s.canceledAt = s.now()
	return nil
}

// UpdateDeliveryDetails replaces the delivery details of a modifiable session.
func (s *CheckoutSession) UpdateDeliveryDetails(details DeliveryDetails) error {
	const op = "session.update_delivery"

	if details.IsZero() {
		return ErrDeliveryDetailsInvalid.With(op, "session_id", s.id)
	}
	if s.state != SessionStarted {
		return s.invalidTransition(op, s.state)
	}
	if s.IsExpired() {
		return ErrSessionExpired.With(op, "session_id", s.id, "expires_at", s.expiresAt)
	}

	s.delivery = details
	return nil
}

// Stored records the version a SessionStore assigned after a successful write.
func (s *CheckoutSession) Stored(version int64) {
	s.version = version
}

func (s *CheckoutSession) invalidTransition(op string, to SessionState) error {
	return ErrInvalidTransition.With(op, "session_id", s.id, "from", s.state, "to", to)
}
