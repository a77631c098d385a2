package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/events"
	"github.com/dukerupert/checkout/internal/telemetry"
	"github.com/shopspring/decimal"
)

// CheckoutService places orders from carts and exposes checkout sessions.
type CheckoutService interface {
	// Execute runs the checkout saga: cart, stock, customer, delivery, order,
	// payment, finalize. A failed payment cancels the created order.
	Execute(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)

	// Validate reports whether the request passes the pre-order checks.
	// Expected failures yield false rather than an error.
	Validate(ctx context.Context, req CheckoutRequest) bool

	// GetSession retrieves a checkout session by ID.
	GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)

	// CancelSession aborts a session that has not been paid.
	CancelSession(ctx context.Context, sessionID, reason string) (*domain.CheckoutSession, error)
}

// CheckoutRequest contains the caller's checkout input.
type CheckoutRequest struct {
	// CustomerID identifies a registered customer. Empty means guest checkout.
	CustomerID string

	// Guest is required when CustomerID is empty.
	Guest *domain.GuestInfo

	CartID        string
	PaymentMethod domain.PaymentMethod
	Delivery      domain.DeliveryInput

	// Card is required for credit and debit card methods.
	Card *domain.CardDetails

	DiscountCode string

	// IdempotencyKey is forwarded to the payment provider. Defaults to the
	// session ID.
	IdempotencyKey string
}

// CheckoutResult is the outcome of a successful checkout.
type CheckoutResult struct {
	SessionID        string
	OrderID          string
	PaymentID        string
	PaymentStatus    domain.PaymentStatus
	PaymentReference string
	TotalCents       int64
	Message          string
}

// Timeouts bounds the collaborator calls made after the order is created.
// Those calls run detached from the caller's context.
type Timeouts struct {
	Collaborator time.Duration
	Compensation time.Duration
}

// DefaultTimeouts are used when no timeouts are configured.
var DefaultTimeouts = Timeouts{
	Collaborator: 10 * time.Second,
	Compensation: 30 * time.Second,
}

// CheckoutDeps are the collaborators the orchestrator consumes.
type CheckoutDeps struct {
	Carts     domain.CartService
	Customers domain.CustomerService
	Orders    domain.OrderService
	Payments  domain.PaymentService
	Sessions  domain.SessionStore
}

// CheckoutOption configures a CheckoutOrchestrator.
type CheckoutOption func(*CheckoutOrchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) CheckoutOption {
	return func(o *CheckoutOrchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records checkout funnel metrics.
func WithMetrics(m *telemetry.BusinessMetrics) CheckoutOption {
	return func(o *CheckoutOrchestrator) {
		o.metrics = m
	}
}

// WithPublisher publishes checkout lifecycle events.
func WithPublisher(p events.Publisher) CheckoutOption {
	return func(o *CheckoutOrchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithClock overrides the time source for new sessions and durations.
func WithClock(now func() time.Time) CheckoutOption {
	return func(o *CheckoutOrchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTimeouts overrides DefaultTimeouts. Zero fields keep their default.
func WithTimeouts(t Timeouts) CheckoutOption {
	return func(o *CheckoutOrchestrator) {
		if t.Collaborator > 0 {
			o.timeouts.Collaborator = t.Collaborator
		}
		if t.Compensation > 0 {
			o.timeouts.Compensation = t.Compensation
		}
	}
}

// WithDefaultRegion sets the delivery country assumed when a request omits one.
func WithDefaultRegion(region string) CheckoutOption {
	return func(o *CheckoutOrchestrator) {
		o.defaultRegion = strings.ToUpper(strings.TrimSpace(region))
	}
}

// CheckoutOrchestrator implements CheckoutService. It holds no per-checkout
// state; concurrent calls share only the injected collaborators.
type CheckoutOrchestrator struct {
	carts     domain.CartService
	customers domain.CustomerService
	orders    domain.OrderService
	payments  domain.PaymentService
	sessions  domain.SessionStore

	logger        *slog.Logger
	metrics       *telemetry.BusinessMetrics
	publisher     events.Publisher
	now           func() time.Time
	timeouts      Timeouts
	defaultRegion string
}

var _ CheckoutService = (*CheckoutOrchestrator)(nil)

// NewCheckoutOrchestrator creates a CheckoutOrchestrator. Every collaborator
// in deps is required.
func NewCheckoutOrchestrator(deps CheckoutDeps, opts ...CheckoutOption) (*CheckoutOrchestrator, error) {
	switch {
	case deps.Carts == nil:
		return nil, errors.New("checkout: cart service is required")
	case deps.Customers == nil:
		return nil, errors.New("checkout: customer service is required")
	case deps.Orders == nil:
		return nil, errors.New("checkout: order service is required")
	case deps.Payments == nil:
		return nil, errors.New("checkout: payment service is required")
	case deps.Sessions == nil:
		return nil, errors.New("checkout: session store is required")
	}

	o := &CheckoutOrchestrator{
		carts:     deps.Carts,
		customers: deps.Customers,
		orders:    deps.Orders,
		payments:  deps.Payments,
		sessions:  deps.Sessions,
		logger:    slog.Default(),
		publisher: events.NoopPublisher{},
		now:       time.Now,
		timeouts:  DefaultTimeouts,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("service", "checkout")

	return o, nil
}

// checkoutPlan is the outcome of the pre-order checks.
type checkoutPlan struct {
	cart     *domain.Cart
	customer *domain.Customer
	delivery domain.DeliveryDetails
}

// Execute implements CheckoutService.
func (o *CheckoutOrchestrator) Execute(ctx context.Context, req CheckoutRequest) (result *CheckoutResult, err error) {
	const op = "checkout.execute"

	start := o.now()
	if o.metrics != nil {
		o.metrics.CheckoutStarted.WithLabelValues(string(req.PaymentMethod)).Inc()
	}
	defer func() {
		o.observeExecute(start, err)
	}()

	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	ctx, finish := telemetry.StartSpan(ctx, "checkout.execute", "cart "+req.CartID)
	defer finish()

	plan, err := o.prepare(ctx, op, req)
	if err != nil {
		return nil, err
	}

	if req.PaymentMethod.RequiresCard() && (req.Card == nil || strings.TrimSpace(req.Card.Token) == "") {
		return nil, domain.ErrPaymentInstrumentRequired.With(op, "payment_method", req.PaymentMethod)
	}

	totals, err := o.carts.ComputeTotal(ctx, req.CartID, strings.TrimSpace(req.DiscountCode))
	if err != nil {
		return nil, collaboratorError(err, op, "failed to compute cart total")
	}
	if totals == nil {
		return nil, domain.ErrInvalidTotal.With(op, "cart_id", req.CartID)
	}

	params := domain.NewSessionParams{
		CartID:        req.CartID,
		PaymentMethod: req.PaymentMethod,
		TotalCents:    totals.TotalCents,
		Delivery:      plan.delivery,
	}
	if plan.customer.Guest {
		params.Guest = req.Guest
	} else {
		params.CustomerID = plan.customer.ID
	}
	session, err := domain.NewCheckoutSession(params, domain.WithClock(o.now))
	if err != nil {
		return nil, err
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, collaboratorError(err, op, "failed to save checkout session")
	}

	// Nothing external has been created yet; a caller that gave up can still
	// be honored here. Past this point the order and payment steps run to
	// completion regardless of the caller.
	if err := ctx.Err(); err != nil {
		o.abandon(context.WithoutCancel(ctx), session, "caller canceled before order creation")
		return nil, domain.WrapError(err, domain.ECHECKOUT, domain.KindBusiness, op, "Checkout was canceled")
	}

	o.loggerFor(ctx).Info("checkout session started",
		"session_id", session.ID(),
		"cart_id", req.CartID,
		"payment_method", req.PaymentMethod,
		"total_cents", session.TotalCents(),
		"guest", session.IsGuest(),
	)

	return o.placeOrder(context.WithoutCancel(ctx), op, session, plan, req)
}

// Validate implements CheckoutService.
func (o *CheckoutOrchestrator) Validate(ctx context.Context, req CheckoutRequest) bool {
	const op = "checkout.validate"

	err := validateRequest(op, req)
	if err == nil {
		_, err = o.prepare(ctx, op, req)
	}

	if err != nil {
		o.logger.Debug("checkout validation rejected",
			"cart_id", req.CartID,
			"code", domain.ErrorCode(err),
			"error", err,
		)
		if o.metrics != nil {
			o.metrics.CheckoutValidations.WithLabelValues("rejected").Inc()
		}
		return false
	}

	if o.metrics != nil {
		o.metrics.CheckoutValidations.WithLabelValues("ok").Inc()
	}
	return true
}

// GetSession implements CheckoutService.
func (o *CheckoutOrchestrator) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	const op = "checkout.get_session"

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.Invalid(op, "session id is required")
	}

	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CancelSession implements CheckoutService.
func (o *CheckoutOrchestrator) CancelSession(ctx context.Context, sessionID, reason string) (*domain.CheckoutSession, error) {
	const op = "checkout.cancel_session"

	session, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	wasCanceled := session.State() == domain.SessionCanceled
	if err := session.Cancel(reason); err != nil {
		return nil, err
	}
	if wasCanceled {
		return session, nil
	}

	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, collaboratorError(err, op, "failed to save checkout session")
	}

	o.logger.Info("checkout session canceled", "session_id", session.ID(), "reason", session.CancelReason())
	if o.metrics != nil {
		o.metrics.SessionsCanceled.WithLabelValues("requested").Inc()
	}
	o.publish(ctx, events.Event{
		Type:      events.CheckoutCanceled,
		SessionID: session.ID(),
		Reason:    session.CancelReason(),
	})

	return session, nil
}

func validateRequest(op string, req CheckoutRequest) error {
	if strings.TrimSpace(req.CartID) == "" {
		return domain.Invalid(op, "cart id is required")
	}
	if !req.PaymentMethod.Valid() {
		return domain.Errorf(domain.EINVALID, domain.KindValidation, op, "unsupported payment method: %q", req.PaymentMethod)
	}
	return nil
}

// prepare runs the checks that have no side effects on the order or payment
// collaborators: cart contents, stock, customer identity and delivery details.
func (o *CheckoutOrchestrator) prepare(ctx context.Context, op string, req CheckoutRequest) (*checkoutPlan, error) {
	cart, err := o.carts.GetCart(ctx, req.CartID)
	if err != nil {
		return nil, collaboratorError(err, op, "failed to load cart")
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart.With(op, "cart_id", req.CartID)
	}

	available, err := o.carts.CheckAvailability(ctx, req.CartID)
	if err != nil {
		return nil, collaboratorError(err, op, "failed to check stock")
	}
	if !available {
		return nil, domain.ErrStockUnavailable.With(op, "cart_id", req.CartID)
	}

	customer, err := o.resolveCustomer(ctx, op, req)
	if err != nil {
		return nil, err
	}

	delivery, err := o.validateDelivery(ctx, op, req.Delivery)
	if err != nil {
		return nil, err
	}

	return &checkoutPlan{cart: cart, customer: customer, delivery: delivery}, nil
}

func (o *CheckoutOrchestrator) resolveCustomer(ctx context.Context, op string, req CheckoutRequest) (*domain.Customer, error) {
	if id := strings.TrimSpace(req.CustomerID); id != "" {
		customer, err := o.customers.GetCustomer(ctx, id)
		if err != nil {
			return nil, collaboratorError(err, op, "failed to load customer")
		}
		if customer == nil {
			return nil, domain.ErrCustomerNotFound.With(op, "customer_id", id)
		}
		return customer, nil
	}

	if req.Guest == nil {
		return nil, domain.ErrGuestInfoRequired.With(op, "cart_id", req.CartID)
	}
	if err := req.Guest.Validate(); err != nil {
		return nil, err
	}

	customer, err := o.customers.CreateGuestCustomer(ctx, *req.Guest)
	if err != nil {
		return nil, collaboratorError(err, op, "failed to create guest customer")
	}
	if customer == nil {
		return nil, domain.Internal(nil, op, "guest customer was not created")
	}
	customer.Guest = true
	return customer, nil
}

func (o *CheckoutOrchestrator) validateDelivery(ctx context.Context, op string, in domain.DeliveryInput) (domain.DeliveryDetails, error) {
	if strings.TrimSpace(in.Country) == "" {
		in.Country = o.defaultRegion
	}

	delivery, err := domain.NewDeliveryDetails(in)
	if err != nil {
		return domain.DeliveryDetails{}, err
	}

	ok, err := o.customers.ValidateDeliveryDetails(ctx, delivery)
	if err != nil {
		if fields := domain.GetValidationFields(err); fields != nil && !domain.IsCode(err, domain.EDELIVERY) {
			return domain.DeliveryDetails{}, domain.DeliveryDetailsInvalid(op, fields)
		}
		return domain.DeliveryDetails{}, collaboratorError(err, op, "failed to validate delivery details")
	}
	if !ok {
		return domain.DeliveryDetails{}, domain.ErrDeliveryDetailsInvalid.With(op, "country", delivery.Country())
	}
	return delivery, nil
}

// placeOrder runs order creation, payment and finalize on ctx, which must not
// be canceled by the caller.
func (o *CheckoutOrchestrator) placeOrder(ctx context.Context, op string, session *domain.CheckoutSession, plan *checkoutPlan, req CheckoutRequest) (*CheckoutResult, error) {
	telemetry.AddBreadcrumb("checkout", "creating order", map[string]interface{}{"session_id": session.ID()})

	orderCtx, cancel := context.WithTimeout(ctx, o.timeouts.Collaborator)
	order, err := o.orders.CreateOrder(orderCtx, domain.CreateOrderParams{
		Customer:   *plan.customer,
		Items:      plan.cart.Items,
		TotalCents: session.TotalCents(),
		Delivery:   session.Delivery(),
		SessionID:  session.ID(),
	})
	cancel()
	if err == nil && (order == nil || order.ID == "") {
		err = errors.New("order service returned no order id")
	}
	if err != nil {
		o.abandon(ctx, session, "order creation failed")
		return nil, collaboratorError(err, op, "failed to create order")
	}

	logger := o.loggerFor(ctx).With("session_id", session.ID(), "order_id", order.ID)
	logger.Info("order created", "status", order.Status)

	// An expired session cannot record a payment, so none is taken.
	var (
		payment *domain.Payment
		payErr  error
	)
	if session.IsExpired() {
		payErr = domain.ErrSessionExpired.With(op, "session_id", session.ID(), "expires_at", session.ExpiresAt())
	} else {
		payment, payErr = o.pay(ctx, session, order.ID, plan.customer, req)
	}
	if payErr != nil {
		logger.Warn("payment failed, compensating", "error", payErr)
		compensated := o.compensate(ctx, session, order.ID, payment)
		return nil, domain.PaymentFailed(op, order.ID, compensated, payErr)
	}

	reference := payment.ProviderReference
	if reference == "" {
		reference = payment.ID
	}
	if err := session.ConfirmPayment(reference); err != nil {
		// Payment is captured; the order stays pending for manual follow-up.
		logger.Error("failed to confirm session after payment", "payment_id", payment.ID, "error", err)
		telemetry.CaptureCheckoutError(err, session.ID(), domain.ErrorCode(err), map[string]interface{}{
			"order_id":   order.ID,
			"payment_id": payment.ID,
		})
		return nil, domain.ErrCheckoutFailed.With(op, "order_id", order.ID, "payment_id", payment.ID).Wrap(err)
	}

	// The confirmed row keeps the sweep from canceling a paid session if the
	// completed save below never lands.
	saveCtx, cancel := context.WithTimeout(ctx, o.timeouts.Collaborator)
	if err := o.sessions.Save(saveCtx, session); err != nil {
		logger.Error("failed to save confirmed session", "payment_id", payment.ID, "error", err)
		telemetry.CaptureCheckoutError(err, session.ID(), domain.ErrorCode(err), map[string]interface{}{
			"order_id":   order.ID,
			"payment_id": payment.ID,
		})
		o.countFinalizeFailure("session_save")
	}
	cancel()

	o.finalize(ctx, logger, session, order.ID, payment)

	return &CheckoutResult{
		SessionID:        session.ID(),
		OrderID:          order.ID,
		PaymentID:        payment.ID,
		PaymentStatus:    payment.Status,
		PaymentReference: reference,
		TotalCents:       session.TotalCents(),
		Message:          resultMessage(order.ID, session.TotalCents(), session.PaymentMethod(), payment.Status),
	}, nil
}

// pay processes the payment for an order. A returned non-nil payment alongside
// an error means the provider holds a payment that was not captured.
func (o *CheckoutOrchestrator) pay(ctx context.Context, session *domain.CheckoutSession, orderID string, customer *domain.Customer, req CheckoutRequest) (*domain.Payment, error) {
	method := session.PaymentMethod()
	if o.metrics != nil {
		o.metrics.PaymentAttempts.WithLabelValues(string(method)).Inc()
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = session.ID()
	}

	payCtx, cancel := context.WithTimeout(ctx, o.timeouts.Collaborator)
	defer cancel()

	payment, err := o.payments.ProcessPayment(payCtx, domain.ProcessPaymentParams{
		OrderID:        orderID,
		AmountCents:    session.TotalCents(),
		Method:         method,
		Card:           req.Card,
		CustomerEmail:  customer.Email,
		IdempotencyKey: idempotencyKey,
	})
	if err == nil && payment == nil {
		err = errors.New("payment service returned no payment")
	}
	if err != nil {
		o.countPayment(method, false)
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentSucceeded:
	case domain.PaymentPending:
		// Offline methods settle on delivery or by transfer; cards must be
		// confirmed before the order is released.
		if method.RequiresCard() {
			if err := o.payments.ConfirmPayment(payCtx, payment.ID); err != nil {
				o.countPayment(method, false)
				return payment, fmt.Errorf("confirm payment %s: %w", payment.ID, err)
			}
			payment.Status = domain.PaymentSucceeded
		}
	default:
		o.countPayment(method, false)
		reason := payment.FailureReason
		if reason == "" {
			reason = "status " + string(payment.Status)
		}
		return nil, fmt.Errorf("payment %s rejected: %s", payment.ID, reason)
	}

	o.countPayment(method, true)
	return payment, nil
}

// compensate undoes the order after a failed payment. CancelOrder is invoked
// exactly once; it reports whether that succeeded.
func (o *CheckoutOrchestrator) compensate(ctx context.Context, session *domain.CheckoutSession, orderID string, payment *domain.Payment) bool {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Compensation)
	defer cancel()

	logger := o.loggerFor(ctx).With("session_id", session.ID(), "order_id", orderID)

	if payment != nil && payment.ID != "" {
		if err := o.payments.CancelPayment(ctx, payment.ID); err != nil {
			logger.Error("failed to cancel uncaptured payment", "payment_id", payment.ID, "error", err)
			telemetry.CaptureCheckoutError(err, session.ID(), domain.EPAYMENT, map[string]interface{}{
				"order_id":   orderID,
				"payment_id": payment.ID,
			})
		}
	}

	compensated := true
	if err := o.orders.CancelOrder(ctx, orderID); err != nil {
		compensated = false
		logger.Error("compensation failed: order left pending payment", "error", err)
		telemetry.CaptureCheckoutError(err, session.ID(), domain.EPAYMENT, map[string]interface{}{
			"order_id":    orderID,
			"compensated": false,
		})
	} else {
		logger.Info("order canceled after failed payment")
	}
	if o.metrics != nil {
		result := "succeeded"
		if !compensated {
			result = "failed"
		}
		o.metrics.Compensations.WithLabelValues(result).Inc()
	}

	if err := session.Cancel("payment failed"); err != nil {
		logger.Error("failed to cancel session", "error", err)
	} else if err := o.sessions.Save(ctx, session); err != nil {
		logger.Error("failed to save canceled session", "error", err)
		o.countFinalizeFailure("session_save")
	}
	if o.metrics != nil {
		o.metrics.SessionsCanceled.WithLabelValues("payment_failed").Inc()
	}

	o.publish(ctx, events.Event{
		Type:          events.CheckoutCanceled,
		SessionID:     session.ID(),
		OrderID:       orderID,
		PaymentMethod: string(session.PaymentMethod()),
		TotalCents:    session.TotalCents(),
		Reason:        session.CancelReason(),
	})

	return compensated
}

// finalize runs the steps after a captured payment. Each is best-effort: the
// order and payment stand even when one of them fails. Every call gets its own
// timeout.
func (o *CheckoutOrchestrator) finalize(ctx context.Context, logger *slog.Logger, session *domain.CheckoutSession, orderID string, payment *domain.Payment) {
	call := func(fn func(context.Context) error) error {
		callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Collaborator)
		defer cancel()
		return fn(callCtx)
	}

	if err := call(func(ctx context.Context) error {
		return o.orders.UpdateStatus(ctx, orderID, domain.OrderConfirmed)
	}); err != nil {
		logger.Error("failed to mark order confirmed", "error", err)
		o.countFinalizeFailure("order_status")
	}

	if err := session.Complete(orderID); err != nil {
		logger.Error("failed to complete session", "error", err)
	} else if err := call(func(ctx context.Context) error {
		return o.sessions.Save(ctx, session)
	}); err != nil {
		logger.Error("failed to save completed session", "error", err)
		telemetry.CaptureCheckoutError(err, session.ID(), domain.ErrorCode(err), map[string]interface{}{"order_id": orderID})
		o.countFinalizeFailure("session_save")
	}

	if err := call(func(ctx context.Context) error {
		return o.carts.ClearCart(ctx, session.CartID())
	}); err != nil {
		logger.Warn("failed to clear cart", "cart_id", session.CartID(), "error", err)
		o.countFinalizeFailure("clear_cart")
	}

	call(func(ctx context.Context) error {
		o.publish(ctx, events.Event{
			Type:             events.CheckoutCompleted,
			SessionID:        session.ID(),
			OrderID:          orderID,
			PaymentID:        payment.ID,
			PaymentReference: session.PaymentReference(),
			PaymentMethod:    string(session.PaymentMethod()),
			TotalCents:       session.TotalCents(),
		})
		return nil
	})

	logger.Info("checkout completed", "payment_id", payment.ID, "payment_status", payment.Status)

	if o.metrics != nil {
		customerType := "registered"
		if session.IsGuest() {
			customerType = "guest"
		}
		method := string(session.PaymentMethod())
		o.metrics.CheckoutCompleted.WithLabelValues(method, customerType).Inc()
		o.metrics.OrderValue.WithLabelValues(method).Observe(decimal.New(session.TotalCents(), -2).InexactFloat64())
	}
}

// abandon cancels a session whose order was never created.
func (o *CheckoutOrchestrator) abandon(ctx context.Context, session *domain.CheckoutSession, reason string) {
	if err := session.Cancel(reason); err != nil {
		o.logger.Error("failed to cancel session", "session_id", session.ID(), "error", err)
		return
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		o.logger.Error("failed to save canceled session", "session_id", session.ID(), "error", err)
	}
	if o.metrics != nil {
		o.metrics.SessionsCanceled.WithLabelValues("abandoned").Inc()
	}
}

// loggerFor tags the logger with the caller's request ID when there is one.
func (o *CheckoutOrchestrator) loggerFor(ctx context.Context) *slog.Logger {
	if id := domain.RequestIDFromContext(ctx); id != "" {
		return o.logger.With("request_id", id)
	}
	return o.logger
}

func (o *CheckoutOrchestrator) publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = o.now()
	}
	if err := o.publisher.Publish(ctx, e); err != nil {
		o.logger.Warn("failed to publish checkout event", "type", e.Type, "session_id", e.SessionID, "error", err)
		o.countFinalizeFailure("publish")
	}
}

func (o *CheckoutOrchestrator) observeExecute(start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	outcome := "completed"
	if err != nil {
		outcome = "failed"
		o.metrics.CheckoutFailed.WithLabelValues(domain.ErrorCode(err)).Inc()
	}
	o.metrics.CheckoutDuration.WithLabelValues(outcome).Observe(o.now().Sub(start).Seconds())
}

func (o *CheckoutOrchestrator) countPayment(method domain.PaymentMethod, ok bool) {
	if o.metrics == nil {
		return
	}
	if ok {
		o.metrics.PaymentSucceeded.WithLabelValues(string(method)).Inc()
		return
	}
	o.metrics.PaymentFailed.WithLabelValues(string(method)).Inc()
}

func (o *CheckoutOrchestrator) countFinalizeFailure(step string) {
	if o.metrics != nil {
		o.metrics.FinalizeFailures.WithLabelValues(step).Inc()
	}
}

func resultMessage(orderID string, totalCents int64, method domain.PaymentMethod, status domain.PaymentStatus) string {
	total := decimal.New(totalCents, -2).StringFixed(2)
	if status == domain.PaymentPending {
		switch method {
		case domain.PaymentCash:
			return fmt.Sprintf("Order %s placed. %s due in cash on delivery.", orderID, total)
		case domain.PaymentBankTransfer:
			return fmt.Sprintf("Order %s placed. Awaiting bank transfer of %s.", orderID, total)
		}
	}
	return fmt.Sprintf("Order %s placed. %s paid.", orderID, total)
}
