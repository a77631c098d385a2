package domain

//go:generate mockgen -source=payment.go -destination=mock_payment.go -package=domain

import (
	"context"
)

// PaymentStatus is the outcome a payment collaborator reports.
type PaymentStatus string

const (
	PaymentPending      PaymentStatus = "pending"
	PaymentSucceeded    PaymentStatus = "succeeded"
	PaymentFailedStatus PaymentStatus = "failed"
	PaymentCanceled     PaymentStatus = "canceled"
)

// PaymentService is the payment collaborator consumed by checkout.
type PaymentService interface {
	// ProcessPayment charges or registers payment for an order.
	ProcessPayment(ctx context.Context, params ProcessPaymentParams) (*Payment, error)

	// ConfirmPayment confirms a pending payment.
	ConfirmPayment(ctx context.Context, paymentID string) error

	// CancelPayment cancels a payment that has not been captured.
	CancelPayment(ctx context.Context, paymentID string) error
}

// CardDetails is tokenized card instrument data. Raw card numbers never
// reach this module; Token is the provider's payment method reference.
type CardDetails struct {
	Token      string
	Brand      string
	Last4      string
	HolderName string
}

// ProcessPaymentParams contains parameters for processing a payment.
type ProcessPaymentParams struct {
	OrderID        string
	AmountCents    int64
	Method         PaymentMethod
	Card           *CardDetails
	CustomerEmail  string
	IdempotencyKey string
}

// Payment is a payment as reported by the payment collaborator.
type Payment struct {
	ID                string
	Status            PaymentStatus
	ProviderReference string
	FailureReason     string
}
