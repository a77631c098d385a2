package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/google/uuid"
)

// MockProvider is a mock payment provider for testing.
// Simulates successful card payments without calling Stripe API.
type MockProvider struct {
	// ProcessPaymentFunc allows customizing payment creation behavior
	ProcessPaymentFunc func(ctx context.Context, params domain.ProcessPaymentParams) (*domain.Payment, error)

	// ConfirmPaymentFunc allows customizing confirmation behavior
	ConfirmPaymentFunc func(ctx context.Context, paymentID string) error

	// CancelPaymentFunc allows customizing cancellation behavior
	CancelPaymentFunc func(ctx context.Context, paymentID string) error

	// Prefix is the payment ID prefix this mock claims. Default: "mock_"
	Prefix string

	// Payments stores created payments for retrieval
	Payments map[string]*domain.Payment

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu sync.Mutex
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Prefix:   "mock_",
		Payments: make(map[string]*domain.Payment),
		CallLog:  []string{},
	}
}

// Owns implements Owner.
func (m *MockProvider) Owns(paymentID string) bool {
	return len(paymentID) >= len(m.Prefix) && paymentID[:len(m.Prefix)] == m.Prefix
}

// ProcessPayment creates a mock payment.
func (m *MockProvider) ProcessPayment(ctx context.Context, params domain.ProcessPaymentParams) (*domain.Payment, error) {
	m.log(fmt.Sprintf("ProcessPayment(%s, %d)", params.OrderID, params.AmountCents))

	if m.ProcessPaymentFunc != nil {
		return m.ProcessPaymentFunc(ctx, params)
	}

	// Default mock behavior: payment succeeds immediately
	p := &domain.Payment{
		ID:                m.Prefix + uuid.New().String(),
		Status:            domain.PaymentSucceeded,
		ProviderReference: "ref_" + uuid.New().String(),
	}

	m.mu.Lock()
	m.Payments[p.ID] = p
	m.mu.Unlock()

	out := *p
	return &out, nil
}

// ConfirmPayment confirms a mock payment.
func (m *MockProvider) ConfirmPayment(ctx context.Context, paymentID string) error {
	m.log(fmt.Sprintf("ConfirmPayment(%s)", paymentID))

	if m.ConfirmPaymentFunc != nil {
		return m.ConfirmPaymentFunc(ctx, paymentID)
	}
	return m.setStatus(paymentID, domain.PaymentSucceeded)
}

// CancelPayment cancels a mock payment.
func (m *MockProvider) CancelPayment(ctx context.Context, paymentID string) error {
	m.log(fmt.Sprintf("CancelPayment(%s)", paymentID))

	if m.CancelPaymentFunc != nil {
		return m.CancelPaymentFunc(ctx, paymentID)
	}
	return m.setStatus(paymentID, domain.PaymentCanceled)
}

// Calls returns a copy of the call log.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

func (m *MockProvider) log(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}

func (m *MockProvider) setStatus(paymentID string, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.Payments[paymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	p.Status = status
	return nil
}
