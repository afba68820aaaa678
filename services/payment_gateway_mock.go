package services

import (
	"context"
	"fmt"
	"sync"
)

// MockPaymentGateway is an in-memory PaymentGateway for testing. Signature
// checks use the real HMAC scheme with Secret.
type MockPaymentGateway struct {
	Secret string

	orders []RemoteOrder
	err    error
	mu     sync.Mutex
}

// NewMockPaymentGateway creates a mock gateway signing with secret
func NewMockPaymentGateway(secret string) *MockPaymentGateway {
	return &MockPaymentGateway{Secret: secret}
}

// FailWith makes CreateRemoteOrder return err
func (m *MockPaymentGateway) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// CreateRemoteOrder simulates creating a gateway order
func (m *MockPaymentGateway) CreateRemoteOrder(ctx context.Context, amount float64, currency, receipt string) (*RemoteOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, withCause(ErrPaymentGateway, m.err)
	}
	if amount <= 0 {
		return nil, withMessage(ErrValidation, "Amount must be greater than zero")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	order := RemoteOrder{
		ID:       fmt.Sprintf("order_mock%d", len(m.orders)+1),
		Amount:   ToMinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	m.orders = append(m.orders, order)
	return &order, nil
}

// VerifySignature implements PaymentGateway
func (m *MockPaymentGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return verifyPaymentSignature(m.Secret, gatewayOrderID, paymentID, signature)
}

// Sign returns a valid signature for the pair (for building test requests)
func (m *MockPaymentGateway) Sign(gatewayOrderID, paymentID string) string {
	return SignPayment(m.Secret, gatewayOrderID, paymentID)
}

// Orders returns the gateway orders created so far
func (m *MockPaymentGateway) Orders() []RemoteOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RemoteOrder(nil), m.orders...)
}
