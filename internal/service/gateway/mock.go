package gateway

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов и
// локального запуска без внешнего шлюза.
type MockGateway struct {
	mu sync.Mutex

	IntentID    string
	RedirectURL string
	IntentErr   error

	Payment    domain.GatewayPayment
	PaymentErr error

	CreateIntentCalls int
	GetPaymentCalls   int

	LastIntentRequest domain.IntentRequest
	LastPaymentID     string
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		IntentID:    "intent-mock-1",
		RedirectURL: "https://gateway.example/checkout/intent-mock-1",
		Payment: domain.GatewayPayment{
			ID:     "intent-mock-1",
			Status: domain.PaymentStatusApproved,
		},
	}
}

// CreateIntent возвращает заранее настроенный intent и считает вызовы.
func (m *MockGateway) CreateIntent(ctx context.Context, req domain.IntentRequest) (domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateIntentCalls++
	m.LastIntentRequest = req
	if m.IntentErr != nil {
		return domain.PaymentIntent{}, m.IntentErr
	}
	return domain.PaymentIntent{ID: m.IntentID, RedirectURL: m.RedirectURL}, nil
}

// GetPayment возвращает настроенный платёж и считает вызовы.
func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (domain.GatewayPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetPaymentCalls++
	m.LastPaymentID = paymentID
	if m.PaymentErr != nil {
		return domain.GatewayPayment{}, m.PaymentErr
	}
	return m.Payment, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
