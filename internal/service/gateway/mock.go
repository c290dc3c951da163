package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/verdora/storefront/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов и
// локального запуска без внешнего шлюза.
type MockGateway struct {
	VerifyStatus domain.GatewayStatus
	InitiateErr  error
	VerifyErr    error

	mu            sync.Mutex
	InitiateCalls int
	VerifyCalls   int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{VerifyStatus: domain.GatewayStatusCompleted}
}

// Initiate возвращает детерминированную сессию и считает вызовы.
func (m *MockGateway) Initiate(ctx context.Context, amountMinor int64, orderID, orderName string, customer domain.CustomerInfo) (domain.GatewaySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitiateCalls++
	if m.InitiateErr != nil {
		return domain.GatewaySession{}, m.InitiateErr
	}
	pidx := fmt.Sprintf("mock-pidx-%s", orderID)
	return domain.GatewaySession{
		SessionID:   pidx,
		RedirectURL: fmt.Sprintf("https://mock.gateway/pay?pidx=%s", pidx),
	}, nil
}

// Verify возвращает настроенный статус и считает вызовы.
func (m *MockGateway) Verify(ctx context.Context, sessionID string) (domain.GatewayStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VerifyCalls++
	if m.VerifyErr != nil {
		return "", m.VerifyErr
	}
	return m.VerifyStatus, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
