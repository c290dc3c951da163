package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdora/storefront/internal/domain"
)

// paymentRepositoryInMemory — простая in-memory реализация PaymentRepository.
type paymentRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Payment
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		items: make(map[string]domain.Payment),
	}
}

// Create сохраняет новую платёжную запись.
func (r *paymentRepositoryInMemory) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Payment{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	r.items[payment.ID] = payment
	return payment, nil
}

// Get возвращает платёж или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) Get(ctx context.Context, id string) (domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Payment{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.items[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// ListByUser возвращает платежи пользователя, новые первыми.
func (r *paymentRepositoryInMemory) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0, len(r.items))
	for _, payment := range r.items {
		if payment.UserID != userID {
			continue
		}
		result = append(result, payment)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// UpdateStatus переводит платёж в новый статус.
func (r *paymentRepositoryInMemory) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, gatewaySessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.items[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	payment.Status = status
	if gatewaySessionID != "" {
		payment.GatewaySessionID = gatewaySessionID
	}
	payment.UpdatedAt = time.Now().UTC()
	r.items[id] = payment
	return nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
