package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdora/storefront/internal/domain"
)

// messageRepositoryInMemory — простая in-memory реализация MessageRepository.
type messageRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Message
}

// NewMessageRepository возвращает in-memory репозиторий сообщений контактной формы.
func NewMessageRepository() domain.MessageRepository {
	return &messageRepositoryInMemory{
		items: make(map[string]domain.Message),
	}
}

// List возвращает сообщения, новые первыми.
func (r *messageRepositoryInMemory) List(ctx context.Context, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Message, 0, len(r.items))
	for _, msg := range r.items {
		result = append(result, msg)
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

// Create сохраняет новое сообщение.
func (r *messageRepositoryInMemory) Create(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	r.items[msg.ID] = msg
	return msg, nil
}

// MarkRead отмечает сообщение прочитанным.
func (r *messageRepositoryInMemory) MarkRead(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.items[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	msg.Read = true
	r.items[id] = msg
	return nil
}

// Delete удаляет сообщение.
func (r *messageRepositoryInMemory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrMessageNotFound
	}
	delete(r.items, id)
	return nil
}

var _ domain.MessageRepository = (*messageRepositoryInMemory)(nil)
