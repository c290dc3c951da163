package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdora/storefront/internal/domain"
)

// cartRepositoryInMemory — простая in-memory реализация CartRepository.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.CartItem
}

// NewCartRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		items: make(map[string]domain.CartItem),
	}
}

// ListByUser возвращает позиции корзины пользователя, новые первыми.
func (r *cartRepositoryInMemory) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.CartItem, 0, len(r.items))
	for _, item := range r.items {
		if item.UserID != userID {
			continue
		}
		result = append(result, item)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// FindByUserAndProduct ищет позицию по паре (user, product).
func (r *cartRepositoryInMemory) FindByUserAndProduct(ctx context.Context, userID, productID string) (domain.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.CartItem{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items {
		if item.UserID == userID && item.ProductID == productID {
			return item, nil
		}
	}
	return domain.CartItem{}, domain.ErrCartItemNotFound
}

// Insert сохраняет новую позицию, генерируя ID, если он пустой.
func (r *cartRepositoryInMemory) Insert(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.CartItem{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	r.items[item.ID] = item
	return item, nil
}

// UpdateQuantity меняет количество в существующей позиции.
func (r *cartRepositoryInMemory) UpdateQuantity(ctx context.Context, itemID string, quantity int32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return domain.ErrCartItemNotFound
	}
	item.Quantity = quantity
	item.UpdatedAt = time.Now().UTC()
	r.items[itemID] = item
	return nil
}

// Delete удаляет позицию корзины.
func (r *cartRepositoryInMemory) Delete(ctx context.Context, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[itemID]; !ok {
		return domain.ErrCartItemNotFound
	}
	delete(r.items, itemID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
