package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdora/storefront/internal/domain"
)

// reviewRepositoryInMemory — простая in-memory реализация ReviewRepository.
type reviewRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Review
}

// NewReviewRepository возвращает in-memory репозиторий отзывов.
func NewReviewRepository() domain.ReviewRepository {
	return &reviewRepositoryInMemory{
		items: make(map[string]domain.Review),
	}
}

// ListByProduct возвращает отзывы на товар, новые первыми.
func (r *reviewRepositoryInMemory) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Review, 0)
	for _, review := range r.items {
		if review.ProductID != productID {
			continue
		}
		result = append(result, review)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// Create сохраняет новый отзыв.
func (r *reviewRepositoryInMemory) Create(ctx context.Context, review domain.Review) (domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return domain.Review{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	r.items[review.ID] = review
	return review, nil
}

// Get возвращает отзыв или ErrReviewNotFound.
func (r *reviewRepositoryInMemory) Get(ctx context.Context, id string) (domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return domain.Review{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	review, ok := r.items[id]
	if !ok {
		return domain.Review{}, domain.ErrReviewNotFound
	}
	return review, nil
}

// Delete удаляет отзыв.
func (r *reviewRepositoryInMemory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrReviewNotFound
	}
	delete(r.items, id)
	return nil
}

var _ domain.ReviewRepository = (*reviewRepositoryInMemory)(nil)
