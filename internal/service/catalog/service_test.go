package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verdora/storefront/internal/cache"
	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/service/catalog"
	"github.com/verdora/storefront/internal/storage/memory"
)

// countingProducts считает обращения к нижележащему хранилищу.
type countingProducts struct {
	domain.ProductRepository

	mu    sync.Mutex
	lists int
	gets  int
}

func (r *countingProducts) List(ctx context.Context, category string, limit int) ([]domain.Product, error) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
	return r.ProductRepository.List(ctx, category, limit)
}

func (r *countingProducts) Get(ctx context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	return r.ProductRepository.Get(ctx, id)
}

func newService(t *testing.T) (*catalog.Service, *countingProducts) {
	t.Helper()
	products := &countingProducts{ProductRepository: memory.NewProductRepository()}
	svc := catalog.NewService(products, memory.NewReviewRepository(),
		catalog.WithCache(cache.NewMemory(), time.Minute))
	return svc, products
}

func TestService_ListProductsReadThrough(t *testing.T) {
	svc, products := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateProduct(ctx, domain.Product{Name: "Monstera", Category: "plants", PriceMinor: 2500, Stock: 3}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := svc.ListProducts(ctx, "plants", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	second, err := svc.ListProducts(ctx, "plants", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("unexpected listings: %d, %d", len(first), len(second))
	}
	if products.lists != 1 {
		t.Fatalf("expected single storage read, got %d", products.lists)
	}
}

func TestService_MutationInvalidatesCache(t *testing.T) {
	svc, products := newService(t)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, domain.Product{Name: "Monstera", Category: "plants", PriceMinor: 2500, Stock: 3})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.ListProducts(ctx, "plants", 0); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	created.PriceMinor = 3000
	if err := svc.UpdateProduct(ctx, created); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	listed, err := svc.ListProducts(ctx, "plants", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if listed[0].PriceMinor != 3000 {
		t.Fatalf("stale cache served after update: %d", listed[0].PriceMinor)
	}
	if products.lists != 2 {
		t.Fatalf("expected refetch after invalidation, got %d reads", products.lists)
	}
}

func TestService_GetProductCached(t *testing.T) {
	svc, products := newService(t)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, domain.Product{Name: "Pot", Category: "decor", PriceMinor: 900, Stock: 10})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.GetProduct(ctx, created.ID); err != nil {
			t.Fatalf("get failed: %v", err)
		}
	}
	if products.gets != 1 {
		t.Fatalf("expected single storage read, got %d", products.gets)
	}

	if _, err := svc.GetProduct(ctx, "missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestService_CreateProductValidation(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateProduct(context.Background(), domain.Product{PriceMinor: -1})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, domain.ErrProductNameRequired) || !errors.Is(err, domain.ErrProductPriceInvalid) {
		t.Fatalf("expected joined validation errors, got %v", err)
	}
}

func TestService_Reviews(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, domain.Product{Name: "Fern", Category: "plants", PriceMinor: 1200, Stock: 5})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.AddReview(ctx, domain.Review{ProductID: product.ID, UserID: "user-1", Rating: 6}); !errors.Is(err, domain.ErrReviewRatingInvalid) {
		t.Fatalf("expected rating validation error, got %v", err)
	}
	if _, err := svc.AddReview(ctx, domain.Review{ProductID: "missing", UserID: "user-1", Rating: 4}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	review, err := svc.AddReview(ctx, domain.Review{ProductID: product.ID, UserID: "user-1", Rating: 5, Comment: "thriving"})
	if err != nil {
		t.Fatalf("add review failed: %v", err)
	}

	reviews, err := svc.ListReviews(ctx, product.ID)
	if err != nil || len(reviews) != 1 {
		t.Fatalf("unexpected reviews: %v, %v", reviews, err)
	}

	if err := svc.DeleteReview(ctx, review.ID, "someone-else", false); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired for foreign review, got %v", err)
	}
	if err := svc.DeleteReview(ctx, review.ID, "user-1", false); err != nil {
		t.Fatalf("delete review failed: %v", err)
	}
}

func TestService_DeleteReviewAsAdmin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, domain.Product{Name: "Monstera", Category: "plants", PriceMinor: 2500, Stock: 3})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	review, err := svc.AddReview(ctx, domain.Review{ProductID: product.ID, UserID: "user-1", Rating: 2, Comment: "wilted on arrival"})
	if err != nil {
		t.Fatalf("add review failed: %v", err)
	}

	// Модератор удаляет чужой отзыв.
	if err := svc.DeleteReview(ctx, review.ID, "moderator-1", true); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}

	reviews, err := svc.ListReviews(ctx, product.ID)
	if err != nil {
		t.Fatalf("list reviews failed: %v", err)
	}
	if len(reviews) != 0 {
		t.Fatalf("expected no reviews after admin delete, got %d", len(reviews))
	}
}
