package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/storage/memory"
)

func newCartItem(userID, productID string, qty int32) domain.CartItem {
	return domain.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		Product: domain.ProductSnapshot{
			ID:         productID,
			Name:       "Monstera Deliciosa",
			PriceMinor: 2500,
			Stock:      10,
		},
	}
}

func TestCartRepository_InsertList(t *testing.T) {
	repo := memory.NewCartRepository()
	ctx := context.Background()

	stored, err := repo.Insert(ctx, newCartItem("user-1", "product-1", 2))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("expected generated id")
	}

	items, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", items[0].Quantity)
	}
}

func TestCartRepository_ListFiltersByUser(t *testing.T) {
	repo := memory.NewCartRepository()
	ctx := context.Background()

	if _, err := repo.Insert(ctx, newCartItem("user-1", "product-1", 1)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := repo.Insert(ctx, newCartItem("user-2", "product-1", 1)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	items, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item for user-1, got %d", len(items))
	}
}

func TestCartRepository_FindByUserAndProduct(t *testing.T) {
	repo := memory.NewCartRepository()
	ctx := context.Background()

	stored, err := repo.Insert(ctx, newCartItem("user-1", "product-1", 3))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	found, err := repo.FindByUserAndProduct(ctx, "user-1", "product-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found.ID != stored.ID {
		t.Fatalf("expected id %s, got %s", stored.ID, found.ID)
	}

	if _, err := repo.FindByUserAndProduct(ctx, "user-1", "missing"); !errors.Is(err, domain.ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartRepository_UpdateQuantity(t *testing.T) {
	repo := memory.NewCartRepository()
	ctx := context.Background()

	stored, err := repo.Insert(ctx, newCartItem("user-1", "product-1", 1))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := repo.UpdateQuantity(ctx, stored.ID, 5); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	found, err := repo.FindByUserAndProduct(ctx, "user-1", "product-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", found.Quantity)
	}

	if err := repo.UpdateQuantity(ctx, "missing", 5); !errors.Is(err, domain.ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartRepository_Delete(t *testing.T) {
	repo := memory.NewCartRepository()
	ctx := context.Background()

	stored, err := repo.Insert(ctx, newCartItem("user-1", "product-1", 1))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := repo.Delete(ctx, stored.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	items, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(items))
	}

	if err := repo.Delete(ctx, stored.ID); !errors.Is(err, domain.ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}
