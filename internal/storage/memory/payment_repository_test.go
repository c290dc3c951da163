package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/storage/memory"
)

func newPayment(userID string) domain.Payment {
	return domain.Payment{
		UserID:            userID,
		AmountMinor:       4900,
		Status:            domain.PaymentStatusPending,
		TransactionID:     "txn-1700000000000",
		PurchaseOrderID:   "order-1",
		PurchaseOrderName: "Verdora order",
	}
}

func TestPaymentRepository_CreateGet(t *testing.T) {
	repo := memory.NewPaymentRepository()
	ctx := context.Background()

	stored, err := repo.Create(ctx, newPayment("user-1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := repo.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending status, got %s", got.Status)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestPaymentRepository_ListByUser(t *testing.T) {
	repo := memory.NewPaymentRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, newPayment("user-1")); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if _, err := repo.Create(ctx, newPayment("user-2")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	payments, err := repo.ListByUser(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(payments))
	}

	limited, err := repo.ListByUser(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 payments with limit, got %d", len(limited))
	}
}

func TestPaymentRepository_UpdateStatus(t *testing.T) {
	repo := memory.NewPaymentRepository()
	ctx := context.Background()

	stored, err := repo.Create(ctx, newPayment("user-1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.UpdateStatus(ctx, stored.ID, domain.PaymentStatusCompleted, "session-1"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := repo.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected completed status, got %s", got.Status)
	}
	if got.GatewaySessionID != "session-1" {
		t.Fatalf("expected gateway session id, got %q", got.GatewaySessionID)
	}

	if err := repo.UpdateStatus(ctx, "missing", domain.PaymentStatusFailed, ""); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
