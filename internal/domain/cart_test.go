package domain

import (
	"testing"
	"time"
)

func validCartItem() CartItem {
	now := time.Now().UTC()
	return CartItem{
		ID:        "cart-1",
		UserID:    "user-1",
		ProductID: "product-1",
		Quantity:  2,
		Product: ProductSnapshot{
			ID:         "product-1",
			Name:       "Monstera Deliciosa",
			PriceMinor: 2500,
			Stock:      10,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCartItem_Validate_OK(t *testing.T) {
	item := validCartItem()
	if errs := item.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestCartItem_Validate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CartItem)
		want   error
	}{
		{"missing user", func(c *CartItem) { c.UserID = "" }, ErrUserIDRequired},
		{"missing product", func(c *CartItem) { c.ProductID = "" }, ErrProductIDRequired},
		{"zero quantity", func(c *CartItem) { c.Quantity = 0 }, ErrQuantityInvalid},
		{"negative quantity", func(c *CartItem) { c.Quantity = -3 }, ErrQuantityInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := validCartItem()
			tc.mutate(&item)

			errs := item.Validate()
			if len(errs) == 0 {
				t.Fatalf("expected validation error %v, got none", tc.want)
			}
			found := false
			for _, err := range errs {
				if err == tc.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v in %v", tc.want, errs)
			}
		})
	}
}

func TestCartItem_SubtotalMinor(t *testing.T) {
	item := validCartItem()
	if got := item.SubtotalMinor(); got != 5000 {
		t.Fatalf("expected subtotal 5000, got %d", got)
	}
}

func TestCartTotalMinor(t *testing.T) {
	first := validCartItem()
	second := validCartItem()
	second.ID = "cart-2"
	second.ProductID = "product-2"
	second.Quantity = 1
	second.Product.PriceMinor = 1200

	if got := CartTotalMinor([]CartItem{first, second}); got != 6200 {
		t.Fatalf("expected total 6200, got %d", got)
	}

	if got := CartTotalMinor(nil); got != 0 {
		t.Fatalf("expected empty cart total 0, got %d", got)
	}
}
