package domain

import "testing"

func TestProduct_Validate(t *testing.T) {
	product := Product{Name: "Ficus Lyrata", PriceMinor: 3500, Stock: 4}
	if errs := product.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	bad := Product{Name: "", PriceMinor: -1, Stock: -2}
	errs := bad.Validate()
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
}

func TestProduct_Snapshot(t *testing.T) {
	product := Product{
		ID:         "product-1",
		Name:       "Ceramic Pot",
		PriceMinor: 1500,
		ImageURL:   "https://cdn.example.com/pot.jpg",
		Stock:      7,
	}

	snap := product.Snapshot()
	if snap.ID != product.ID || snap.Name != product.Name {
		t.Fatalf("snapshot mismatch: %+v", snap)
	}
	if snap.PriceMinor != 1500 || snap.Stock != 7 {
		t.Fatalf("snapshot mismatch: %+v", snap)
	}
}

func TestReview_Validate(t *testing.T) {
	review := Review{ProductID: "product-1", UserID: "user-1", Rating: 5}
	if errs := review.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	review.Rating = 6
	errs := review.Validate()
	if len(errs) != 1 || errs[0] != ErrReviewRatingInvalid {
		t.Fatalf("expected rating error, got %v", errs)
	}
}
