package domain

import "time"

// Product описывает товар каталога: растение или предмет декора.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	PriceMinor  int64 // Цена в минимальных денежных единицах.
	ImageURL    string
	Stock       int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет базовые инварианты товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrProductStockInvalid)
	}

	return errs
}

// Snapshot возвращает денормализованный срез товара для вложения в позицию корзины.
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:         p.ID,
		Name:       p.Name,
		PriceMinor: p.PriceMinor,
		ImageURL:   p.ImageURL,
		Stock:      p.Stock,
	}
}
