package domain

import "time"

// ProductSnapshot — денормализованный срез товара, сохранённый вместе с позицией корзины.
// Позволяет отрисовать корзину без дополнительного запроса в каталог.
type ProductSnapshot struct {
	ID         string
	Name       string
	PriceMinor int64
	ImageURL   string
	Stock      int32
}

// CartItem представляет одну позицию корзины пользователя.
// Инвариант: не более одной позиции на пару (UserID, ProductID),
// повторное добавление увеличивает количество существующей строки.
type CartItem struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int32
	Product   ProductSnapshot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет базовые инварианты позиции корзины.
func (c *CartItem) Validate() []error {
	var errs []error

	if c.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if c.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if c.Quantity < 1 {
		errs = append(errs, ErrQuantityInvalid)
	}

	return errs
}

// SubtotalMinor возвращает стоимость позиции в минимальных денежных единицах.
func (c *CartItem) SubtotalMinor() int64 {
	return int64(c.Quantity) * c.Product.PriceMinor
}

// CartTotalMinor суммирует стоимость всех позиций корзины.
func CartTotalMinor(items []CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.SubtotalMinor()
	}
	return total
}
