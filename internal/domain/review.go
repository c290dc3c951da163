package domain

import "time"

// Review описывает отзыв пользователя на товар.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Rating    int32 // 1..5
	Comment   string
	CreatedAt time.Time
}

// Validate проверяет базовые инварианты отзыва.
func (r *Review) Validate() []error {
	var errs []error

	if r.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if r.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if r.Rating < 1 || r.Rating > 5 {
		errs = append(errs, ErrReviewRatingInvalid)
	}

	return errs
}
