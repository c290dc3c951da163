package domain

import "errors"

var (
	// ErrAuthRequired возвращается, когда операция требует авторизованного пользователя.
	ErrAuthRequired = errors.New("authentication required")
	// ErrGatewayUnavailable — сетевая ошибка при обращении к удалённому хранилищу или шлюзу.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserIDRequired = errors.New("user_id is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка некорректного количества товара (< 1).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка отрицательной или нулевой суммы платежа.
	ErrAmountInvalid = errors.New("amount_minor must be greater than zero")
	// Ошибка отсутствующего имени товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// Ошибка отрицательного остатка на складе.
	ErrProductStockInvalid = errors.New("product stock must be non-negative")
	// Ошибка рейтинга отзыва вне диапазона 1..5.
	ErrReviewRatingInvalid = errors.New("review rating must be between 1 and 5")
	// Ошибка неподдерживаемого статуса платежа.
	ErrPaymentStatusInvalid = errors.New("payment status is not supported")

	// ErrCartItemNotFound возвращается, если позиция корзины не найдена.
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrPaymentNotFound возвращается, если платёжная запись не найдена.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrReviewNotFound возвращается, если отзыв не найден.
	ErrReviewNotFound = errors.New("review not found")
	// ErrMessageNotFound возвращается, если сообщение не найдено.
	ErrMessageNotFound = errors.New("message not found")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки обработки idempotency-key.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// IsNotFound проверяет, относится ли ошибка к категории "запись не найдена".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCartItemNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrReviewNotFound) ||
		errors.Is(err, ErrMessageNotFound)
}

// IsAuthRequired проверяет, требует ли операция авторизации.
func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}
