package domain

import "time"

// PaymentStatus описывает состояние платёжной записи.
type PaymentStatus string

const (
	// PaymentStatusPending — запись создана до обращения к шлюзу, оплата не подтверждена.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted — шлюз подтвердил успешное завершение оплаты.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — шлюз отклонил оплату или верификация не прошла.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// Payment описывает платёжную запись пользователя.
// Запись создаётся в статусе pending до вызова шлюза, чтобы аудиторский след
// существовал даже при сбое инициации. Переходы completed/failed выполняет
// только серверная верификация.
type Payment struct {
	ID                string
	UserID            string
	AmountMinor       int64
	Status            PaymentStatus
	TransactionID     string // Клиентский идентификатор заказа, достаточно уникальный по времени.
	PurchaseOrderID   string
	PurchaseOrderName string
	GatewaySessionID  string // Может быть пустым до успешного вызова initiate.
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate проверяет корректность полей платёжной записи.
func (p *Payment) Validate() []error {
	var errs []error

	if p.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if p.AmountMinor <= 0 {
		errs = append(errs, ErrAmountInvalid)
	}
	if !p.Status.Valid() {
		errs = append(errs, ErrPaymentStatusInvalid)
	}

	return errs
}
