package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События корзины
	EventTypeCartItemAdded   EventType = "cart.item_added"
	EventTypeCartItemUpdated EventType = "cart.item_updated"
	EventTypeCartItemRemoved EventType = "cart.item_removed"
	EventTypeCartCleared     EventType = "cart.cleared"

	// События платежей
	EventTypePaymentInitiated    EventType = "payment.initiated"
	EventTypePaymentVerified     EventType = "payment.verified"
	EventTypePaymentVerifyFailed EventType = "payment.verify_failed"
)

// Topics для Kafka
const (
	TopicCartEvents      = "verdora.cart.events"
	TopicPaymentEvents   = "verdora.payment.events"
	TopicDeadLetterQueue = "verdora.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// CartEvent представляет событие изменения корзины
type CartEvent struct {
	EventType EventType              `json:"event_type"`
	UserID    string                 `json:"user_id"`
	ProductID string                 `json:"product_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// PaymentEvent представляет событие жизненного цикла платежа
type PaymentEvent struct {
	EventType EventType              `json:"event_type"`
	PaymentID string                 `json:"payment_id"`
	UserID    string                 `json:"user_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewCartEvent создает новое событие корзины
func NewCartEvent(eventType EventType, userID, productID string, metadata map[string]interface{}) *CartEvent {
	return &CartEvent{
		EventType: eventType,
		UserID:    userID,
		ProductID: productID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewPaymentEvent создает новое событие платежа
func NewPaymentEvent(eventType EventType, paymentID, userID, status string, metadata map[string]interface{}) *PaymentEvent {
	return &PaymentEvent{
		EventType: eventType,
		PaymentID: paymentID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
