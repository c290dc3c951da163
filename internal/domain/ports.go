package domain

import (
	"context"
	"time"
)

// CartRepository описывает требования к хранилищу позиций корзины.
type CartRepository interface {
	// ListByUser возвращает все позиции корзины пользователя с денормализованными товарами.
	ListByUser(ctx context.Context, userID string) ([]CartItem, error)
	// FindByUserAndProduct возвращает позицию по паре (user, product) или ErrCartItemNotFound.
	FindByUserAndProduct(ctx context.Context, userID, productID string) (CartItem, error)
	// Insert сохраняет новую позицию корзины.
	Insert(ctx context.Context, item CartItem) (CartItem, error)
	// UpdateQuantity меняет количество в существующей позиции.
	UpdateQuantity(ctx context.Context, itemID string, quantity int32) error
	// Delete удаляет позицию корзины.
	Delete(ctx context.Context, itemID string) error
}

// PaymentRepository описывает требования к хранилищу платёжных записей.
type PaymentRepository interface {
	// Create сохраняет новую платёжную запись (обычно в статусе pending).
	Create(ctx context.Context, payment Payment) (Payment, error)
	// Get возвращает платёж по идентификатору или ErrPaymentNotFound.
	Get(ctx context.Context, id string) (Payment, error)
	// ListByUser возвращает платежи пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Payment, error)
	// UpdateStatus переводит платёж в новый статус и сохраняет идентификатор сессии шлюза.
	UpdateStatus(ctx context.Context, id string, status PaymentStatus, gatewaySessionID string) error
}

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	List(ctx context.Context, category string, limit int) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) error
	Delete(ctx context.Context, id string) error
}

// ReviewRepository описывает требования к хранилищу отзывов.
type ReviewRepository interface {
	ListByProduct(ctx context.Context, productID string) ([]Review, error)
	Create(ctx context.Context, review Review) (Review, error)
	Get(ctx context.Context, id string) (Review, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepository описывает требования к хранилищу сообщений контактной формы.
type MessageRepository interface {
	List(ctx context.Context, limit int) ([]Message, error)
	Create(ctx context.Context, msg Message) (Message, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SessionProvider отдаёт текущего пользователя сессии и уведомляет об изменениях.
// Ядро никогда не читает глобальное состояние авторизации напрямую.
type SessionProvider interface {
	// CurrentUserID возвращает идентификатор пользователя или пустую строку для гостя.
	CurrentUserID() string
	// Subscribe регистрирует обработчик смены сессии и возвращает функцию отписки.
	Subscribe(fn func(userID string)) (unsubscribe func())
}

// AuthService проверяет токены входящих HTTP-запросов.
type AuthService interface {
	// UserIDFromToken возвращает идентификатор пользователя по bearer-токену.
	UserIDFromToken(ctx context.Context, token string) (string, error)
	// IsAdmin сообщает, обладает ли пользователь правами администратора.
	IsAdmin(ctx context.Context, userID string) (bool, error)
	// Revoke отзывает токен. Отзыв неизвестного токена не является ошибкой.
	Revoke(ctx context.Context, token string) error
}

// GatewaySession — результат инициации оплаты во внешнем шлюзе.
type GatewaySession struct {
	SessionID   string
	RedirectURL string
}

// GatewayStatus — статус платежа по данным шлюза.
type GatewayStatus string

const (
	GatewayStatusCompleted GatewayStatus = "Completed"
	GatewayStatusPending   GatewayStatus = "Pending"
	GatewayStatusFailed    GatewayStatus = "Failed"
)

// CustomerInfo — контактные данные плательщика, передаваемые шлюзу.
type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

// PaymentGateway описывает взаимодействие с внешним платёжным шлюзом.
type PaymentGateway interface {
	// Initiate создаёт платёжную сессию и возвращает URL для редиректа.
	Initiate(ctx context.Context, amountMinor int64, orderID, orderName string, customer CustomerInfo) (GatewaySession, error)
	// Verify запрашивает фактический статус платёжной сессии.
	Verify(ctx context.Context, sessionID string) (GatewayStatus, error)
}

// PaymentWindow — открытый браузерный контекст оплаты, за которым наблюдает ядро.
type PaymentWindow interface {
	// Closed сообщает, закрыл ли пользователь окно оплаты.
	Closed() bool
	// Close принудительно освобождает окно (например, при отмене flow).
	Close()
}

// WindowOpener открывает платёжный redirect в отдельном браузерном контексте.
// Возвращает nil без ошибки, если окружение заблокировало открытие окна.
type WindowOpener interface {
	Open(url string) (PaymentWindow, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла платежа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(paymentID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
