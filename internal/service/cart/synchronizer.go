package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/messaging/kafka"
)

// State описывает жизненный цикл локального снимка корзины.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateError         State = "error"
)

// Snapshot — копия текущего состояния корзины для читателей.
type Snapshot struct {
	UserID     string
	State      State
	Items      []domain.CartItem
	TotalMinor int64
	Err        error
}

// FetchMetrics считает чтения корзины из хранилища и срабатывания
// guard-а от дублирующих запросов. Реализуется metrics.StoreMetrics.
type FetchMetrics interface {
	RecordCartFetch()
	RecordCartFetchSkipped()
}

// Options задаёт параметры Synchronizer.
type Options struct {
	Logger  *log.Entry
	Outbox  domain.OutboxRepository
	Metrics FetchMetrics
}

// Option настраивает Synchronizer.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithOutbox включает публикацию событий корзины через transactional outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(opts *Options) {
		opts.Outbox = outbox
	}
}

// WithFetchMetrics включает подсчёт чтений корзины.
func WithFetchMetrics(m FetchMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Synchronizer владеет локальным снимком корзины текущей сессии и сверяет
// его с хранилищем после каждой мутации. Хранилище — источник истины,
// снимок — кэш, полностью перечитываемый после записи.
type Synchronizer struct {
	repo    domain.CartRepository
	session domain.SessionProvider
	outbox  domain.OutboxRepository
	metrics FetchMetrics
	logger  *log.Entry

	mu          sync.Mutex
	state       State
	items       []domain.CartItem
	lastErr     error
	inFlight    bool
	unsubscribe func()
}

// NewSynchronizer создаёт Synchronizer и подписывается на смену сессии.
// Смена пользователя сбрасывает снимок синхронно, до каких-либо сетевых
// вызовов: корзина предыдущего аккаунта не должна просочиться в новый.
func NewSynchronizer(repo domain.CartRepository, session domain.SessionProvider, options ...Option) *Synchronizer {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-synchronizer")
	}

	s := &Synchronizer{
		repo:    repo,
		session: session,
		outbox:  opts.Outbox,
		metrics: opts.Metrics,
		logger:  logger,
		state:   StateUninitialized,
	}
	s.unsubscribe = session.Subscribe(func(string) {
		s.reset()
	})
	return s
}

// Close отписывается от уведомлений сессии.
func (s *Synchronizer) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Snapshot возвращает копию текущего состояния.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	items := make([]domain.CartItem, len(s.items))
	copy(items, s.items)
	return Snapshot{
		UserID:     s.session.CurrentUserID(),
		State:      s.state,
		Items:      items,
		TotalMinor: domain.CartTotalMinor(items),
		Err:        s.lastErr,
	}
}

func (s *Synchronizer) reset() {
	s.mu.Lock()
	s.state = StateUninitialized
	s.items = nil
	s.lastErr = nil
	s.mu.Unlock()
}

// Fetch перечитывает корзину пользователя из хранилища. Если чтение уже
// идёт, новый запрос не отправляется и возвращается текущий снимок: это
// защита от дублирующих вызовов, а не гарантия свежести. При ошибке
// прежний снимок сохраняется, а ошибка возвращается вызывающему.
func (s *Synchronizer) Fetch(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.inFlight {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordCartFetchSkipped()
		}
		return snap, nil
	}
	s.inFlight = true
	s.state = StateLoading
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	// Запрос помечается пользователем на момент отправки: если сессия
	// сменилась, пока ответ был в пути, устаревший результат отбрасывается.
	userID := s.session.CurrentUserID()
	if userID == "" {
		s.mu.Lock()
		s.items = nil
		s.state = StateReady
		s.lastErr = nil
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}

	if s.metrics != nil {
		s.metrics.RecordCartFetch()
	}
	items, err := s.repo.ListByUser(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.session.CurrentUserID(); current != userID {
		s.logger.WithFields(log.Fields{
			"fetched_for": userID,
			"current":     current,
		}).Warn("discarding stale cart fetch after session change")
		return s.snapshotLocked(), nil
	}

	if err != nil {
		s.state = StateError
		s.lastErr = err
		s.logger.WithError(err).WithField("user_id", userID).Error("failed to fetch cart")
		return s.snapshotLocked(), fmt.Errorf("fetch cart: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	s.items = items
	s.state = StateReady
	s.lastErr = nil
	return s.snapshotLocked(), nil
}

// Add добавляет товар в корзину. Для существующей пары (пользователь,
// товар) количество увеличивается, новая строка не создаётся. Гостевая
// сессия корзину не сохраняет и получает ErrAuthRequired.
func (s *Synchronizer) Add(ctx context.Context, productID string, quantity int32) (Snapshot, error) {
	userID := s.session.CurrentUserID()
	if userID == "" {
		return s.Snapshot(), domain.ErrAuthRequired
	}
	if productID == "" {
		return s.Snapshot(), domain.ErrProductIDRequired
	}
	if quantity < 1 {
		return s.Snapshot(), domain.ErrQuantityInvalid
	}

	existing, err := s.repo.FindByUserAndProduct(ctx, userID, productID)
	switch {
	case err == nil:
		if err := s.repo.UpdateQuantity(ctx, existing.ID, existing.Quantity+quantity); err != nil {
			return s.Snapshot(), fmt.Errorf("increment cart item: %w", err)
		}
	case errors.Is(err, domain.ErrCartItemNotFound):
		if _, err := s.repo.Insert(ctx, domain.CartItem{
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
		}); err != nil {
			return s.Snapshot(), fmt.Errorf("insert cart item: %w", err)
		}
	default:
		return s.Snapshot(), fmt.Errorf("lookup cart item: %w", err)
	}

	s.emitEvent(kafka.EventTypeCartItemAdded, userID, productID, map[string]interface{}{
		"quantity": quantity,
	})
	return s.Fetch(ctx)
}

// UpdateQuantity меняет количество в строке корзины. Значение меньше 1
// игнорируется: удаление выполняется только через Remove.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, itemID string, quantity int32) (Snapshot, error) {
	if quantity < 1 {
		return s.Snapshot(), nil
	}

	if err := s.repo.UpdateQuantity(ctx, itemID, quantity); err != nil {
		return s.Snapshot(), fmt.Errorf("update cart quantity: %w", err)
	}

	s.emitEvent(kafka.EventTypeCartItemUpdated, s.session.CurrentUserID(), "", map[string]interface{}{
		"cart_item_id": itemID,
		"quantity":     quantity,
	})
	return s.Fetch(ctx)
}

// Remove удаляет строку корзины.
func (s *Synchronizer) Remove(ctx context.Context, itemID string) (Snapshot, error) {
	if err := s.repo.Delete(ctx, itemID); err != nil {
		return s.Snapshot(), fmt.Errorf("remove cart item: %w", err)
	}

	s.emitEvent(kafka.EventTypeCartItemRemoved, s.session.CurrentUserID(), "", map[string]interface{}{
		"cart_item_id": itemID,
	})
	return s.Fetch(ctx)
}

// Clear удаляет строки по одной, последовательно. Неудачное удаление
// пропускается и не откатывает уже удалённые строки: частично очищенная
// корзина — принятый режим отказа, компенсации нет.
func (s *Synchronizer) Clear(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	state := s.state
	items := make([]domain.CartItem, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	// Холодный снимок сперва сверяется с хранилищем: иначе Clear на свежем
	// синхронизаторе не увидит ни одной строки и "успешно" ничего не удалит.
	if state != StateReady {
		snap, err := s.Fetch(ctx)
		if err != nil {
			return snap, err
		}
		items = snap.Items
	}

	var firstErr error
	for _, item := range items {
		if err := s.repo.Delete(ctx, item.ID); err != nil {
			s.logger.WithError(err).WithField("cart_item_id", item.ID).Warn("failed to remove cart item during clear")
			if firstErr == nil {
				firstErr = fmt.Errorf("clear cart item %s: %w", item.ID, err)
			}
		}
	}

	if firstErr == nil {
		s.emitEvent(kafka.EventTypeCartCleared, s.session.CurrentUserID(), "", nil)
	}

	snap, fetchErr := s.Fetch(ctx)
	if firstErr != nil {
		return snap, firstErr
	}
	return snap, fetchErr
}

func (s *Synchronizer) emitEvent(eventType kafka.EventType, userID, productID string, metadata map[string]interface{}) {
	if s.outbox == nil || userID == "" {
		return
	}

	payload, err := json.Marshal(kafka.NewCartEvent(eventType, userID, productID, metadata))
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal cart event")
		return
	}
	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "cart",
		AggregateID:   userID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Warn("failed to enqueue cart event")
	}
}
