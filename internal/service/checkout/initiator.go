package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/messaging/kafka"
)

const (
	defaultPollInterval = 2 * time.Second
	verifyTimeout       = 5 * time.Second
)

// Options задаёт параметры Initiator.
type Options struct {
	Logger       *log.Entry
	Timeline     domain.TimelineRepository
	Outbox       domain.OutboxRepository
	PollInterval time.Duration
	OnOutcome    func(flow *Flow, status domain.GatewayStatus, err error)
	Now          func() time.Time
}

// Option настраивает Initiator.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// WithTimeline включает запись событий жизненного цикла платежа.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(opts *Options) { opts.Timeline = timeline }
}

// WithOutbox включает публикацию платёжных событий через outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(opts *Options) { opts.Outbox = outbox }
}

// WithPollInterval задаёт период опроса платёжного окна.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *Options) { opts.PollInterval = interval }
}

// WithOutcomeHandler задаёт обработчик результата верификации
// (навигация на страницу успеха, уведомление об ошибке).
func WithOutcomeHandler(fn func(flow *Flow, status domain.GatewayStatus, err error)) Option {
	return func(opts *Options) { opts.OnOutcome = fn }
}

// WithClock задаёт источник времени для генерации идентификаторов заказов.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) { opts.Now = now }
}

// Initiator проводит платёж через внешний шлюз: создаёт pending-запись,
// инициирует платёжную сессию, открывает окно оплаты и опрашивает его
// закрытие, после чего запускает серверную верификацию.
type Initiator struct {
	payments domain.PaymentRepository
	gateway  domain.PaymentGateway
	opener   domain.WindowOpener
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry

	pollInterval time.Duration
	onOutcome    func(flow *Flow, status domain.GatewayStatus, err error)
	now          func() time.Time
}

// NewInitiator создаёт Initiator.
func NewInitiator(payments domain.PaymentRepository, gateway domain.PaymentGateway, opener domain.WindowOpener, options ...Option) *Initiator {
	opts := Options{
		PollInterval: defaultPollInterval,
		Now:          time.Now,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "payment-initiator")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Initiator{
		payments:     payments,
		gateway:      gateway,
		opener:       opener,
		timeline:     opts.Timeline,
		outbox:       opts.Outbox,
		logger:       logger,
		pollInterval: opts.PollInterval,
		onOutcome:    opts.OnOutcome,
		now:          opts.Now,
	}
}

// Flow — запущенный платёжный поток. Создаётся после успешного вызова
// шлюза; завершение оплаты наблюдается асинхронно через Done.
type Flow struct {
	PaymentID     string
	TransactionID string
	Session       domain.GatewaySession

	window domain.PaymentWindow
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status domain.GatewayStatus
	err    error
}

// WindowBlocked сообщает, что окружение не дало открыть окно оплаты.
// Опрос в этом случае не запускается, вызывающий показывает ручной retry.
func (f *Flow) WindowBlocked() bool {
	return f.window == nil
}

// Done закрывается после верификации либо после Cancel.
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

// Outcome возвращает результат верификации. Значения определены только
// после закрытия Done.
func (f *Flow) Outcome() (domain.GatewayStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

// Cancel останавливает опрос и освобождает окно оплаты. Платёжная запись
// остаётся как есть.
func (f *Flow) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.window != nil {
		f.window.Close()
	}
}

func (f *Flow) setOutcome(status domain.GatewayStatus, err error) {
	f.mu.Lock()
	f.status = status
	f.err = err
	f.mu.Unlock()
}

// Initiate проводит платёж для пользователя. Возвращает поток после
// успешного вызова шлюза, не дожидаясь завершения оплаты. Без
// аутентифицированного пользователя запись не создаётся вовсе.
func (i *Initiator) Initiate(ctx context.Context, userID string, amountMinor int64, orderID, orderName string, customer domain.CustomerInfo) (*Flow, error) {
	if userID == "" {
		return nil, domain.ErrAuthRequired
	}
	if amountMinor <= 0 {
		return nil, domain.ErrAmountInvalid
	}

	// Идентификатор на основе времени: однопользовательскому потоку
	// достаточно уникальности в пределах миллисекунды.
	transactionID := fmt.Sprintf("txn-%d", i.now().UnixMilli())

	// Запись создаётся в pending до обращения к шлюзу: аудиторский след
	// существует даже при сбое инициации.
	payment, err := i.payments.Create(ctx, domain.Payment{
		UserID:            userID,
		AmountMinor:       amountMinor,
		Status:            domain.PaymentStatusPending,
		TransactionID:     transactionID,
		PurchaseOrderID:   orderID,
		PurchaseOrderName: orderName,
	})
	if err != nil {
		return nil, fmt.Errorf("create pending payment: %w", err)
	}

	logger := i.logger.WithFields(log.Fields{
		"payment_id":     payment.ID,
		"transaction_id": transactionID,
		"user_id":        userID,
	})

	i.recordTimeline(payment.ID, "payment_created", "")
	i.emitEvent(kafka.EventTypePaymentInitiated, payment.ID, userID, string(domain.PaymentStatusPending))

	session, err := i.gateway.Initiate(ctx, amountMinor, transactionID, orderName, customer)
	if err != nil {
		logger.WithError(err).Error("payment gateway initiation failed")
		i.recordTimeline(payment.ID, "gateway_initiate_failed", err.Error())
		return nil, fmt.Errorf("initiate payment session: %w", err)
	}

	if err := i.payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusPending, session.SessionID); err != nil {
		logger.WithError(err).Warn("failed to store gateway session id")
	}

	flow := &Flow{
		PaymentID:     payment.ID,
		TransactionID: transactionID,
		Session:       session,
		done:          make(chan struct{}),
	}

	window, err := i.opener.Open(session.RedirectURL)
	if err != nil {
		logger.WithError(err).Warn("failed to open payment window")
		window = nil
	}
	if window == nil {
		// Окно заблокировано: поток останавливается молча, вызывающий
		// предлагает повторить вручную.
		logger.Warn("payment window blocked, polling not started")
		close(flow.done)
		return flow, nil
	}
	flow.window = window

	pollCtx, cancel := context.WithCancel(context.Background())
	flow.cancel = cancel
	go i.watchWindow(pollCtx, flow, logger)

	logger.WithField("gateway_session_id", session.SessionID).Info("payment flow started")
	return flow, nil
}

// watchWindow опрашивает окно оплаты с фиксированным интервалом и после
// его закрытия запускает верификацию. Таймаута нет: опрос идёт до
// закрытия окна либо до Cancel.
func (i *Initiator) watchWindow(ctx context.Context, flow *Flow, logger *log.Entry) {
	defer close(flow.done)

	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flow.setOutcome("", ctx.Err())
			return
		case <-ticker.C:
			// Cancel закрывает окно сам: без этой проверки тик мог бы
			// принять отменённый поток за завершённую оплату.
			if err := ctx.Err(); err != nil {
				flow.setOutcome("", err)
				return
			}
			if !flow.window.Closed() {
				continue
			}
			i.recordTimeline(flow.PaymentID, "window_closed", "")
			i.verify(flow, logger)
			return
		}
	}
}

func (i *Initiator) verify(flow *Flow, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	status, err := i.gateway.Verify(ctx, flow.Session.SessionID)
	if err != nil {
		logger.WithError(err).Error("payment verification failed")
		i.recordTimeline(flow.PaymentID, "verify_failed", err.Error())
		i.emitEvent(kafka.EventTypePaymentVerifyFailed, flow.PaymentID, "", "")
		flow.setOutcome("", fmt.Errorf("verify payment: %w", err))
		i.notify(flow, "", err)
		return
	}

	i.recordTimeline(flow.PaymentID, "verified", string(status))
	switch status {
	case domain.GatewayStatusCompleted:
		i.updateStatus(flow, domain.PaymentStatusCompleted, logger)
		i.emitEvent(kafka.EventTypePaymentVerified, flow.PaymentID, "", string(domain.PaymentStatusCompleted))
		logger.Info("payment completed")
	case domain.GatewayStatusFailed:
		i.updateStatus(flow, domain.PaymentStatusFailed, logger)
		i.emitEvent(kafka.EventTypePaymentVerified, flow.PaymentID, "", string(domain.PaymentStatusFailed))
		logger.Warn("payment failed")
	default:
		// Pending после закрытия окна: запись не трогаем, статус уточнит
		// следующая верификация или сверка.
		logger.WithField("status", status).Warn("payment not completed")
	}

	flow.setOutcome(status, nil)
	i.notify(flow, status, nil)
}

func (i *Initiator) updateStatus(flow *Flow, status domain.PaymentStatus, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	if err := i.payments.UpdateStatus(ctx, flow.PaymentID, status, flow.Session.SessionID); err != nil {
		logger.WithError(err).WithField("status", status).Warn("failed to update payment status")
	}
}

func (i *Initiator) notify(flow *Flow, status domain.GatewayStatus, err error) {
	if i.onOutcome != nil {
		i.onOutcome(flow, status, err)
	}
}

func (i *Initiator) recordTimeline(paymentID, eventType, reason string) {
	if i.timeline == nil {
		return
	}
	if err := i.timeline.Append(domain.TimelineEvent{
		PaymentID: paymentID,
		Type:      eventType,
		Reason:    reason,
		Occurred:  i.now().UTC(),
	}); err != nil {
		i.logger.WithError(err).WithField("payment_id", paymentID).Warn("failed to append timeline event")
	}
}

func (i *Initiator) emitEvent(eventType kafka.EventType, paymentID, userID, status string) {
	if i.outbox == nil {
		return
	}

	payload, err := json.Marshal(kafka.NewPaymentEvent(eventType, paymentID, userID, status, nil))
	if err != nil {
		i.logger.WithError(err).Warn("failed to marshal payment event")
		return
	}
	if _, err := i.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   paymentID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		i.logger.WithError(err).WithField("event_type", eventType).Warn("failed to enqueue payment event")
	}
}
