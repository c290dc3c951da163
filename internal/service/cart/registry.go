package cart

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/verdora/storefront/internal/domain"
)

// Registry выдаёт по одному Synchronizer на пользователя, чтобы
// параллельные HTTP-запросы одного аккаунта разделяли общий снимок
// и общий guard от дублирующих чтений.
type Registry struct {
	repo    domain.CartRepository
	outbox  domain.OutboxRepository
	metrics FetchMetrics
	logger  *log.Entry

	mu    sync.Mutex
	syncs map[string]*Synchronizer
}

// NewRegistry создаёт реестр синхронизаторов.
func NewRegistry(repo domain.CartRepository, options ...Option) *Registry {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-registry")
	}

	return &Registry{
		repo:    repo,
		outbox:  opts.Outbox,
		metrics: opts.Metrics,
		logger:  logger,
		syncs:   make(map[string]*Synchronizer),
	}
}

// ForUser возвращает синхронизатор пользователя, создавая его при первом
// обращении.
func (r *Registry) ForUser(userID string) *Synchronizer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.syncs[userID]; ok {
		return s
	}

	s := NewSynchronizer(r.repo, fixedSession(userID),
		WithLogger(r.logger.WithField("user_id", userID)),
		WithOutbox(r.outbox),
		WithFetchMetrics(r.metrics),
	)
	r.syncs[userID] = s
	return s
}

// Drop закрывает и забывает синхронизатор пользователя.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.syncs[userID]; ok {
		s.Close()
		delete(r.syncs, userID)
	}
}

// fixedSession — сессия, навсегда привязанная к одному пользователю.
// Используется реестром: смену аккаунта в HTTP-модели представляет
// другой синхронизатор, а не смена сессии внутри существующего.
type fixedSession string

var _ domain.SessionProvider = fixedSession("")

func (s fixedSession) CurrentUserID() string { return string(s) }

func (s fixedSession) Subscribe(func(userID string)) (unsubscribe func()) {
	return func() {}
}
