package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/verdora/storefront/internal/cache"
	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/storage/memory"
	"github.com/verdora/storefront/internal/storage/postgres"
)

// Dependencies содержит хранилища и кэш приложения.
type Dependencies struct {
	Carts       domain.CartRepository
	Payments    domain.PaymentRepository
	Products    domain.ProductRepository
	Reviews     domain.ReviewRepository
	Messages    domain.MessageRepository
	Timeline    domain.TimelineRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository
	Cache       cache.Cache
	Store       *postgres.Store // nil при in-memory хранилище
	Logger      *log.Entry

	closers []func() error
}

// NewDependencies создаёт хранилища согласно конфигурации: PostgreSQL при
// заданном DSN, иначе in-memory; Redis-кэш при заданном адресе, иначе
// кэш в памяти процесса.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		deps.Store = store
		deps.closers = append(deps.closers, store.Close)

		deps.Carts = postgres.NewCartRepository(store)
		deps.Payments = postgres.NewPaymentRepository(store)
		deps.Products = postgres.NewProductRepository(store)
		deps.Reviews = postgres.NewReviewRepository(store)
		deps.Messages = postgres.NewMessageRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Idempotency = postgres.NewIdempotencyRepository(store)
		logger.Info("using postgres storage")
	} else {
		deps.Carts = memory.NewCartRepository()
		deps.Payments = memory.NewPaymentRepository()
		deps.Products = memory.NewProductRepository()
		deps.Reviews = memory.NewReviewRepository()
		deps.Messages = memory.NewMessageRepository()
		deps.Timeline = memory.NewTimelineRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Idempotency = memory.NewIdempotencyRepository()
		logger.Info("postgres dsn is empty, using in-memory storage")
	}

	if cfg.RedisAddr != "" {
		redisCache, closeRedis, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.WithError(err).Warn("failed to connect to redis, falling back to in-memory cache")
			deps.Cache = cache.NewMemory()
		} else {
			deps.Cache = redisCache
			deps.closers = append(deps.closers, closeRedis)
			logger.WithField("addr", cfg.RedisAddr).Info("redis cache initialized")
		}
	} else {
		deps.Cache = cache.NewMemory()
	}

	return deps, nil
}

// Close освобождает подключения в обратном порядке создания.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.WithError(err).Warn("failed to close dependency")
		}
	}
}
