package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/verdora/storefront/internal/api"
	"github.com/verdora/storefront/internal/domain"
	healthcheck "github.com/verdora/storefront/internal/health"
	"github.com/verdora/storefront/internal/messaging/kafka"
	"github.com/verdora/storefront/internal/metrics"
	"github.com/verdora/storefront/internal/service/cart"
	"github.com/verdora/storefront/internal/service/catalog"
	"github.com/verdora/storefront/internal/service/checkout"
	"github.com/verdora/storefront/internal/service/gateway"
	"github.com/verdora/storefront/internal/service/idempotency"
	"github.com/verdora/storefront/internal/service/outbox"
	"github.com/verdora/storefront/internal/session"
	"github.com/verdora/storefront/internal/version"
)

const idempotencyCleanupBatch = 1000

func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	storeMetrics := metrics.NewStoreMetrics()

	// Инициализация Kafka producer (опционально).
	kafkaProducer, _ := initKafkaProducer(cfg.Brokers(), logger)
	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer)
		dlqPublisher := kafka.NewTopicPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
		worker := outbox.NewWorker(
			deps.Outbox,
			publisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(dlqPublisher),
		)
		go worker.Run(ctx)
	}

	cleanupWorker := idempotency.NewCleanupWorker(
		deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(idempotencyCleanupBatch),
	)
	go cleanupWorker.Run(ctx)

	auth := session.NewTokenAuth()
	for token, userID := range cfg.StaticTokenPairs() {
		auth.Register(token, userID)
	}
	for _, userID := range cfg.AdminUserIDs() {
		auth.GrantAdmin(userID)
	}

	catalogSvc := catalog.NewService(
		deps.Products,
		deps.Reviews,
		catalog.WithLogger(logger.WithField("component", "catalog")),
		catalog.WithCache(deps.Cache, cfg.CacheTTL),
	)

	carts := cart.NewRegistry(
		deps.Carts,
		cart.WithLogger(logger.WithField("component", "cart")),
		cart.WithOutbox(deps.Outbox),
		cart.WithFetchMetrics(storeMetrics),
	)

	windows := checkout.NewCallbackWindows()
	initiator := checkout.NewInitiator(
		deps.Payments,
		newPaymentGateway(cfg, logger),
		windows,
		checkout.WithLogger(logger.WithField("component", "checkout")),
		checkout.WithTimeline(deps.Timeline),
		checkout.WithOutbox(deps.Outbox),
		checkout.WithPollInterval(cfg.CheckoutPollInterval),
	)

	apiServer := api.NewServer(api.Config{
		Logger:       logger.WithField("component", "http"),
		Metrics:      storeMetrics,
		Auth:         auth,
		Catalog:      catalogSvc,
		Carts:        carts,
		Checkout:     initiator,
		Windows:      windows,
		Payments:     deps.Payments,
		Timeline:     deps.Timeline,
		Messages:     deps.Messages,
		Idempotency:  deps.Idempotency,
		AllowOrigins: cfg.AllowOrigins,
	})

	// HTTP Health checks
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Store != nil {
		healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Store.Ping(pingCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      apiServer.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful stop превысил таймаут, принудительно останавливаем")
			_ = srv.Close()
		}
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newPaymentGateway возвращает HTTP-клиент шлюза при заданном BaseURL.
// NOTE: Using mock gateway for development/demo purposes when no base url
// is configured.
func newPaymentGateway(cfg Config, logger *log.Entry) domain.PaymentGateway {
	if cfg.GatewayBaseURL == "" {
		logger.Warn("gateway base url is empty, using mock payment gateway")
		return gateway.NewMockGateway()
	}
	return gateway.NewClient(gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		SecretKey:  cfg.GatewaySecretKey,
		ReturnURL:  cfg.GatewayReturnURL,
		WebsiteURL: cfg.GatewayWebsiteURL,
		Timeout:    cfg.GatewayTimeout,
	}, logger.WithField("component", "gateway"))
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
