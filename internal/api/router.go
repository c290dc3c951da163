package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/metrics"
	"github.com/verdora/storefront/internal/service/cart"
	"github.com/verdora/storefront/internal/service/catalog"
	"github.com/verdora/storefront/internal/service/checkout"
)

// Config собирает зависимости HTTP-слоя.
type Config struct {
	Logger       *log.Entry
	Metrics      *metrics.StoreMetrics
	Auth         domain.AuthService
	Catalog      *catalog.Service
	Carts        *cart.Registry
	Checkout     *checkout.Initiator
	Windows      *checkout.CallbackWindows
	Payments     domain.PaymentRepository
	Timeline     domain.TimelineRepository
	Messages     domain.MessageRepository
	Idempotency  domain.IdempotencyRepository
	AllowOrigins []string
}

// Server — HTTP-обработчики витрины поверх chi.
type Server struct {
	cfg    Config
	logger *log.Entry
	flows  *flowTracker
}

// NewServer создаёт HTTP-слой.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		flows:  newFlowTracker(),
	}
}

// Routes собирает маршрутизатор витрины.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(recovery(s.logger))
	r.Use(requestID)
	r.Use(requestLogging(s.logger, s.cfg.Metrics))

	origins := s.cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Публичные маршруты.
		r.Get("/products", s.listProducts)
		r.Get("/products/{id}", s.getProduct)
		r.Get("/products/{id}/reviews", s.listReviews)
		r.Post("/contact", s.createMessage)
		r.Get("/payment/callback", s.paymentCallback)

		// Маршруты аутентифицированных пользователей.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.cfg.Auth))

			r.Post("/auth/logout", s.logout)

			r.Get("/cart", s.getCart)
			r.Post("/cart/items", s.addCartItem)
			r.Patch("/cart/items/{id}", s.updateCartItem)
			r.Delete("/cart/items/{id}", s.removeCartItem)
			r.Delete("/cart", s.clearCart)

			r.Post("/checkout", s.initiateCheckout)
			r.Post("/checkout/{paymentID}/cancel", s.cancelCheckout)
			r.Get("/payments", s.listPayments)
			r.Get("/payments/{id}", s.getPayment)

			r.Post("/products/{id}/reviews", s.addReview)
			r.Delete("/reviews/{id}", s.deleteReview)
		})

		// Администрирование.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.cfg.Auth))
			r.Use(requireAdmin(s.cfg.Auth))

			r.Route("/admin", func(r chi.Router) {
				r.Post("/products", s.createProduct)
				r.Put("/products/{id}", s.updateProduct)
				r.Delete("/products/{id}", s.deleteProduct)

				r.Get("/messages", s.listMessages)
				r.Post("/messages/{id}/read", s.markMessageRead)
				r.Delete("/messages/{id}", s.deleteMessage)
			})
		})
	})

	return r
}
