package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/verdora/storefront/internal/cache"
	"github.com/verdora/storefront/internal/domain"
)

const (
	defaultCacheTTL = 5 * time.Minute
	listCacheKey    = "catalog:list"
)

// Options задаёт параметры Service.
type Options struct {
	Logger   *log.Entry
	Cache    cache.Cache
	CacheTTL time.Duration
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// WithCache включает read-through кэширование каталога.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(opts *Options) {
		opts.Cache = c
		opts.CacheTTL = ttl
	}
}

// Service обслуживает каталог товаров и отзывы. Чтения идут через кэш,
// мутации каталога инвалидируют его.
type Service struct {
	products domain.ProductRepository
	reviews  domain.ReviewRepository
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, reviews domain.ReviewRepository, options ...Option) *Service {
	opts := Options{CacheTTL: defaultCacheTTL}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	return &Service{
		products: products,
		reviews:  reviews,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   logger,
	}
}

// ListProducts возвращает товары, при необходимости отфильтрованные по
// категории. Ошибка кэша деградирует в прямое чтение из хранилища.
func (s *Service) ListProducts(ctx context.Context, category string, limit int) ([]domain.Product, error) {
	key := listKey(category, limit)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var products []domain.Product
			if err := json.Unmarshal(raw, &products); err == nil {
				return products, nil
			}
			s.logger.WithField("key", key).Warn("dropping corrupted catalog cache entry")
			s.invalidate(ctx, key)
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).Warn("catalog cache read failed")
		}
	}

	products, err := s.products.List(ctx, category, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(products); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.logger.WithError(err).Warn("catalog cache write failed")
			}
		}
	}
	return products, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	key := productKey(id)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var product domain.Product
			if err := json.Unmarshal(raw, &product); err == nil {
				return product, nil
			}
			s.invalidate(ctx, key)
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).Warn("catalog cache read failed")
		}
	}

	product, err := s.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(product); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.logger.WithError(err).Warn("catalog cache write failed")
			}
		}
	}
	return product, nil
}

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	created, err := s.products.Create(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.invalidateLists(ctx)
	s.logger.WithField("product_id", created.ID).Info("product created")
	return created, nil
}

// UpdateProduct изменяет товар.
func (s *Service) UpdateProduct(ctx context.Context, product domain.Product) error {
	if errs := product.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	if err := s.products.Update(ctx, product); err != nil {
		return err
	}

	s.invalidate(ctx, productKey(product.ID))
	s.invalidateLists(ctx)
	return nil
}

// DeleteProduct удаляет товар из каталога.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, productKey(id))
	s.invalidateLists(ctx)
	return nil
}

// ListReviews возвращает отзывы на товар, новые первыми.
func (s *Service) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	return s.reviews.ListByProduct(ctx, productID)
}

// AddReview сохраняет отзыв. Товар должен существовать.
func (s *Service) AddReview(ctx context.Context, review domain.Review) (domain.Review, error) {
	if errs := review.Validate(); len(errs) > 0 {
		return domain.Review{}, errors.Join(errs...)
	}
	if _, err := s.GetProduct(ctx, review.ProductID); err != nil {
		return domain.Review{}, err
	}

	created, err := s.reviews.Create(ctx, review)
	if err != nil {
		return domain.Review{}, fmt.Errorf("create review: %w", err)
	}
	return created, nil
}

// DeleteReview удаляет отзыв. Разрешён автору и администратору, userID
// задаёт текущего пользователя.
func (s *Service) DeleteReview(ctx context.Context, id, userID string, isAdmin bool) error {
	review, err := s.reviews.Get(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != userID && !isAdmin {
		return domain.ErrAuthRequired
	}
	return s.reviews.Delete(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WithError(err).Warn("catalog cache invalidation failed")
	}
}

// invalidateLists сбрасывает списочные ключи базовых выборок. Ключи с
// нестандартным лимитом доживают до истечения TTL.
func (s *Service) invalidateLists(ctx context.Context) {
	keys := []string{listKey("", 0)}
	for _, category := range []string{"plants", "decor"} {
		keys = append(keys, listKey(category, 0))
	}
	s.invalidate(ctx, keys...)
}

func listKey(category string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", listCacheKey, category, limit)
}

func productKey(id string) string {
	return "catalog:product:" + id
}
