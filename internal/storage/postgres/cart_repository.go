package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/verdora/storefront/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

const cartItemColumns = `
	c.id, c.user_id, c.product_id, c.quantity, c.created_at, c.updated_at,
	p.id, p.name, p.price_minor, p.image_url, p.stock
`

func (r *cartRepository) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cartItemColumns+`
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart rows: %w", err)
	}

	return items, nil
}

func (r *cartRepository) FindByUserAndProduct(ctx context.Context, userID, productID string) (domain.CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+cartItemColumns+`
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1 AND c.product_id = $2
	`, userID, productID)

	item, err := scanCartItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CartItem{}, domain.ErrCartItemNotFound
		}
		return domain.CartItem{}, err
	}
	return item, nil
}

func (r *cartRepository) Insert(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	// Уникальный индекс (user_id, product_id) страхует инвариант "одна строка на товар"
	// даже при гонке двух одновременных вставок: проигравшая увеличивает количество.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
	`, item.ID, item.UserID, item.ProductID, item.Quantity, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("insert cart item: %w", err)
	}

	return r.FindByUserAndProduct(ctx, item.UserID, item.ProductID)
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, itemID string, quantity int32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $2, updated_at = $3
		WHERE id = $1
	`, itemID, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update cart quantity: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for cart update: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) Delete(ctx context.Context, itemID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for cart delete: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartItem(row rowScanner) (domain.CartItem, error) {
	var item domain.CartItem
	if err := row.Scan(
		&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
		&item.Product.ID, &item.Product.Name, &item.Product.PriceMinor, &item.Product.ImageURL, &item.Product.Stock,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CartItem{}, err
		}
		return domain.CartItem{}, fmt.Errorf("scan cart item: %w", err)
	}
	return item, nil
}

// isUniqueViolation распознаёт нарушение уникального ограничения PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.CartRepository = (*cartRepository)(nil)
