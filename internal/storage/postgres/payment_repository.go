package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verdora/storefront/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, user_id, amount_minor, status, transaction_id,
			purchase_order_id, purchase_order_name, gateway_session_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		payment.ID, payment.UserID, payment.AmountMinor, string(payment.Status),
		payment.TransactionID, payment.PurchaseOrderID, payment.PurchaseOrderName,
		payment.GatewaySessionID, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("insert payment: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		payment domain.Payment
		status  string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount_minor, status, transaction_id,
		       purchase_order_id, purchase_order_name, gateway_session_id,
		       created_at, updated_at
		FROM payments
		WHERE id = $1
	`, id).Scan(
		&payment.ID, &payment.UserID, &payment.AmountMinor, &status,
		&payment.TransactionID, &payment.PurchaseOrderID, &payment.PurchaseOrderName,
		&payment.GatewaySessionID, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	payment.Status = domain.PaymentStatus(status)

	return payment, nil
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, user_id, amount_minor, status, transaction_id,
		       purchase_order_id, purchase_order_name, gateway_session_id,
		       created_at, updated_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			payment domain.Payment
			status  string
		)
		if err := rows.Scan(
			&payment.ID, &payment.UserID, &payment.AmountMinor, &status,
			&payment.TransactionID, &payment.PurchaseOrderID, &payment.PurchaseOrderName,
			&payment.GatewaySessionID, &payment.CreatedAt, &payment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payment.Status = domain.PaymentStatus(status)
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, gatewaySessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    gateway_session_id = COALESCE(NULLIF($3, ''), gateway_session_id),
		    updated_at = $4
		WHERE id = $1
	`, id, string(status), gatewaySessionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for payment update: %w", err)
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
