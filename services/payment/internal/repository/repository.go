package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopstream/services/payment/internal/domain"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Insert(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments
			(id, order_id, customer_id, amount, currency, method, status,
			 transaction_id, failure_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, p.ID, p.OrderID, p.CustomerID, p.Amount, p.Currency, p.Method, p.Status,
		p.TransactionID, p.FailureReason, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PaymentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, amount, currency, method, status,
		       transaction_id, failure_reason, created_at, updated_at
		FROM payments
		WHERE id = $1
	`, id))
}

// GetForUpdate locks the payment row for the duration of the caller's
// transaction.
func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payment, error) {
	return r.scanOne(tx.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, amount, currency, method, status,
		       transaction_id, failure_reason, created_at, updated_at
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, transaction_id = $3, failure_reason = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.Status, p.TransactionID, p.FailureReason, p.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// GetByOrder returns the latest payment attempt for an order.
func (r *PaymentRepository) GetByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, amount, currency, method, status,
		       transaction_id, failure_reason, created_at, updated_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID))
}

func (r *PaymentRepository) scanOne(row *sql.Row) (*domain.Payment, error) {
	var (
		id, orderID, customerID      uuid.UUID
		amount                       decimal.Decimal
		currency                     string
		method                       domain.PaymentMethod
		status                       domain.PaymentStatus
		transactionID, failureReason string
		createdAt, updatedAt         time.Time
	)
	err := row.Scan(&id, &orderID, &customerID, &amount, &currency, &method, &status,
		&transactionID, &failureReason, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.ReconstructPayment(id, orderID, customerID, amount, currency,
		method, status, transactionID, failureReason, createdAt, updatedAt), nil
}
