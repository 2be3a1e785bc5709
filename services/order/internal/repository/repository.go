package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopstream/services/order/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders
			(id, customer_id, status, currency, cancel_reason,
			 ship_street, ship_city, ship_state, ship_postal_code, ship_country,
			 bill_street, bill_city, bill_state, bill_postal_code, bill_country,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, o.ID, o.CustomerID, o.Status, o.Currency, o.CancelReason,
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.PostalCode, o.ShippingAddress.Country,
		o.BillingAddress.Street, o.BillingAddress.City, o.BillingAddress.State,
		o.BillingAddress.PostalCode, o.BillingAddress.Country,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, sku, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, o.ID, it.ProductID, it.ProductName, it.SKU, it.Quantity, it.UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.get(ctx, nil, id, false)
}

// GetForUpdate locks the order row for the duration of the caller's
// transaction.
func (r *OrderRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.get(ctx, tx, id, true)
}

func (r *OrderRepository) get(ctx context.Context, tx *sql.Tx, id uuid.UUID, forUpdate bool) (*domain.Order, error) {
	query := `
		SELECT id, customer_id, status, currency, cancel_reason,
		       ship_street, ship_city, ship_state, ship_postal_code, ship_country,
		       bill_street, bill_city, bill_state, bill_postal_code, bill_country,
		       created_at, updated_at
		FROM orders
		WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, id)
	} else {
		row = r.db.QueryRowContext(ctx, query, id)
	}

	var (
		oid, customerID        uuid.UUID
		status                 domain.OrderStatus
		currency, cancelReason string
		ship, bill             domain.Address
		createdAt, updatedAt   time.Time
	)
	err := row.Scan(&oid, &customerID, &status, &currency, &cancelReason,
		&ship.Street, &ship.City, &ship.State, &ship.PostalCode, &ship.Country,
		&bill.Street, &bill.City, &bill.State, &bill.PostalCode, &bill.Country,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := r.items(ctx, tx, oid)
	if err != nil {
		return nil, err
	}

	return domain.ReconstructOrder(oid, customerID, status, items, ship, bill,
		currency, cancelReason, createdAt, updatedAt), nil
}

func (r *OrderRepository) items(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `
		SELECT product_id, product_name, sku, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name`

	var (
		rows *sql.Rows
		err  error
	)
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, orderID)
	} else {
		rows, err = r.db.QueryContext(ctx, query, orderID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var price decimal.Decimal
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.SKU, &it.Quantity, &price); err != nil {
			return nil, err
		}
		it.UnitPrice = price
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, cancel_reason = $3, updated_at = $4
		WHERE id = $1
	`, o.ID, o.Status, o.CancelReason, o.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
