package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registro/internal/order/models"
	"registro/pkg/platform/sentinel"
)

// Postgres persists orders and order items.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CreateOrder(ctx context.Context, order *models.Order, items []models.Item) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, status, payment_status, total_amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, order.ID, order.Status, order.PaymentStatus, order.TotalAmount, order.Currency, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, domain, years, registrant_id, admin_id, tech_id,
				billing_id, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, item.ID, item.OrderID, item.Domain, item.Years, item.RegistrantID,
			item.AdminID, item.TechID, item.BillingID, item.Status,
			item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.Domain, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}
	return nil
}

func (p *Postgres) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, status, payment_status, total_amount, currency, created_at, updated_at
		FROM orders WHERE id = $1
	`, id)
	var o models.Order
	err := row.Scan(&o.ID, &o.Status, &o.PaymentStatus, &o.TotalAmount, &o.Currency, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

func (p *Postgres) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.Item, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, order_id, domain, years, registrant_id, admin_id, tech_id,
		       billing_id, status, created_at, updated_at
		FROM order_items WHERE order_id = $1 ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Domain, &it.Years,
			&it.RegistrantID, &it.AdminID, &it.TechID, &it.BillingID,
			&it.Status, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (p *Postgres) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, order_id, domain, years, registrant_id, admin_id, tech_id,
		       billing_id, status, created_at, updated_at
		FROM order_items WHERE id = $1
	`, id)
	var it models.Item
	err := row.Scan(&it.ID, &it.OrderID, &it.Domain, &it.Years,
		&it.RegistrantID, &it.AdminID, &it.TechID, &it.BillingID,
		&it.Status, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order item: %w", err)
	}
	return &it, nil
}

func (p *Postgres) UpdateItemStatus(ctx context.Context, item *models.Item) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE order_items SET status = $2, updated_at = $3 WHERE id = $1
	`, item.ID, item.Status, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order item: %w", err)
	}
	return checkAffected(res)
}

// UpdateOrderStatus writes only the aggregate status column; the payment
// columns are never part of this statement.
func (p *Postgres) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
