package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"registro/internal/registration/models"
	"registro/pkg/platform/sentinel"
)

// Postgres persists domain records.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Create(ctx context.Context, d *models.Domain) error {
	query := `
		INSERT INTO domains (
			id, name, years, status, provider, expiry_date, locked, nameservers,
			registrant_id, admin_id, tech_id, billing_id, order_item_id,
			created_at, updated_at
		) VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := p.db.ExecContext(ctx, query,
		d.ID, d.Name, d.Years, d.Status, d.Provider, d.ExpiryDate, d.Locked,
		pq.Array(d.Nameservers), d.RegistrantID, d.AdminID, d.TechID,
		d.BillingID, d.OrderItemID, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert domain: %w", err)
	}
	return nil
}

func (p *Postgres) GetByName(ctx context.Context, name string) (*models.Domain, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, years, status, provider, expiry_date, locked, nameservers,
		       registrant_id, admin_id, tech_id, billing_id, order_item_id,
		       created_at, updated_at
		FROM domains WHERE name = lower($1)
	`, name)
	var d models.Domain
	err := row.Scan(&d.ID, &d.Name, &d.Years, &d.Status, &d.Provider,
		&d.ExpiryDate, &d.Locked, pq.Array(&d.Nameservers), &d.RegistrantID,
		&d.AdminID, &d.TechID, &d.BillingID, &d.OrderItemID,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan domain: %w", err)
	}
	return &d, nil
}

func (p *Postgres) UpdateExpiry(ctx context.Context, name, expiry string, now time.Time) error {
	return p.exec(ctx, `UPDATE domains SET expiry_date = $2, updated_at = $3 WHERE name = lower($1)`,
		name, expiry, now)
}

func (p *Postgres) SetLock(ctx context.Context, name string, locked bool, now time.Time) error {
	return p.exec(ctx, `UPDATE domains SET locked = $2, updated_at = $3 WHERE name = lower($1)`,
		name, locked, now)
}

func (p *Postgres) UpdateNameservers(ctx context.Context, name string, nameservers []string, now time.Time) error {
	return p.exec(ctx, `UPDATE domains SET nameservers = $2, updated_at = $3 WHERE name = lower($1)`,
		name, pq.Array(nameservers), now)
}

func (p *Postgres) UpdateContacts(ctx context.Context, name string, registrant, admin, tech, billing string, now time.Time) error {
	return p.exec(ctx, `
		UPDATE domains
		SET registrant_id = $2, admin_id = $3, tech_id = $4, billing_id = $5, updated_at = $6
		WHERE name = lower($1)
	`, name, registrant, admin, tech, billing, now)
}

func (p *Postgres) exec(ctx context.Context, query string, args ...any) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update domain: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
