package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registro/internal/retry/models"
	"registro/pkg/platform/sentinel"
)

const columns = `
	id, order_id, order_item_id, domain, reason, retry_count, max_retries,
	status, registrant_id, admin_id, tech_id, billing_id, next_attempt_at,
	resolved_at, created_at, updated_at
`

// Postgres persists failed-registration records. A unique index on
// order_item_id enforces the one-record-per-item rule at the database level.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Create(ctx context.Context, f *models.FailedRegistration) error {
	query := `
		INSERT INTO failed_domain_registrations (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := p.db.ExecContext(ctx, query,
		f.ID, f.OrderID, f.OrderItemID, f.Domain, f.Reason, f.RetryCount,
		f.MaxRetries, f.Status, f.RegistrantID, f.AdminID, f.TechID,
		f.BillingID, f.NextAttemptAt, f.ResolvedAt, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert failed registration: %w", err)
	}
	return nil
}

func (p *Postgres) GetByID(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM failed_domain_registrations WHERE id = $1`, id)
	return scanOne(row)
}

func (p *Postgres) GetByOrderItem(ctx context.Context, itemID uuid.UUID) (*models.FailedRegistration, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM failed_domain_registrations WHERE order_item_id = $1`, itemID)
	return scanOne(row)
}

func (p *Postgres) Update(ctx context.Context, f *models.FailedRegistration) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE failed_domain_registrations
		SET reason = $2, retry_count = $3, status = $4, next_attempt_at = $5,
		    resolved_at = $6, updated_at = $7
		WHERE id = $1
	`, f.ID, f.Reason, f.RetryCount, f.Status, f.NextAttemptAt, f.ResolvedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update failed registration: %w", err)
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

func (p *Postgres) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.FailedRegistration, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+columns+` FROM failed_domain_registrations
		WHERE status = $1 ORDER BY created_at LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed registrations: %w", err)
	}
	return scanAll(rows)
}

func (p *Postgres) ListDue(ctx context.Context, now time.Time, limit int) ([]models.FailedRegistration, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+columns+` FROM failed_domain_registrations
		WHERE status IN ($1, $2) AND next_attempt_at <= $3
		ORDER BY next_attempt_at LIMIT $4
	`, models.StatusPending, models.StatusRetrying, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due registrations: %w", err)
	}
	return scanAll(rows)
}

func scanOne(row *sql.Row) (*models.FailedRegistration, error) {
	var f models.FailedRegistration
	err := row.Scan(
		&f.ID, &f.OrderID, &f.OrderItemID, &f.Domain, &f.Reason, &f.RetryCount,
		&f.MaxRetries, &f.Status, &f.RegistrantID, &f.AdminID, &f.TechID,
		&f.BillingID, &f.NextAttemptAt, &f.ResolvedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan failed registration: %w", err)
	}
	return &f, nil
}

func scanAll(rows *sql.Rows) ([]models.FailedRegistration, error) {
	defer rows.Close()
	var out []models.FailedRegistration
	for rows.Next() {
		var f models.FailedRegistration
		if err := rows.Scan(
			&f.ID, &f.OrderID, &f.OrderItemID, &f.Domain, &f.Reason, &f.RetryCount,
			&f.MaxRetries, &f.Status, &f.RegistrantID, &f.AdminID, &f.TechID,
			&f.BillingID, &f.NextAttemptAt, &f.ResolvedAt, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan failed registration: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
