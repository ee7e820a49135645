package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registro/internal/contact/models"
	"registro/pkg/platform/sentinel"
)

// Postgres persists contact rows.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Create(ctx context.Context, c *models.Contact) error {
	query := `
		INSERT INTO contacts (
			id, first_name, last_name, organization, street, city, province,
			postal_code, country_code, phone, email, external_id, provider,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := p.db.ExecContext(ctx, query,
		c.ID, c.FirstName, c.LastName, c.Organization, c.Street, c.City,
		c.Province, c.PostalCode, c.CountryCode, c.Phone, c.Email,
		c.ExternalID, c.Provider, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (p *Postgres) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	query := `
		SELECT id, first_name, last_name, organization, street, city, province,
		       postal_code, country_code, phone, email, external_id, provider,
		       created_at, updated_at
		FROM contacts WHERE id = $1
	`
	return p.scanOne(p.db.QueryRowContext(ctx, query, id))
}

func (p *Postgres) FindByEmailAndProvider(ctx context.Context, email, provider string) (*models.Contact, error) {
	query := `
		SELECT id, first_name, last_name, organization, street, city, province,
		       postal_code, country_code, phone, email, external_id, provider,
		       created_at, updated_at
		FROM contacts
		WHERE lower(email) = lower($1) AND provider = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return p.scanOne(p.db.QueryRowContext(ctx, query, email, provider))
}

func (p *Postgres) scanOne(row *sql.Row) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Organization, &c.Street, &c.City,
		&c.Province, &c.PostalCode, &c.CountryCode, &c.Phone, &c.Email,
		&c.ExternalID, &c.Provider, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	return &c, nil
}
