// Package service provisions contacts in one or both registration backends.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"registro/internal/backends"
	"registro/internal/contact/models"
	dErrors "registro/pkg/domain-errors"
)

// Store persists local contact rows.
type Store interface {
	Create(ctx context.Context, contact *models.Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	FindByEmailAndProvider(ctx context.Context, email, provider string) (*models.Contact, error)
}

// DualResult is the outcome of dual-backend provisioning. On a second-leg
// failure EPP is still set: the registry contact was created and stays
// usable, it is deliberately not rolled back.
type DualResult struct {
	EPP       *models.Contact
	Registrar *models.Contact
}

type Service struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "contact store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateForBackend validates and normalizes the input, creates the contact
// in the given backend, and persists the local row with the backend's
// external identifier.
func (s *Service) CreateForBackend(ctx context.Context, input models.Input, backend backends.Backend) (*models.Contact, error) {
	data, err := s.prepare(input)
	if err != nil {
		return nil, err
	}

	externalID, err := backend.CreateContact(ctx, data)
	if err != nil {
		s.logger.WarnContext(ctx, "backend contact creation failed",
			"provider", backend.Provider(),
			"email", input.Email,
			"error", err.Error(),
		)
		return nil, err
	}

	contact := s.newContact(data, externalID, backend.Provider())
	if err := s.store.Create(ctx, contact); err != nil {
		// The backend contact exists; losing the local row is recoverable
		// but must be visible to operators.
		s.logger.ErrorContext(ctx, "backend contact created but local persist failed",
			"provider", backend.Provider(),
			"external_id", externalID,
			"error", err.Error(),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist contact")
	}

	s.logger.InfoContext(ctx, "contact provisioned",
		"provider", backend.Provider(),
		"external_id", externalID,
	)
	return contact, nil
}

// CreateDual provisions the contact in both backends, registry first. If the
// registry leg fails the registrar leg is never attempted and the failure
// propagates. If the registrar leg fails, the registry contact is not rolled
// back: a single-provider contact remains valid for future use.
func (s *Service) CreateDual(ctx context.Context, input models.Input, registry, registrar backends.Backend) (*DualResult, error) {
	eppContact, err := s.CreateForBackend(ctx, input, registry)
	if err != nil {
		return nil, err
	}

	registrarContact, err := s.CreateForBackend(ctx, input, registrar)
	if err != nil {
		s.logger.WarnContext(ctx, "registrar leg of dual contact failed, registry contact kept",
			"registry_external_id", deref(eppContact.ExternalID),
			"error", err.Error(),
		)
		return &DualResult{EPP: eppContact}, err
	}

	return &DualResult{EPP: eppContact, Registrar: registrarContact}, nil
}

// GetByID loads a local contact row.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	return s.store.GetByID(ctx, id)
}

// FindReusable looks for an existing contact for this email already
// provisioned in the given backend.
func (s *Service) FindReusable(ctx context.Context, email, provider string) (*models.Contact, error) {
	return s.store.FindByEmailAndProvider(ctx, email, provider)
}

// prepare runs validation and phone normalization; nothing touches the
// network until it passes.
func (s *Service) prepare(input models.Input) (backends.ContactData, error) {
	if err := Validate(input); err != nil {
		return backends.ContactData{}, err
	}
	phone, err := NormalizePhone(input.Phone, input.CountryCode)
	if err != nil {
		return backends.ContactData{}, err
	}
	return backends.ContactData{
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Organization: strings.TrimSpace(input.Organization),
		Street:       strings.TrimSpace(input.Street),
		City:         strings.TrimSpace(input.City),
		Province:     strings.TrimSpace(input.Province),
		PostalCode:   strings.TrimSpace(input.PostalCode),
		CountryCode:  strings.ToUpper(strings.TrimSpace(input.CountryCode)),
		Phone:        phone,
		Email:        strings.TrimSpace(input.Email),
	}, nil
}

func (s *Service) newContact(data backends.ContactData, externalID, provider string) *models.Contact {
	now := s.clock()
	return &models.Contact{
		ID:           uuid.New(),
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		Organization: data.Organization,
		Street:       data.Street,
		City:         data.City,
		Province:     data.Province,
		PostalCode:   data.PostalCode,
		CountryCode:  data.CountryCode,
		Phone:        data.Phone,
		Email:        data.Email,
		ExternalID:   &externalID,
		Provider:     provider,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
