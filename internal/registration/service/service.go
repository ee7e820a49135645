// Package service orchestrates domain registration across both backends.
//
// Every public operation returns a structured Result instead of an error:
// backend refusals, transport faults and even panics inside an adapter are
// converted to Success=false so a caller working through a multi-domain
// order can keep going. The failure recorder and retry scheduler sit on top
// of this contract.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"registro/internal/backends"
	"registro/internal/events"
	ordermodels "registro/internal/order/models"
	"registro/internal/registration/metrics"
	"registro/internal/registration/models"
	"registro/internal/routing"
	pstrings "registro/pkg/platform/strings"
)

// DomainStore persists the local view of registered domains.
type DomainStore interface {
	Create(ctx context.Context, d *models.Domain) error
	GetByName(ctx context.Context, name string) (*models.Domain, error)
	UpdateExpiry(ctx context.Context, name, expiry string, now time.Time) error
	SetLock(ctx context.Context, name string, locked bool, now time.Time) error
	UpdateNameservers(ctx context.Context, name string, nameservers []string, now time.Time) error
	UpdateContacts(ctx context.Context, name string, registrant, admin, tech, billing string, now time.Time) error
}

// OrderStore is the slice of the order store ProcessOrder needs.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*ordermodels.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]ordermodels.Item, error)
	UpdateItemStatus(ctx context.Context, item *ordermodels.Item) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status ordermodels.Status) error
}

// FailureRecorder opens a failed-registration record for a paid order item.
// Implemented by the retry service; nil disables recording.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, orderID, itemID uuid.UUID, domain, reason string, contacts backends.ContactIDs) error
}

type Service struct {
	router   *routing.Router
	domains  DomainStore
	orders   OrderStore
	recorder FailureRecorder
	cache    AvailabilityCache
	pricing  PriceList
	suffixes []string
	events   events.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(pub events.Publisher) Option {
	return func(s *Service) {
		if pub != nil {
			s.events = pub
		}
	}
}

func WithOrders(store OrderStore) Option {
	return func(s *Service) { s.orders = store }
}

func WithRecorder(rec FailureRecorder) Option {
	return func(s *Service) { s.recorder = rec }
}

// SetRecorder wires the failure recorder after construction. The recorder
// depends on this service for re-attempts, so one side has to be attached
// late.
func (s *Service) SetRecorder(rec FailureRecorder) { s.recorder = rec }

func WithCache(cache AvailabilityCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithPricing(pricing PriceList) Option {
	return func(s *Service) { s.pricing = pricing }
}

// WithSearchSuffixes sets the suffix fan-out for SearchDomains. Entries are
// normalized and deduped; at most maxSearchSuffixes are used.
func WithSearchSuffixes(suffixes []string) Option {
	return func(s *Service) { s.suffixes = pstrings.NormalizeSuffixes(suffixes) }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(router *routing.Router, domains DomainStore, opts ...Option) (*Service, error) {
	if router == nil {
		return nil, fmt.Errorf("registration service requires a router")
	}
	if domains == nil {
		return nil, fmt.Errorf("registration service requires a domain store")
	}
	s := &Service{
		router:  router,
		domains: domains,
		events:  events.NopPublisher{},
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterDomain registers one domain with the backend that owns its suffix.
// All four contact roles must be present.
func (s *Service) RegisterDomain(ctx context.Context, domain string, contacts backends.ContactIDs, years int) (result models.Result) {
	backend := s.router.SelectBackend(domain)
	defer s.recoverToFailure(ctx, "register", domain, &result)

	if !contacts.Complete() {
		s.metrics.ObserveOperation("register", backend.Provider(), "rejected")
		return failure(domain, "all four contact roles (registrant, admin, technical, billing) are required")
	}
	if years < 1 {
		s.metrics.ObserveOperation("register", backend.Provider(), "rejected")
		return failure(domain, "registration period must be at least one year")
	}

	res, err := backend.Register(ctx, backends.RegisterRequest{
		Domain:   domain,
		Years:    years,
		Contacts: contacts,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "registration failed",
			"domain", domain,
			"provider", backend.Provider(),
			"error", err.Error(),
		)
		s.metrics.ObserveOperation("register", backend.Provider(), "failure")
		return failure(domain, failureMessage(err))
	}

	now := s.clock()
	record := &models.Domain{
		ID:           uuid.New(),
		Name:         domain,
		Years:        years,
		Status:       models.DomainActive,
		Provider:     backend.Provider(),
		ExpiryDate:   res.ExpiryDate,
		RegistrantID: contacts.Registrant,
		AdminID:      contacts.Admin,
		TechID:       contacts.Tech,
		BillingID:    contacts.Billing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.domains.Create(ctx, record); err != nil {
		// The backend registration succeeded; a store failure must not turn
		// the outcome into a retryable registration failure.
		s.logger.ErrorContext(ctx, "domain registered but local record failed",
			"domain", domain,
			"error", err.Error(),
		)
	}

	s.logger.InfoContext(ctx, "domain registered",
		"domain", domain,
		"provider", backend.Provider(),
		"expiry", res.ExpiryDate,
	)
	s.metrics.ObserveOperation("register", backend.Provider(), "success")
	return models.Result{
		Success:    true,
		Domain:     domain,
		Message:    "domain registered",
		ExpiryDate: res.ExpiryDate,
	}
}

// RenewDomain extends a registration. The stored expiry string is passed to
// the backend byte-identical; when no local record exists the backend's Info
// supplies it.
func (s *Service) RenewDomain(ctx context.Context, domain string, years int) (result models.Result) {
	backend := s.router.SelectBackend(domain)
	defer s.recoverToFailure(ctx, "renew", domain, &result)

	if years < 1 {
		return failure(domain, "renewal period must be at least one year")
	}

	currentExpiry := ""
	if record, err := s.domains.GetByName(ctx, domain); err == nil {
		currentExpiry = record.ExpiryDate
	}
	if currentExpiry == "" {
		info, err := backend.Info(ctx, domain)
		if err != nil {
			s.metrics.ObserveOperation("renew", backend.Provider(), "failure")
			return failure(domain, failureMessage(err))
		}
		currentExpiry = info.ExpiryDate
	}

	res, err := backend.Renew(ctx, backends.RenewRequest{
		Domain:        domain,
		Years:         years,
		CurrentExpiry: currentExpiry,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "renewal failed",
			"domain", domain,
			"provider", backend.Provider(),
			"error", err.Error(),
		)
		s.metrics.ObserveOperation("renew", backend.Provider(), "failure")
		return failure(domain, failureMessage(err))
	}

	if err := s.domains.UpdateExpiry(ctx, domain, res.NewExpiryDate, s.clock()); err != nil {
		s.logger.WarnContext(ctx, "renewed but local expiry not updated",
			"domain", domain, "error", err.Error())
	}

	s.metrics.ObserveOperation("renew", backend.Provider(), "success")
	return models.Result{
		Success:    true,
		Domain:     domain,
		Message:    "domain renewed",
		ExpiryDate: res.NewExpiryDate,
	}
}

// TransferDomain pulls a domain in from another registrar.
func (s *Service) TransferDomain(ctx context.Context, domain, authCode string, years int, contacts backends.ContactIDs) (result models.Result) {
	backend := s.router.SelectBackend(domain)
	defer s.recoverToFailure(ctx, "transfer", domain, &result)

	if authCode == "" {
		return failure(domain, "transfer authorization code is required")
	}

	err := backend.Transfer(ctx, backends.TransferRequest{
		Domain:   domain,
		AuthCode: authCode,
		Years:    years,
		Contacts: contacts,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "transfer failed",
			"domain", domain,
			"provider", backend.Provider(),
			"error", err.Error(),
		)
		s.metrics.ObserveOperation("transfer", backend.Provider(), "failure")
		return failure(domain, failureMessage(err))
	}

	s.metrics.ObserveOperation("transfer", backend.Provider(), "success")
	return models.Result{Success: true, Domain: domain, Message: "transfer requested"}
}

// UpdateNameservers replaces the delegation set for a domain.
func (s *Service) UpdateNameservers(ctx context.Context, domain string, nameservers []string) (result models.Result) {
	backend := s.router.SelectBackend(domain)
	defer s.recoverToFailure(ctx, "update_nameservers", domain, &result)

	if len(nameservers) == 0 {
		return failure(domain, "at least one nameserver is required")
	}

	if err := backend.UpdateNameservers(ctx, domain, nameservers); err != nil {
		s.metrics.ObserveOperation("update_nameservers", backend.Provider(), "failure")
		return failure(domain, failureMessage(err))
	}
	if err := s.domains.UpdateNameservers(ctx, domain, nameservers, s.clock()); err != nil {
		s.logger.WarnContext(ctx, "nameservers updated but local record stale",
			"domain", domain, "error", err.Error())
	}

	s.metrics.ObserveOperation("update_nameservers", backend.Provider(), "success")
	return models.Result{
		Success:     true,
		Domain:      domain,
		Message:     "nameservers updated",
		Nameservers: nameservers,
	}
}

// SetDomainLock enables or disables the transfer lock.
func (s *Service) SetDomainLock(ctx context.Context, domain string, locked bool) (result models.Result) {
	backend := s.router.SelectBackend(domain)
	defer s.recoverToFailure(ctx, "set_lock", domain, &result)

	if err := backend.SetLock(ctx, domain, locked); err != nil {
		s.metrics.ObserveOperation("set_lock", backend.Provider(), "failure")
		return failure(domain, failureMessage(err))
	}
	if err := s.domains.SetLock(ctx, domain, locked, s.clock()); err != nil {
		s.logger.WarnContext(ctx, "lock changed but local record stale",
			"domain", domain, "error", err.Error())
	}

	message := "domain unlocked"
	if locked {
		message = "domain locked"
	}
	s.metrics.ObserveOperation("set_lock", backend.Provider(), "success")
	return models.Result{Success: true, Domain: domain, Message: message}
}

// UpdateDomainContacts reassigns the contact roles on a domain.
func (s *Service) UpdateDomainContacts(ctx context.Context, domain string, contacts backends.ContactIDs) (result models.Result) {
	backend := s.router.SelectBackend(domain)
	defer s.recoverToFailure(ctx, "update_contacts", domain, &result)

	if !contacts.Complete() {
		return failure(domain, "all four contact roles (registrant, admin, technical, billing) are required")
	}

	if err := backend.UpdateContacts(ctx, domain, contacts); err != nil {
		s.metrics.ObserveOperation("update_contacts", backend.Provider(), "failure")
		return failure(domain, failureMessage(err))
	}
	if err := s.domains.UpdateContacts(ctx, domain,
		contacts.Registrant, contacts.Admin, contacts.Tech, contacts.Billing,
		s.clock()); err != nil {
		s.logger.WarnContext(ctx, "contacts updated but local record stale",
			"domain", domain, "error", err.Error())
	}

	s.metrics.ObserveOperation("update_contacts", backend.Provider(), "success")
	return models.Result{Success: true, Domain: domain, Message: "contacts updated"}
}

// CheckDomainAvailable asks the owning backend whether a single domain can
// still be registered. The retry scheduler uses this as a guard before
// resubmitting, in case a prior attempt succeeded upstream but its response
// was lost.
func (s *Service) CheckDomainAvailable(ctx context.Context, domain string) (bool, error) {
	backend := s.router.SelectBackend(domain)
	verdicts, err := backend.CheckAvailability(ctx, []string{domain})
	if err != nil {
		return false, err
	}
	for _, v := range verdicts {
		if v.Domain == domain {
			return v.Available, nil
		}
	}
	return false, fmt.Errorf("no availability verdict for %s", domain)
}

// ProcessOrder registers every pending line item of an order, sequentially
// to respect the single-session constraint, then reconciles the aggregate
// status. Failures on a paid order open a failed-registration record; the
// order's payment fields are never written.
func (s *Service) ProcessOrder(ctx context.Context, orderID uuid.UUID) error {
	if s.orders == nil {
		return fmt.Errorf("order store not configured")
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	for i := range items {
		item := &items[i]
		if item.Status != ordermodels.ItemPending {
			continue
		}
		contacts := backends.ContactIDs{
			Registrant: item.RegistrantID,
			Admin:      item.AdminID,
			Tech:       item.TechID,
			Billing:    item.BillingID,
		}
		res := s.RegisterDomain(ctx, item.Domain, contacts, item.Years)
		if res.Success {
			s.markItem(ctx, item, ordermodels.ItemRegistered)
			continue
		}

		s.markItem(ctx, item, ordermodels.ItemFailed)
		if order.PaymentStatus == ordermodels.PaymentPaid {
			s.recordFailure(ctx, order.ID, item, res.Message, contacts)
		}
		s.publish(ctx, events.Event{
			Type:        events.TypeRegistrationFailed,
			Domain:      item.Domain,
			OrderID:     order.ID.String(),
			OrderItemID: item.ID.String(),
			Reason:      res.Message,
			OccurredAt:  s.clock(),
		})
	}

	return s.ReconcileOrder(ctx, orderID)
}

// ReconcileOrder recomputes the order aggregate status from its items.
func (s *Service) ReconcileOrder(ctx context.Context, orderID uuid.UUID) error {
	if s.orders == nil {
		return fmt.Errorf("order store not configured")
	}
	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	status := ordermodels.Reconcile(items)
	if err := s.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	s.logger.InfoContext(ctx, "order reconciled", "order_id", orderID, "status", string(status))
	return nil
}

func (s *Service) markItem(ctx context.Context, item *ordermodels.Item, status ordermodels.ItemStatus) {
	if err := item.MarkItem(status, s.clock()); err != nil {
		s.logger.WarnContext(ctx, "item transition refused",
			"order_item_id", item.ID, "error", err.Error())
		return
	}
	if err := s.orders.UpdateItemStatus(ctx, item); err != nil {
		s.logger.ErrorContext(ctx, "item status not persisted",
			"order_item_id", item.ID, "error", err.Error())
	}
}

func (s *Service) recordFailure(ctx context.Context, orderID uuid.UUID, item *ordermodels.Item, reason string, contacts backends.ContactIDs) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordFailure(ctx, orderID, item.ID, item.Domain, reason, contacts); err != nil {
		s.logger.ErrorContext(ctx, "failed registration not recorded",
			"domain", item.Domain, "error", err.Error())
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "ops event not published",
			"type", event.Type, "domain", event.Domain, "error", err.Error())
	}
}

// recoverToFailure converts a panic inside an adapter into a structured
// failure result so no order batch dies mid-way.
func (s *Service) recoverToFailure(ctx context.Context, operation, domain string, result *models.Result) {
	r := recover()
	if r == nil {
		return
	}
	s.logger.ErrorContext(ctx, "backend panicked",
		"operation", operation,
		"domain", domain,
		"panic", fmt.Sprint(r),
	)
	*result = failure(domain, fmt.Sprintf("internal failure during %s", operation))
}

func failure(domain, message string) models.Result {
	return models.Result{Success: false, Domain: domain, Message: message}
}

// failureMessage renders a backend error for operators. Semantic refusals
// keep the backend's own wording; faults get a stable prefix.
func failureMessage(err error) string {
	var se *backends.SemanticError
	if errors.As(err, &se) {
		return se.Message
	}
	return fmt.Sprintf("backend failure: %v", err)
}
