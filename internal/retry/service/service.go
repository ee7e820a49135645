// Package service drives the failed-registration state machine: it records
// failures on paid orders, re-attempts them on a fixed delay until the retry
// cap, and reconciles the parent order after every terminal transition.
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
	regmodels "registro/internal/registration/models"
	"registro/internal/retry/metrics"
	"registro/internal/retry/models"
	dErrors "registro/pkg/domain-errors"
	"registro/pkg/platform/sentinel"
)

// DefaultAttemptDelay is the fixed pause between attempts. The observed
// policy is a constant delay, not exponential backoff.
const DefaultAttemptDelay = 5 * time.Minute

const dueBatchSize = 20

// Store persists failed-registration records.
type Store interface {
	Create(ctx context.Context, f *models.FailedRegistration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error)
	GetByOrderItem(ctx context.Context, itemID uuid.UUID) (*models.FailedRegistration, error)
	Update(ctx context.Context, f *models.FailedRegistration) error
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.FailedRegistration, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.FailedRegistration, error)
}

// Orchestrator is the slice of the registration service retries need.
type Orchestrator interface {
	RegisterDomain(ctx context.Context, domain string, contacts backends.ContactIDs, years int) regmodels.Result
	CheckDomainAvailable(ctx context.Context, domain string) (bool, error)
	ReconcileOrder(ctx context.Context, orderID uuid.UUID) error
}

// OrderItems lets terminal transitions update the affected line item.
type OrderItems interface {
	GetItem(ctx context.Context, id uuid.UUID) (*ordermodels.Item, error)
	UpdateItemStatus(ctx context.Context, item *ordermodels.Item) error
}

type Service struct {
	store      Store
	orch       Orchestrator
	items      OrderItems
	delay      time.Duration
	maxRetries int
	events     events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	clock      func() time.Time
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

func WithOrderItems(items OrderItems) Option {
	return func(s *Service) { s.items = items }
}

// WithAttemptDelay overrides the fixed inter-attempt delay.
func WithAttemptDelay(delay time.Duration) Option {
	return func(s *Service) {
		if delay > 0 {
			s.delay = delay
		}
	}
}

// WithMaxRetries overrides the retry cap stamped on new records. Existing
// records keep the cap they were created with.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(store Store, orch Orchestrator, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("retry service requires a store")
	}
	if orch == nil {
		return nil, fmt.Errorf("retry service requires an orchestrator")
	}
	s := &Service{
		store:      store,
		orch:       orch,
		delay:      DefaultAttemptDelay,
		maxRetries: models.DefaultMaxRetries,
		events:     events.NopPublisher{},
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordFailure opens a record for a failed order item and schedules the
// first re-attempt. A second failure for the same item never creates a
// second record.
func (s *Service) RecordFailure(ctx context.Context, orderID, itemID uuid.UUID, domain, reason string, contacts backends.ContactIDs) error {
	if existing, err := s.store.GetByOrderItem(ctx, itemID); err == nil {
		s.logger.InfoContext(ctx, "failure already recorded for order item",
			"order_item_id", itemID,
			"record_id", existing.ID,
			"status", string(existing.Status),
		)
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("check existing record: %w", err)
	}

	now := s.clock()
	record := models.New(orderID, itemID, domain, reason, contacts, s.delay, now)
	record.MaxRetries = s.maxRetries
	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race with a concurrent recorder; the one record rule holds.
			return nil
		}
		return fmt.Errorf("create failed registration: %w", err)
	}

	s.logger.WarnContext(ctx, "registration failure recorded",
		"domain", domain,
		"order_id", orderID,
		"next_attempt_at", record.NextAttemptAt,
	)
	s.publish(ctx, events.Event{
		Type:        events.TypeRetryScheduled,
		Domain:      domain,
		OrderID:     orderID.String(),
		OrderItemID: itemID.String(),
		Reason:      reason,
		RetryCount:  record.RetryCount,
		OccurredAt:  now,
	})
	return nil
}

// RunDue attempts every record whose scheduled time has passed. Errors on
// individual records are logged, not returned, so one bad record cannot
// stall the queue.
func (s *Service) RunDue(ctx context.Context) error {
	due, err := s.store.ListDue(ctx, s.clock(), dueBatchSize)
	if err != nil {
		return fmt.Errorf("list due retries: %w", err)
	}
	for _, record := range due {
		if err := s.Attempt(ctx, record.ID); err != nil {
			s.logger.ErrorContext(ctx, "retry attempt errored",
				"record_id", record.ID,
				"domain", record.Domain,
				"error", err.Error(),
			)
		}
	}
	return nil
}

// Attempt re-runs one failed registration. The record's status is re-read
// immediately before acting so an out-of-band resolve or abandon makes this
// a no-op. An availability re-check guards against resubmitting a domain
// whose earlier attempt succeeded upstream with a lost response.
func (s *Service) Attempt(ctx context.Context, id uuid.UUID) error {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	if record.Status.IsTerminal() {
		return nil
	}

	available, err := s.orch.CheckDomainAvailable(ctx, record.Domain)
	if err != nil {
		s.metrics.ObserveAttempt("check_failed")
		return s.applyFailure(ctx, record, fmt.Sprintf("availability re-check failed: %v", err))
	}
	if !available {
		// Never resubmit while the registry reports the name taken: the
		// earlier attempt may have gone through. Operators decide once the
		// record is abandoned.
		s.metrics.ObserveAttempt("guard_blocked")
		return s.applyFailure(ctx, record,
			"availability re-check reports domain unavailable; a prior attempt may have succeeded upstream")
	}

	years := 1
	if s.items != nil {
		if item, err := s.items.GetItem(ctx, record.OrderItemID); err == nil && item.Years > 0 {
			years = item.Years
		}
	}

	result := s.orch.RegisterDomain(ctx, record.Domain, record.Contacts(), years)
	if !result.Success {
		s.metrics.ObserveAttempt("failure")
		return s.applyFailure(ctx, record, result.Message)
	}
	s.metrics.ObserveAttempt("success")
	return s.applySuccess(ctx, record)
}

// Resolve closes a record manually, marking the order item registered. Used
// when an operator completed the registration out-of-band.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.loadError(id, err)
	}
	if err := s.applySuccess(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Abandon terminates a record manually without further attempts.
func (s *Service) Abandon(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.loadError(id, err)
	}
	if err := record.ApplyAbandon(s.clock()); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("persist abandonment: %w", err)
	}
	s.finishAbandoned(ctx, record)
	return record, nil
}

// RetryNow bypasses the schedule and attempts the record immediately. The
// terminal-status guard in Attempt still applies.
func (s *Service) RetryNow(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.loadError(id, err)
	}
	if record.Status.IsTerminal() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"failed registration %s is already %s", record.ID, record.Status)
	}
	if err := s.Attempt(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.loadError(id, err)
	}
	return record, nil
}

func (s *Service) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.FailedRegistration, error) {
	if !status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", status)
	}
	return s.store.ListByStatus(ctx, status, limit)
}

func (s *Service) applySuccess(ctx context.Context, record *models.FailedRegistration) error {
	now := s.clock()
	if err := record.ApplySuccess(now); err != nil {
		return err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return fmt.Errorf("persist resolution: %w", err)
	}
	s.metrics.IncRecovered()
	s.markItem(ctx, record.OrderItemID, ordermodels.ItemRegistered)
	s.reconcile(ctx, record.OrderID)
	s.logger.InfoContext(ctx, "failed registration recovered",
		"domain", record.Domain,
		"retry_count", record.RetryCount,
	)
	s.publish(ctx, events.Event{
		Type:        events.TypeRegistrationRecovered,
		Domain:      record.Domain,
		OrderID:     record.OrderID.String(),
		OrderItemID: record.OrderItemID.String(),
		RetryCount:  record.RetryCount,
		OccurredAt:  now,
	})
	return nil
}

func (s *Service) applyFailure(ctx context.Context, record *models.FailedRegistration, reason string) error {
	now := s.clock()
	if err := record.ApplyFailure(reason, s.delay, now); err != nil {
		return err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return fmt.Errorf("persist failed attempt: %w", err)
	}

	if record.Status == models.StatusAbandoned {
		s.finishAbandoned(ctx, record)
		return nil
	}

	s.logger.WarnContext(ctx, "retry attempt failed",
		"domain", record.Domain,
		"retry_count", record.RetryCount,
		"next_attempt_at", record.NextAttemptAt,
		"reason", reason,
	)
	s.publish(ctx, events.Event{
		Type:        events.TypeRetryScheduled,
		Domain:      record.Domain,
		OrderID:     record.OrderID.String(),
		OrderItemID: record.OrderItemID.String(),
		Reason:      reason,
		RetryCount:  record.RetryCount,
		OccurredAt:  now,
	})
	return nil
}

func (s *Service) finishAbandoned(ctx context.Context, record *models.FailedRegistration) {
	s.metrics.IncAbandoned()
	s.markItem(ctx, record.OrderItemID, ordermodels.ItemAbandoned)
	s.reconcile(ctx, record.OrderID)
	s.logger.ErrorContext(ctx, "registration abandoned",
		"domain", record.Domain,
		"order_id", record.OrderID,
		"retry_count", record.RetryCount,
		"reason", record.Reason,
	)
	s.publish(ctx, events.Event{
		Type:        events.TypeRegistrationAbandoned,
		Domain:      record.Domain,
		OrderID:     record.OrderID.String(),
		OrderItemID: record.OrderItemID.String(),
		Reason:      record.Reason,
		RetryCount:  record.RetryCount,
		OccurredAt:  s.clock(),
	})
}

func (s *Service) markItem(ctx context.Context, itemID uuid.UUID, status ordermodels.ItemStatus) {
	if s.items == nil {
		return
	}
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		s.logger.WarnContext(ctx, "order item not found for terminal record",
			"order_item_id", itemID, "error", err.Error())
		return
	}
	if err := item.MarkItem(status, s.clock()); err != nil {
		s.logger.WarnContext(ctx, "item transition refused",
			"order_item_id", itemID, "error", err.Error())
		return
	}
	if err := s.items.UpdateItemStatus(ctx, item); err != nil {
		s.logger.ErrorContext(ctx, "item status not persisted",
			"order_item_id", itemID, "error", err.Error())
	}
}

func (s *Service) reconcile(ctx context.Context, orderID uuid.UUID) {
	if err := s.orch.ReconcileOrder(ctx, orderID); err != nil {
		s.logger.ErrorContext(ctx, "order not reconciled",
			"order_id", orderID, "error", err.Error())
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "ops event not published",
			"type", event.Type, "domain", event.Domain, "error", err.Error())
	}
}

func (s *Service) loadError(id uuid.UUID, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "failed registration %s not found", id)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "load failed registration")
}
