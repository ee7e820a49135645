package models

import (
	"time"

	"github.com/google/uuid"

	"registro/internal/backends"
	dErrors "registro/pkg/domain-errors"
)

// DefaultMaxRetries bounds automatic re-attempts per failed registration.
const DefaultMaxRetries = 3

// FailedRegistration records one order item whose registration failed after
// payment, together with the contact bundle needed to re-attempt it.
//
// Invariants:
//   - at most one record exists per order item
//   - RetryCount never exceeds MaxRetries
//   - resolved and abandoned are terminal and immutable
type FailedRegistration struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	OrderItemID  uuid.UUID
	Domain       string
	Reason       string
	RetryCount   int
	MaxRetries   int
	Status       Status
	RegistrantID string
	AdminID      string
	TechID       string
	BillingID    string
	// NextAttemptAt is when the scheduler may try again. Meaningless once
	// the status is terminal.
	NextAttemptAt time.Time
	ResolvedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusRetrying  Status = "retrying"
	StatusResolved  Status = "resolved"
	StatusAbandoned Status = "abandoned"
)

func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusAbandoned
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRetrying, StatusResolved, StatusAbandoned:
		return true
	}
	return false
}

func New(orderID, itemID uuid.UUID, domain, reason string, contacts backends.ContactIDs, delay time.Duration, now time.Time) *FailedRegistration {
	return &FailedRegistration{
		ID:            uuid.New(),
		OrderID:       orderID,
		OrderItemID:   itemID,
		Domain:        domain,
		Reason:        reason,
		MaxRetries:    DefaultMaxRetries,
		Status:        StatusPending,
		RegistrantID:  contacts.Registrant,
		AdminID:       contacts.Admin,
		TechID:        contacts.Tech,
		BillingID:     contacts.Billing,
		NextAttemptAt: now.Add(delay),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Contacts rebuilds the stored contact-role bundle for resubmission.
func (f *FailedRegistration) Contacts() backends.ContactIDs {
	return backends.ContactIDs{
		Registrant: f.RegistrantID,
		Admin:      f.AdminID,
		Tech:       f.TechID,
		Billing:    f.BillingID,
	}
}

func (f *FailedRegistration) guardTerminal() error {
	if f.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"failed registration %s is already %s", f.ID, f.Status)
	}
	return nil
}

// ApplySuccess resolves the record after a successful re-attempt or manual
// operator resolution.
func (f *FailedRegistration) ApplySuccess(now time.Time) error {
	if err := f.guardTerminal(); err != nil {
		return err
	}
	f.Status = StatusResolved
	f.ResolvedAt = &now
	f.UpdatedAt = now
	return nil
}

// ApplyFailure accounts one more failed attempt. Below the retry cap the
// record goes back to retrying with the next attempt scheduled after the
// fixed delay; at the cap it is abandoned.
func (f *FailedRegistration) ApplyFailure(reason string, delay time.Duration, now time.Time) error {
	if err := f.guardTerminal(); err != nil {
		return err
	}
	f.Reason = reason
	f.UpdatedAt = now
	if f.RetryCount < f.MaxRetries {
		f.RetryCount++
	}
	if f.RetryCount >= f.MaxRetries {
		f.Status = StatusAbandoned
		f.ResolvedAt = &now
		return nil
	}
	f.Status = StatusRetrying
	f.NextAttemptAt = now.Add(delay)
	return nil
}

// ApplyAbandon terminates the record without further attempts, for manual
// operator abandonment.
func (f *FailedRegistration) ApplyAbandon(now time.Time) error {
	if err := f.guardTerminal(); err != nil {
		return err
	}
	f.Status = StatusAbandoned
	f.ResolvedAt = &now
	f.UpdatedAt = now
	return nil
}
