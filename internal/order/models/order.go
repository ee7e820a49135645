package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "registro/pkg/domain-errors"
)

// Order is the purchase aggregate this core reads and reconciles. It is
// created elsewhere (checkout); registration only moves Status forward as
// line items succeed, fail, or are abandoned.
//
// Invariants:
//   - PaymentStatus and TotalAmount are never written by this core; a
//     registration failure must not revert a paid order to unpaid
//   - Status is recomputed only from the line items' outcomes
type Order struct {
	ID            uuid.UUID
	Status        Status
	PaymentStatus PaymentStatus
	// TotalAmount is minor units of the order currency.
	TotalAmount int64
	Currency    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item is one domain line on an order, with the contact-role ids the
// registration will use.
type Item struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	Domain       string
	Years        int
	RegistrantID string
	AdminID      string
	TechID       string
	BillingID    string
	Status       ItemStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Status string

const (
	StatusProcessing         Status = "processing"
	StatusCompleted          Status = "completed"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusRequiresAttention  Status = "requires_attention"
	StatusFailed             Status = "failed"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// ItemStatus tracks a single line item's registration outcome. A failed item
// may still have a retry in flight; abandoned means retries are exhausted or
// an operator gave up.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemRegistered ItemStatus = "registered"
	ItemFailed     ItemStatus = "failed"
	ItemAbandoned  ItemStatus = "abandoned"
)

func (s ItemStatus) IsTerminal() bool {
	return s == ItemRegistered || s == ItemAbandoned
}

// MarkItem validates and applies an item status transition. Terminal item
// statuses are immutable.
func (i *Item) MarkItem(status ItemStatus, now time.Time) error {
	if i.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"order item %s is already %s", i.ID, i.Status)
	}
	i.Status = status
	i.UpdatedAt = now
	return nil
}

// Reconcile derives the order aggregate status from its items' outcomes:
//
//   - every item registered: completed
//   - any item abandoned: requires_attention (unless nothing succeeded and
//     everything was abandoned, which is a plain failure)
//   - successes mixed with failures that still have retries in flight:
//     partially_completed
//   - otherwise work is still outstanding: processing
func Reconcile(items []Item) Status {
	var registered, failed, abandoned int
	for _, item := range items {
		switch item.Status {
		case ItemRegistered:
			registered++
		case ItemFailed:
			failed++
		case ItemAbandoned:
			abandoned++
		}
	}

	switch {
	case len(items) == 0:
		return StatusProcessing
	case registered == len(items):
		return StatusCompleted
	case abandoned == len(items):
		return StatusFailed
	case abandoned > 0:
		return StatusRequiresAttention
	case registered > 0 && failed > 0:
		return StatusPartiallyCompleted
	default:
		return StatusProcessing
	}
}

// ContactBundle reports whether all four contact roles are present on the
// item. Registration refuses to start without the full bundle.
func (i *Item) ContactBundle() bool {
	return i.RegistrantID != "" && i.AdminID != "" && i.TechID != "" && i.BillingID != ""
}
