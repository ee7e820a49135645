package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain is the locally persisted record of a registration. It mirrors what
// the backend told us, it is not authoritative; Info against the backend is.
type Domain struct {
	ID     uuid.UUID
	Name   string
	Years  int
	Status DomainStatus
	// Provider is which backend registered the name.
	Provider string
	// ExpiryDate is the backend's expiry string stored verbatim. Renewal
	// echoes it byte-identical; it is never parsed into a time.Time.
	ExpiryDate   string
	Locked       bool
	Nameservers  []string
	RegistrantID string
	AdminID      string
	TechID       string
	BillingID    string
	OrderItemID  *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DomainStatus string

const (
	DomainActive         DomainStatus = "active"
	DomainTransferredOut DomainStatus = "transferred_out"
)
