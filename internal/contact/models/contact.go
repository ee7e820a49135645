package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is one backend's view of a person. The same logical person may
// have two rows, one per backend, linked only by shared input data; each row
// has its own lifecycle and is never reconciled against the other.
type Contact struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Organization string
	Street       string
	City         string
	Province     string
	PostalCode   string
	CountryCode  string
	// Phone is stored normalized (+CC.NNN).
	Phone string
	Email string
	// ExternalID is the backend-assigned identifier. Nil means the contact
	// exists locally only.
	ExternalID *string
	// Provider tags which backend the external id belongs to.
	Provider  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Input is the raw contact bundle as submitted, before validation and phone
// normalization.
type Input struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Organization string `json:"organization,omitempty"`
	Street       string `json:"street"`
	City         string `json:"city"`
	Province     string `json:"province"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}
