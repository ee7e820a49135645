// Package backends defines the contract both registration backends implement:
// the stateful registry protocol session for the local ccTLD family and the
// stateless HTTP registrar for internationally resold domains.
//
// Adapters surface expected business failures (domain taken, transfer
// rejected) inside result values; errors are reserved for transport and
// protocol faults. The orchestrator converts both into structured outcomes.
package backends

import "context"

// Provider tags identify which backend created an external resource.
const (
	ProviderEPP       = "epp"
	ProviderRegistrar = "registrar"
)

// ContactIDs bundles the four contact roles every domain operation requires.
type ContactIDs struct {
	Registrant string
	Admin      string
	Tech       string
	Billing    string
}

// Complete reports whether all four roles are present.
func (c ContactIDs) Complete() bool {
	return c.Registrant != "" && c.Admin != "" && c.Tech != "" && c.Billing != ""
}

// ContactData is the raw contact bundle adapters turn into a backend contact.
type ContactData struct {
	FirstName    string
	LastName     string
	Organization string
	Street       string
	City         string
	Province     string
	PostalCode   string
	// CountryCode is the 2-letter ISO code; validated before any network call.
	CountryCode string
	// Phone is already normalized to +CC.NNN form by contact provisioning.
	Phone string
	Email string
}

// Availability is one domain's availability verdict.
type Availability struct {
	Domain    string
	Available bool
	// Reason explains unavailability ("Domain taken", "Service temporarily
	// unavailable", ...). Empty when available.
	Reason  string
	Premium bool
}

// RegisterRequest asks a backend to register a domain.
type RegisterRequest struct {
	Domain      string
	Years       int
	Contacts    ContactIDs
	Nameservers []string
}

// RegisterResult is a backend's answer to a registration attempt.
type RegisterResult struct {
	Domain string
	// ExpiryDate is the backend's expiry string, kept verbatim. It is echoed
	// byte-identical on renewal, never reparsed.
	ExpiryDate string
}

// RenewRequest extends a registration. CurrentExpiry must be the exact expiry
// string previously returned by the backend.
type RenewRequest struct {
	Domain        string
	Years         int
	CurrentExpiry string
}

// RenewResult carries the new expiry string, again verbatim.
type RenewResult struct {
	Domain        string
	NewExpiryDate string
}

// TransferRequest pulls a domain in from another registrar.
type TransferRequest struct {
	Domain   string
	AuthCode string
	Years    int
	Contacts ContactIDs
}

// DomainInfo is the backend's current view of a registered domain.
type DomainInfo struct {
	Domain      string
	ExpiryDate  string
	Nameservers []string
	Locked      bool
	Statuses    []string
}

// Backend is the operation surface the orchestrator needs from either side.
type Backend interface {
	Provider() string

	CheckAvailability(ctx context.Context, domains []string) ([]Availability, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	Renew(ctx context.Context, req RenewRequest) (*RenewResult, error)
	Transfer(ctx context.Context, req TransferRequest) error
	Info(ctx context.Context, domain string) (*DomainInfo, error)
	UpdateNameservers(ctx context.Context, domain string, nameservers []string) error
	SetLock(ctx context.Context, domain string, locked bool) error
	UpdateContacts(ctx context.Context, domain string, contacts ContactIDs) error
	CreateContact(ctx context.Context, data ContactData) (string, error)
}
