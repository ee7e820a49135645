package models

// Result is the structured outcome every orchestrator operation returns.
// The orchestrator never lets an error cross its boundary: failures, whether
// backend refusals or transport faults, come back as Success=false with an
// operator-readable message, so batch callers keep going.
type Result struct {
	Success bool   `json:"success"`
	Domain  string `json:"domain,omitempty"`
	Message string `json:"message,omitempty"`
	// ExpiryDate is present on successful register/renew, verbatim from the
	// backend.
	ExpiryDate  string   `json:"expiry_date,omitempty"`
	Nameservers []string `json:"nameservers,omitempty"`
}

// SearchResult is one suffix variant of a searched name, annotated with
// pricing so storefronts can render a purchase list directly.
type SearchResult struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Premium   bool   `json:"premium,omitempty"`
	// Price is minor units per registration year; zero when unpriced.
	Price    int64  `json:"price"`
	Currency string `json:"currency,omitempty"`
}
