// Package registrar adapts the international registrar's stateless HTTP API
// to the backend contract. Calls are independent signed queries; unlike the
// registry session there is no connection state, so the client is safe for
// concurrent use.
package registrar

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"registro/internal/backends"
	"registro/internal/platform/config"
	"registro/pkg/platform/circuit"
)

type Client struct {
	cfg     config.RegistrarConfig
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient overrides the HTTP client, used by tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(cfg config.RegistrarConfig, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.New("registrar"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Provider() string { return backends.ProviderRegistrar }

// Health reports whether the registrar is reachable. The breaker opens after
// consecutive transport failures; calls are still attempted so a recovered
// registrar closes it again, but health probes report degraded meanwhile.
func (c *Client) Health() error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("registrar circuit open")
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "registrar circuit opened")
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "registrar circuit closed")
	}
}

// call builds the signed query, executes it, and normalizes the failure
// taxonomy: transport faults, empty bodies, malformed bodies, and the API's
// explicit error envelope all come back as typed errors. The API key is
// part of the query and never logged.
func (c *Client) call(ctx context.Context, command string, params url.Values) (*apiResponse, error) {
	query := url.Values{}
	query.Set("ApiUser", c.cfg.APIUser)
	query.Set("ApiKey", c.cfg.APIKey)
	query.Set("UserName", c.cfg.Username)
	query.Set("ClientIp", c.cfg.ClientIP)
	query.Set("Command", command)
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &TransportError{Op: command, Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "registrar call failed", "command", command, "error", err.Error())
		c.recordFailure(ctx)
		return nil, &TransportError{Op: command, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(ctx)
		return nil, &TransportError{Op: command, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "registrar returned non-200", "command", command, "status", resp.StatusCode)
		c.recordFailure(ctx)
		return nil, &TransportError{Op: command, Cause: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		c.recordFailure(ctx)
		return nil, ErrEmptyResponse
	}

	var envelope apiResponse
	if err := xml.Unmarshal(body, &envelope); err != nil {
		c.logger.WarnContext(ctx, "registrar response malformed", "command", command, "error", err.Error())
		c.recordFailure(ctx)
		return nil, fmt.Errorf("malformed registrar response for %s: %w", command, err)
	}

	// An explicit API error envelope still proves the registrar is reachable.
	c.recordSuccess(ctx)

	if !strings.EqualFold(envelope.Status, "OK") {
		messages := make([]string, 0, len(envelope.Errors.Errors))
		for _, e := range envelope.Errors.Errors {
			messages = append(messages, strings.TrimSpace(e.Text))
		}
		if len(messages) == 0 {
			messages = append(messages, "unspecified registrar error")
		}
		c.logger.WarnContext(ctx, "registrar api error",
			"command", command,
			"errors", strings.Join(messages, "; "),
		)
		return nil, &APIError{Messages: messages}
	}

	return &envelope, nil
}

func (c *Client) CheckAvailability(ctx context.Context, domains []string) ([]backends.Availability, error) {
	params := url.Values{"DomainList": {strings.Join(domains, ",")}}
	envelope, err := c.call(ctx, "namecheap.domains.check", params)
	if err != nil {
		return nil, err
	}

	verdicts := make(map[string]backends.Availability, len(domains))
	for _, r := range envelope.CommandResponse.DomainCheckResults {
		verdicts[strings.ToLower(r.Domain)] = backends.Availability{
			Domain:    r.Domain,
			Available: r.Available,
			Reason:    r.Description,
			Premium:   r.IsPremiumName,
		}
	}

	out := make([]backends.Availability, len(domains))
	for i, d := range domains {
		if v, ok := verdicts[strings.ToLower(d)]; ok {
			v.Domain = d
			out[i] = v
			continue
		}
		out[i] = backends.Availability{Domain: d, Available: false, Reason: "No verdict from registrar"}
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, req backends.RegisterRequest) (*backends.RegisterResult, error) {
	params := url.Values{
		"DomainName":          {req.Domain},
		"Years":               {strconv.Itoa(req.Years)},
		"RegistrantContactId": {req.Contacts.Registrant},
		"AdminContactId":      {req.Contacts.Admin},
		"TechContactId":       {req.Contacts.Tech},
		"AuxBillingContactId": {req.Contacts.Billing},
	}
	if len(req.Nameservers) > 0 {
		params.Set("Nameservers", strings.Join(req.Nameservers, ","))
	}

	envelope, err := c.call(ctx, "namecheap.domains.create", params)
	if err != nil {
		return nil, err
	}

	result := envelope.CommandResponse.DomainCreateResult
	if result == nil || !result.Registered {
		return nil, &backends.SemanticError{
			Provider: backends.ProviderRegistrar,
			Message:  semanticMessage(result.descriptionOrNil(), "registration refused"),
		}
	}
	return &backends.RegisterResult{Domain: req.Domain, ExpiryDate: result.ExpiredDate}, nil
}

func (c *Client) Renew(ctx context.Context, req backends.RenewRequest) (*backends.RenewResult, error) {
	params := url.Values{
		"DomainName": {req.Domain},
		"Years":      {strconv.Itoa(req.Years)},
	}
	envelope, err := c.call(ctx, "namecheap.domains.renew", params)
	if err != nil {
		return nil, err
	}

	result := envelope.CommandResponse.DomainRenewResult
	if result == nil || !result.Renew {
		return nil, &backends.SemanticError{
			Provider: backends.ProviderRegistrar,
			Message:  semanticMessage(result.renewDescriptionOrNil(), "renewal refused"),
		}
	}
	return &backends.RenewResult{Domain: req.Domain, NewExpiryDate: result.ExpiredDate}, nil
}

func (c *Client) Transfer(ctx context.Context, req backends.TransferRequest) error {
	params := url.Values{
		"DomainName": {req.Domain},
		"EPPCode":    {req.AuthCode},
	}
	if req.Years > 0 {
		params.Set("Years", strconv.Itoa(req.Years))
	}
	envelope, err := c.call(ctx, "namecheap.domains.transfer.create", params)
	if err != nil {
		return err
	}

	result := envelope.CommandResponse.DomainTransferResult
	if result == nil || !result.Transfer {
		msg := "transfer refused"
		if result != nil && result.Description != "" {
			msg = result.Description
		}
		return &backends.SemanticError{Provider: backends.ProviderRegistrar, Message: msg}
	}
	return nil
}

func (c *Client) Info(ctx context.Context, domain string) (*backends.DomainInfo, error) {
	envelope, err := c.call(ctx, "namecheap.domains.getinfo", url.Values{"DomainName": {domain}})
	if err != nil {
		return nil, err
	}

	result := envelope.CommandResponse.DomainGetInfoResult
	if result == nil {
		return nil, &backends.SemanticError{Provider: backends.ProviderRegistrar, Message: "domain not found"}
	}
	return &backends.DomainInfo{
		Domain:      domain,
		ExpiryDate:  result.ExpiredDate,
		Nameservers: result.Nameservers,
		Locked:      result.Locked,
	}, nil
}

func (c *Client) UpdateNameservers(ctx context.Context, domain string, nameservers []string) error {
	params := url.Values{
		"DomainName":  {domain},
		"Nameservers": {strings.Join(nameservers, ",")},
	}
	return c.setCall(ctx, "namecheap.domains.dns.setCustom", params, "nameserver update refused")
}

func (c *Client) SetLock(ctx context.Context, domain string, locked bool) error {
	action := "LOCK"
	if !locked {
		action = "UNLOCK"
	}
	params := url.Values{
		"DomainName": {domain},
		"LockAction": {action},
	}
	return c.setCall(ctx, "namecheap.domains.setregistrarlock", params, "lock change refused")
}

func (c *Client) UpdateContacts(ctx context.Context, domain string, contacts backends.ContactIDs) error {
	params := url.Values{
		"DomainName":          {domain},
		"RegistrantContactId": {contacts.Registrant},
		"AdminContactId":      {contacts.Admin},
		"TechContactId":       {contacts.Tech},
		"AuxBillingContactId": {contacts.Billing},
	}
	return c.setCall(ctx, "namecheap.domains.setcontacts", params, "contact update refused")
}

func (c *Client) setCall(ctx context.Context, command string, params url.Values, refusal string) error {
	envelope, err := c.call(ctx, command, params)
	if err != nil {
		return err
	}
	result := envelope.CommandResponse.DomainSetResult
	if result == nil || !result.IsSuccess {
		msg := refusal
		if result != nil && result.Description != "" {
			msg = result.Description
		}
		return &backends.SemanticError{Provider: backends.ProviderRegistrar, Message: msg}
	}
	return nil
}

func (c *Client) CreateContact(ctx context.Context, data backends.ContactData) (string, error) {
	params := url.Values{
		"FirstName":     {data.FirstName},
		"LastName":      {data.LastName},
		"Address1":      {data.Street},
		"City":          {data.City},
		"StateProvince": {data.Province},
		"PostalCode":    {data.PostalCode},
		"Country":       {data.CountryCode},
		"Phone":         {data.Phone},
		"EmailAddress":  {data.Email},
	}
	if data.Organization != "" {
		params.Set("OrganizationName", data.Organization)
	}

	envelope, err := c.call(ctx, "namecheap.contacts.create", params)
	if err != nil {
		return "", err
	}

	result := envelope.CommandResponse.ContactCreateResult
	if result == nil || !result.IsSuccess || result.ContactID == "" {
		msg := "contact creation refused"
		if result != nil && result.Description != "" {
			msg = result.Description
		}
		return "", &backends.SemanticError{Provider: backends.ProviderRegistrar, Message: msg}
	}
	return result.ContactID, nil
}

func semanticMessage(desc, fallback string) string {
	if desc != "" {
		return desc
	}
	return fallback
}

// Nil-tolerant description accessors keep the refusal paths short.
func (r *domainCreateResult) descriptionOrNil() string {
	if r == nil {
		return ""
	}
	return r.Description
}

func (r *domainRenewResult) renewDescriptionOrNil() string {
	if r == nil {
		return ""
	}
	return r.Description
}
