// Package epp owns the single logical connection to the registry protocol
// endpoint for the local ccTLD family.
package epp

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"registro/internal/backends"
	"registro/internal/epp/extract"
	"registro/internal/epp/metrics"
	"registro/internal/platform/config"
)

// Batch policy for availability checks. Batches bound request size; a batch
// that fails both attempts is reported unavailable rather than aborting the
// whole search.
const (
	checkBatchSize     = 5
	checkBatchAttempts = 2

	reasonUnavailable = "Service temporarily unavailable"
)

// DialFunc opens the transport connection. Injectable for tests.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Session is the mutex-guarded handle on one registry connection. It is an
// owned resource: all commands for one service instance funnel through it,
// serialized by the internal lock. Any failed command invalidates the
// connection, forcing a reconnect before the next command.
type Session struct {
	cfg     config.EPPConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	dial    DialFunc
	sleep   func(context.Context, time.Duration) error

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	greeting  []byte
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithDialer overrides the TLS dialer, used by tests to wire a fake registry.
func WithDialer(dial DialFunc) Option {
	return func(s *Session) { s.dial = dial }
}

// NewSession builds a session; no connection is made until Connect or the
// first command.
func NewSession(cfg config.EPPConfig, opts ...Option) *Session {
	s := &Session{
		cfg:    cfg,
		logger: slog.Default(),
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	s.dial = func(ctx context.Context) (net.Conn, error) {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: cfg.Timeout}}
		return dialer.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, cfg.Port))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Provider() string { return backends.ProviderEPP }

// Connect establishes the connection and logs in, making up to MaxRetries
// attempts with a fixed delay between them. On success it returns the
// registry's greeting payload; on exhaustion it fails with
// ConnectionExhaustedError carrying the last underlying error.
func (s *Session) Connect(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connectLocked(ctx); err != nil {
		return nil, err
	}
	return s.greeting, nil
}

func (s *Session) connectLocked(ctx context.Context) error {
	attempts := s.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		s.metrics.IncConnectAttempts()
		if err := s.connectOnceLocked(ctx); err != nil {
			last = err
			s.logger.WarnContext(ctx, "registry connection attempt failed",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err.Error(),
			)
			if attempt < attempts {
				if serr := s.sleep(ctx, s.cfg.RetryDelay); serr != nil {
					last = serr
					break
				}
			}
			continue
		}
		return nil
	}
	return &ConnectionExhaustedError{Attempts: attempts, Last: last}
}

func (s *Session) connectOnceLocked(ctx context.Context) error {
	s.closeConnLocked()

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial registry: %w", err)
	}
	s.conn = conn

	greeting, err := s.readFrameLocked()
	if err != nil {
		s.closeConnLocked()
		return fmt.Errorf("read greeting: %w", err)
	}
	s.greeting = greeting

	loginReq, err := loginFrame(s.cfg.Username, s.cfg.Password)
	if err != nil {
		s.closeConnLocked()
		return err
	}
	resp, err := s.roundTripLocked(loginReq)
	if err != nil {
		s.closeConnLocked()
		return fmt.Errorf("login: %w", err)
	}
	if !resp.success() {
		s.closeConnLocked()
		return fmt.Errorf("login refused: %s (code %d)", resp.message, resp.code)
	}

	s.connected = true
	s.logger.InfoContext(ctx, "registry session established", "host", s.cfg.Host)
	return nil
}

// EnsureConnection connects if needed, then issues a liveness probe (a
// harmless availability check against a throwaway domain) and validates the
// reply is well-formed. A failed probe marks the session disconnected and
// fails with ConnectionUnhealthyError.
func (s *Session) EnsureConnection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(ctx)
}

func (s *Session) ensureLocked(ctx context.Context) error {
	if !s.connected {
		if err := s.connectLocked(ctx); err != nil {
			return err
		}
	}

	probe, err := checkFrame([]string{s.cfg.ProbeDomain})
	if err != nil {
		return err
	}
	if _, err := s.executeLocked(ctx, "probe", probe); err != nil {
		return &ConnectionUnhealthyError{Reason: "liveness probe failed", Cause: err}
	}
	return nil
}

// executeLocked sends one command frame and classifies the reply. Any
// transport fault, malformed reply, or non-success result code marks the
// session disconnected so the next command reconnects, and surfaces as
// CommandError with the registry's message and code when available.
func (s *Session) executeLocked(ctx context.Context, name string, frame []byte) (*response, error) {
	if !s.connected || s.conn == nil {
		s.metrics.ObserveCommand(name, "not_connected")
		return nil, &CommandError{Message: "session not connected"}
	}

	resp, err := s.roundTripLocked(frame)
	if err != nil {
		s.invalidateLocked(ctx, name, err.Error())
		s.metrics.ObserveCommand(name, "transport_error")
		return nil, &CommandError{Message: "transport failure", Cause: err}
	}
	if !resp.success() {
		s.invalidateLocked(ctx, name, resp.message)
		s.metrics.ObserveCommand(name, "refused")
		return resp, &CommandError{Code: resp.code, Message: resp.message}
	}

	s.metrics.ObserveCommand(name, "ok")
	return resp, nil
}

func (s *Session) invalidateLocked(ctx context.Context, command, reason string) {
	s.closeConnLocked()
	s.logger.WarnContext(ctx, "registry command failed, session invalidated",
		"command", command,
		"reason", reason,
	)
}

func (s *Session) roundTripLocked(frame []byte) (*response, error) {
	if err := s.writeFrameLocked(frame); err != nil {
		return nil, err
	}
	raw, err := s.readFrameLocked()
	if err != nil {
		return nil, err
	}
	return parseResponse(raw, s.logger)
}

// writeFrameLocked sends one length-prefixed frame (4-byte big-endian total
// length including the header, per the protocol's TCP transport).
func (s *Session) writeFrameLocked(frame []byte) error {
	if err := s.conn.SetDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(frame)+4))
	if _, err := s.conn.Write(header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Session) readFrameLocked() ([]byte, error) {
	if err := s.conn.SetDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	header := make([]byte, 4)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	total := binary.BigEndian.Uint32(header)
	if total < 4 || total > 1<<20 {
		return nil, fmt.Errorf("implausible frame length %d", total)
	}
	payload := make([]byte, total-4)
	if _, err := io.ReadFull(s.conn, payload); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return payload, nil
}

func (s *Session) closeConnLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}

// Close logs out best-effort and tears the connection down.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	if s.connected {
		if frame, err := logoutFrame(); err == nil {
			_, _ = s.roundTripLocked(frame)
		}
	}
	s.closeConnLocked()
	s.logger.InfoContext(ctx, "registry session closed")
	return nil
}

// CheckAvailability checks domains in fixed-size batches. Each batch gets up
// to two attempts (reconnecting between them); if both fail, every domain in
// that batch is reported unavailable with a service-unavailable reason so the
// rest of the search can proceed.
func (s *Session) CheckAvailability(ctx context.Context, domains []string) ([]backends.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}

	results := make([]backends.Availability, 0, len(domains))
	for start := 0; start < len(domains); start += checkBatchSize {
		end := min(start+checkBatchSize, len(domains))
		batch := domains[start:end]
		results = append(results, s.checkBatchLocked(ctx, batch)...)
	}
	return results, nil
}

func (s *Session) checkBatchLocked(ctx context.Context, batch []string) []backends.Availability {
	for attempt := 1; attempt <= checkBatchAttempts; attempt++ {
		if !s.connected {
			if err := s.connectLocked(ctx); err != nil {
				continue
			}
			s.metrics.IncReconnects()
		}

		frame, err := checkFrame(batch)
		if err != nil {
			break
		}
		resp, err := s.executeLocked(ctx, "check", frame)
		if err != nil {
			s.logger.WarnContext(ctx, "availability batch failed",
				"attempt", attempt,
				"domains", len(batch),
				"error", err.Error(),
			)
			continue
		}
		return parseCheckData(resp, batch)
	}

	// Final-attempt failure: report the whole batch unavailable instead of
	// aborting the search.
	out := make([]backends.Availability, len(batch))
	for i, d := range batch {
		out[i] = backends.Availability{Domain: d, Available: false, Reason: reasonUnavailable}
	}
	return out
}

// parseCheckData reads the per-domain verdicts out of a check reply,
// tolerating both single- and multi-item shapes. Domains the reply omits
// are reported unavailable.
func parseCheckData(resp *response, batch []string) []backends.Availability {
	verdicts := make(map[string]backends.Availability, len(batch))
	resp.dec.Each("response/resData/chkData/cd", func(cd *extract.Decoder) {
		name := cd.String(fieldCheckName)
		if name == "" {
			return
		}
		verdicts[name] = backends.Availability{
			Domain:    name,
			Available: cd.Bool(fieldCheckAvail),
			Reason:    cd.String(fieldCheckReason),
		}
	})

	out := make([]backends.Availability, len(batch))
	for i, domain := range batch {
		if v, ok := verdicts[domain]; ok {
			out[i] = v
			continue
		}
		out[i] = backends.Availability{Domain: domain, Available: false, Reason: "No verdict from registry"}
	}
	return out
}

// Register creates the domain. Business refusals (domain exists, bad
// contacts) surface as SemanticError; session faults as CommandError.
func (s *Session) Register(ctx context.Context, req backends.RegisterRequest) (*backends.RegisterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	frame, err := domainCreateFrame(req)
	if err != nil {
		return nil, err
	}
	resp, err := s.executeLocked(ctx, "domain_create", frame)
	if err != nil {
		return nil, semanticOr(resp, err)
	}
	return &backends.RegisterResult{
		Domain:     req.Domain,
		ExpiryDate: resp.dec.String(fieldCreateExpiry),
	}, nil
}

// Renew extends the registration. req.CurrentExpiry is echoed byte-identical
// into the frame; see domainRenewFrame.
func (s *Session) Renew(ctx context.Context, req backends.RenewRequest) (*backends.RenewResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	frame, err := domainRenewFrame(req)
	if err != nil {
		return nil, err
	}
	resp, err := s.executeLocked(ctx, "domain_renew", frame)
	if err != nil {
		return nil, semanticOr(resp, err)
	}
	newExpiry := resp.dec.String(fieldRenewExpiry)
	if newExpiry == "" {
		// Some servers omit the new expiry; fall back to what we sent so the
		// caller still has a value to store.
		newExpiry = req.CurrentExpiry
	}
	return &backends.RenewResult{Domain: req.Domain, NewExpiryDate: newExpiry}, nil
}

func (s *Session) Transfer(ctx context.Context, req backends.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return err
	}
	frame, err := domainTransferFrame(req)
	if err != nil {
		return err
	}
	resp, err := s.executeLocked(ctx, "domain_transfer", frame)
	if err != nil {
		return semanticOr(resp, err)
	}
	return nil
}

func (s *Session) Info(ctx context.Context, domain string) (*backends.DomainInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked(ctx, domain)
}

func (s *Session) infoLocked(ctx context.Context, domain string) (*backends.DomainInfo, error) {
	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	frame, err := domainInfoFrame(domain)
	if err != nil {
		return nil, err
	}
	resp, err := s.executeLocked(ctx, "domain_info", frame)
	if err != nil {
		return nil, semanticOr(resp, err)
	}

	di := &backends.DomainInfo{
		Domain:     domain,
		ExpiryDate: resp.dec.String(fieldInfoExpiry),
	}
	resp.dec.Each("response/resData/infData/ns/hostObj", func(host *extract.Decoder) {
		if v := host.String(extract.Field{Name: "hostObj", Paths: []string{""}}); v != "" {
			di.Nameservers = append(di.Nameservers, v)
		}
	})
	resp.dec.Each("response/resData/infData/status", func(st *extract.Decoder) {
		if v := st.String(extract.Field{Name: "status", Paths: []string{"@s"}}); v != "" {
			di.Statuses = append(di.Statuses, v)
			if v == "clientTransferProhibited" {
				di.Locked = true
			}
		}
	})
	return di, nil
}

// UpdateNameservers diffs against the registry's current view and issues a
// single add/rem update.
func (s *Session) UpdateNameservers(ctx context.Context, domain string, nameservers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.infoLocked(ctx, domain)
	if err != nil {
		return err
	}
	add, remove := diffStrings(nameservers, current.Nameservers)
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	frame, err := domainUpdateNSFrame(domain, add, remove)
	if err != nil {
		return err
	}
	resp, err := s.executeLocked(ctx, "domain_update_ns", frame)
	if err != nil {
		return semanticOr(resp, err)
	}
	return nil
}

func (s *Session) SetLock(ctx context.Context, domain string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return err
	}
	frame, err := domainUpdateLockFrame(domain, locked)
	if err != nil {
		return err
	}
	resp, err := s.executeLocked(ctx, "domain_update_lock", frame)
	if err != nil {
		return semanticOr(resp, err)
	}
	return nil
}

func (s *Session) UpdateContacts(ctx context.Context, domain string, contacts backends.ContactIDs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return err
	}
	add := []domainContact{
		{Type: "admin", ID: contacts.Admin},
		{Type: "tech", ID: contacts.Tech},
		{Type: "billing", ID: contacts.Billing},
	}
	frame, err := domainUpdateContactsFrame(domain, add, nil, contacts.Registrant)
	if err != nil {
		return err
	}
	resp, err := s.executeLocked(ctx, "domain_update_contacts", frame)
	if err != nil {
		return semanticOr(resp, err)
	}
	return nil
}

// CreateContact provisions a registry contact and returns its identifier.
func (s *Session) CreateContact(ctx context.Context, data backends.ContactData) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return "", err
	}

	id := newContactID()
	frame, err := contactCreateFrame(id, data)
	if err != nil {
		return "", err
	}
	resp, err := s.executeLocked(ctx, "contact_create", frame)
	if err != nil {
		return "", semanticOr(resp, err)
	}
	if created := resp.dec.String(fieldContactID); created != "" {
		return created, nil
	}
	return id, nil
}

// semanticOr converts a well-formed business refusal into SemanticError and
// leaves session faults as-is.
func semanticOr(resp *response, err error) error {
	if resp != nil && resp.semantic() {
		return &backends.SemanticError{
			Provider: backends.ProviderEPP,
			Message:  resp.message,
			Code:     resp.code,
		}
	}
	return err
}

func diffStrings(want, have []string) (add, remove []string) {
	haveSet := make(map[string]bool, len(have))
	for _, h := range have {
		haveSet[h] = true
	}
	wantSet := make(map[string]bool, len(want))
	for _, w := range want {
		wantSet[w] = true
		if !haveSet[w] {
			add = append(add, w)
		}
	}
	for _, h := range have {
		if !wantSet[h] {
			remove = append(remove, h)
		}
	}
	return add, remove
}
