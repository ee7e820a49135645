package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/backends"
	"registro/internal/events"
	ordermodels "registro/internal/order/models"
	orderstore "registro/internal/order/store"
	"registro/internal/registration/store"
	"registro/internal/routing"
)

// stubBackend routes every call through optional func fields; unset calls
// succeed with zero values.
type stubBackend struct {
	provider string

	check    func([]string) ([]backends.Availability, error)
	register func(backends.RegisterRequest) (*backends.RegisterResult, error)
	renew    func(backends.RenewRequest) (*backends.RenewResult, error)
	transfer func(backends.TransferRequest) error
	info     func(string) (*backends.DomainInfo, error)

	registerCalls int
	checkCalls    int
}

func (b *stubBackend) Provider() string { return b.provider }

func (b *stubBackend) CheckAvailability(ctx context.Context, domains []string) ([]backends.Availability, error) {
	b.checkCalls++
	if b.check != nil {
		return b.check(domains)
	}
	out := make([]backends.Availability, len(domains))
	for i, d := range domains {
		out[i] = backends.Availability{Domain: d, Available: true}
	}
	return out, nil
}

func (b *stubBackend) Register(ctx context.Context, req backends.RegisterRequest) (*backends.RegisterResult, error) {
	b.registerCalls++
	if b.register != nil {
		return b.register(req)
	}
	return &backends.RegisterResult{Domain: req.Domain, ExpiryDate: "2027-02-28T06:32:27.850Z"}, nil
}

func (b *stubBackend) Renew(ctx context.Context, req backends.RenewRequest) (*backends.RenewResult, error) {
	if b.renew != nil {
		return b.renew(req)
	}
	return &backends.RenewResult{Domain: req.Domain, NewExpiryDate: "2028-02-28T06:32:27.850Z"}, nil
}

func (b *stubBackend) Transfer(ctx context.Context, req backends.TransferRequest) error {
	if b.transfer != nil {
		return b.transfer(req)
	}
	return nil
}

func (b *stubBackend) Info(ctx context.Context, domain string) (*backends.DomainInfo, error) {
	if b.info != nil {
		return b.info(domain)
	}
	return &backends.DomainInfo{Domain: domain, ExpiryDate: "2027-02-28T06:32:27.850Z"}, nil
}

func (b *stubBackend) UpdateNameservers(ctx context.Context, domain string, nameservers []string) error {
	return nil
}

func (b *stubBackend) SetLock(ctx context.Context, domain string, locked bool) error { return nil }

func (b *stubBackend) UpdateContacts(ctx context.Context, domain string, contacts backends.ContactIDs) error {
	return nil
}

func (b *stubBackend) CreateContact(ctx context.Context, data backends.ContactData) (string, error) {
	return "RC001", nil
}

type recordedFailure struct {
	orderID  uuid.UUID
	itemID   uuid.UUID
	domain   string
	reason   string
	contacts backends.ContactIDs
}

type fakeRecorder struct {
	failures []recordedFailure
}

func (r *fakeRecorder) RecordFailure(ctx context.Context, orderID, itemID uuid.UUID, domain, reason string, contacts backends.ContactIDs) error {
	r.failures = append(r.failures, recordedFailure{orderID, itemID, domain, reason, contacts})
	return nil
}

func fullContacts() backends.ContactIDs {
	return backends.ContactIDs{Registrant: "RC1", Admin: "RC2", Tech: "RC3", Billing: "RC4"}
}

func newTestService(t *testing.T, local, international backends.Backend, opts ...Option) (*Service, *store.Memory) {
	t.Helper()
	domains := store.NewMemory()
	router := routing.New(local, international, []string{".rw", ".co.rw"})
	svc, err := New(router, domains, opts...)
	require.NoError(t, err)
	return svc, domains
}

func TestRegisterDomainSuccessPersistsRecord(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP}
	svc, domains := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar})

	res := svc.RegisterDomain(context.Background(), "example.rw", fullContacts(), 2)
	require.True(t, res.Success)
	assert.Equal(t, "2027-02-28T06:32:27.850Z", res.ExpiryDate)

	record, err := domains.GetByName(context.Background(), "example.rw")
	require.NoError(t, err)
	assert.Equal(t, backends.ProviderEPP, record.Provider)
	assert.Equal(t, "2027-02-28T06:32:27.850Z", record.ExpiryDate)
	assert.Equal(t, "RC1", record.RegistrantID)
}

func TestRegisterDomainRequiresAllRoles(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP}
	svc, _ := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar})

	contacts := fullContacts()
	contacts.Billing = ""
	res := svc.RegisterDomain(context.Background(), "example.rw", contacts, 1)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "contact roles")
	assert.Zero(t, local.registerCalls, "incomplete bundle must not reach the backend")
}

func TestRegisterDomainNeverThrows(t *testing.T) {
	cases := []struct {
		name    string
		backend *stubBackend
	}{
		{"erroring backend", &stubBackend{provider: backends.ProviderEPP,
			register: func(backends.RegisterRequest) (*backends.RegisterResult, error) {
				return nil, errors.New("connection reset")
			}}},
		{"panicking backend", &stubBackend{provider: backends.ProviderEPP,
			register: func(backends.RegisterRequest) (*backends.RegisterResult, error) {
				panic("adapter bug")
			}}},
		{"semantic refusal", &stubBackend{provider: backends.ProviderEPP,
			register: func(backends.RegisterRequest) (*backends.RegisterResult, error) {
				return nil, &backends.SemanticError{Provider: backends.ProviderEPP, Message: "Object exists", Code: 2302}
			}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, tc.backend, &stubBackend{provider: backends.ProviderRegistrar})
			res := svc.RegisterDomain(context.Background(), "example.rw", fullContacts(), 1)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestRegisterDomainSemanticMessageSurfaces(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP,
		register: func(backends.RegisterRequest) (*backends.RegisterResult, error) {
			return nil, &backends.SemanticError{Provider: backends.ProviderEPP, Message: "Object exists", Code: 2302}
		}}
	svc, _ := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar})

	res := svc.RegisterDomain(context.Background(), "taken.rw", fullContacts(), 1)
	assert.False(t, res.Success)
	assert.Equal(t, "Object exists", res.Message)
}

func TestRenewDomainEchoesStoredExpiry(t *testing.T) {
	const stored = "2027-02-28T06:32:27.850Z"
	var seen string
	local := &stubBackend{provider: backends.ProviderEPP,
		renew: func(req backends.RenewRequest) (*backends.RenewResult, error) {
			seen = req.CurrentExpiry
			return &backends.RenewResult{Domain: req.Domain, NewExpiryDate: "2028-02-28T06:32:27.850Z"}, nil
		}}
	svc, domains := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar})

	require.True(t, svc.RegisterDomain(context.Background(), "example.rw", fullContacts(), 1).Success)
	record, err := domains.GetByName(context.Background(), "example.rw")
	require.NoError(t, err)
	require.Equal(t, stored, record.ExpiryDate)

	res := svc.RenewDomain(context.Background(), "example.rw", 1)
	require.True(t, res.Success)
	assert.Equal(t, stored, seen, "stored expiry must reach the backend byte-identical")
	assert.Equal(t, "2028-02-28T06:32:27.850Z", res.ExpiryDate)

	record, err = domains.GetByName(context.Background(), "example.rw")
	require.NoError(t, err)
	assert.Equal(t, "2028-02-28T06:32:27.850Z", record.ExpiryDate)
}

func TestRenewDomainFallsBackToInfo(t *testing.T) {
	var seen string
	local := &stubBackend{provider: backends.ProviderEPP,
		info: func(domain string) (*backends.DomainInfo, error) {
			return &backends.DomainInfo{Domain: domain, ExpiryDate: "2026-01-01T00:00:00.000Z"}, nil
		},
		renew: func(req backends.RenewRequest) (*backends.RenewResult, error) {
			seen = req.CurrentExpiry
			return &backends.RenewResult{Domain: req.Domain, NewExpiryDate: "2027-01-01T00:00:00.000Z"}, nil
		}}
	svc, _ := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar})

	// No local record exists for this name.
	res := svc.RenewDomain(context.Background(), "unseen.rw", 1)
	require.True(t, res.Success)
	assert.Equal(t, "2026-01-01T00:00:00.000Z", seen)
}

func TestProcessOrderPartialCompletion(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP,
		register: func(req backends.RegisterRequest) (*backends.RegisterResult, error) {
			if req.Domain == "fails.rw" {
				return nil, &backends.SemanticError{Provider: backends.ProviderEPP, Message: "Object exists", Code: 2302}
			}
			return &backends.RegisterResult{Domain: req.Domain, ExpiryDate: "2027-02-28T06:32:27.850Z"}, nil
		}}

	orders := orderstore.NewMemory()
	recorder := &fakeRecorder{}
	publisher := events.NewMemoryPublisher()
	svc, _ := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar},
		WithOrders(orders), WithRecorder(recorder), WithEvents(publisher))

	now := time.Now()
	order := &ordermodels.Order{
		ID:            uuid.New(),
		Status:        ordermodels.StatusProcessing,
		PaymentStatus: ordermodels.PaymentPaid,
		TotalAmount:   30000,
		Currency:      "RWF",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	items := []ordermodels.Item{
		{ID: uuid.New(), OrderID: order.ID, Domain: "works.rw", Years: 1,
			RegistrantID: "RC1", AdminID: "RC2", TechID: "RC3", BillingID: "RC4",
			Status: ordermodels.ItemPending, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New(), OrderID: order.ID, Domain: "fails.rw", Years: 1,
			RegistrantID: "RC1", AdminID: "RC2", TechID: "RC3", BillingID: "RC4",
			Status: ordermodels.ItemPending, CreatedAt: now.Add(time.Millisecond), UpdatedAt: now},
	}
	require.NoError(t, orders.CreateOrder(context.Background(), order, items))

	require.NoError(t, svc.ProcessOrder(context.Background(), order.ID))

	got, err := orders.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, ordermodels.StatusPartiallyCompleted, got.Status)
	assert.Equal(t, ordermodels.PaymentPaid, got.PaymentStatus, "payment must survive registration failure")
	assert.Equal(t, int64(30000), got.TotalAmount)

	require.Len(t, recorder.failures, 1, "exactly one record, for the failing domain only")
	assert.Equal(t, "fails.rw", recorder.failures[0].domain)
	assert.Equal(t, "Object exists", recorder.failures[0].reason)
	assert.Equal(t, fullContacts(), recorder.failures[0].contacts)

	published := publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeRegistrationFailed, published[0].Type)
	assert.Equal(t, "fails.rw", published[0].Domain)
}

func TestProcessOrderUnpaidOrderNotRecorded(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP,
		register: func(backends.RegisterRequest) (*backends.RegisterResult, error) {
			return nil, errors.New("timeout")
		}}
	orders := orderstore.NewMemory()
	recorder := &fakeRecorder{}
	svc, _ := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar},
		WithOrders(orders), WithRecorder(recorder))

	now := time.Now()
	order := &ordermodels.Order{ID: uuid.New(), Status: ordermodels.StatusProcessing,
		PaymentStatus: ordermodels.PaymentPending, CreatedAt: now, UpdatedAt: now}
	items := []ordermodels.Item{{ID: uuid.New(), OrderID: order.ID, Domain: "x.rw", Years: 1,
		RegistrantID: "RC1", AdminID: "RC2", TechID: "RC3", BillingID: "RC4",
		Status: ordermodels.ItemPending, CreatedAt: now, UpdatedAt: now}}
	require.NoError(t, orders.CreateOrder(context.Background(), order, items))

	require.NoError(t, svc.ProcessOrder(context.Background(), order.ID))
	assert.Empty(t, recorder.failures, "unpaid orders never open failure records")
}

func TestCheckDomainAvailable(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP,
		check: func(domains []string) ([]backends.Availability, error) {
			return []backends.Availability{{Domain: domains[0], Available: false, Reason: "Domain taken"}}, nil
		}}
	svc, _ := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar})

	available, err := svc.CheckDomainAvailable(context.Background(), "example.rw")
	require.NoError(t, err)
	assert.False(t, available)
}
