package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/backends"
	"registro/internal/contact/handler"
	"registro/internal/contact/models"
	"registro/internal/contact/service"
	dErrors "registro/pkg/domain-errors"
	"registro/pkg/testutil"
)

type fakeService struct {
	createForBackend func(input models.Input, backend backends.Backend) (*models.Contact, error)
	createDual       func(input models.Input) (*service.DualResult, error)
	reusable         map[string]*models.Contact
}

func (f *fakeService) CreateForBackend(_ context.Context, input models.Input, backend backends.Backend) (*models.Contact, error) {
	return f.createForBackend(input, backend)
}

func (f *fakeService) CreateDual(_ context.Context, input models.Input, _, _ backends.Backend) (*service.DualResult, error) {
	return f.createDual(input)
}

func (f *fakeService) FindReusable(_ context.Context, email, provider string) (*models.Contact, error) {
	if c, ok := f.reusable[provider+"/"+email]; ok {
		return c, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
}

type nopBackend struct {
	backends.Backend
	provider string
}

func (n *nopBackend) Provider() string { return n.provider }

func newRouter(svc handler.Service) chi.Router {
	r := chi.NewRouter()
	h := handler.New(svc,
		&nopBackend{provider: backends.ProviderEPP},
		&nopBackend{provider: backends.ProviderRegistrar},
		nil)
	h.Register(r)
	return r
}

func testContact(provider string) *models.Contact {
	ext := "EXT-1"
	return &models.Contact{
		ID:         uuid.New(),
		Email:      "jo@example.rw",
		Phone:      "+250.788123456",
		Provider:   provider,
		ExternalID: &ext,
	}
}

func validInput() models.Input {
	return models.Input{
		FirstName:   "Jo",
		LastName:    "Uwase",
		Street:      "KG 7 Ave",
		City:        "Kigali",
		Province:    "Kigali",
		PostalCode:  "00000",
		CountryCode: "RW",
		Phone:       "0788123456",
		Email:       "jo@example.rw",
	}
}

func TestCreateContactForBackend(t *testing.T) {
	var gotProvider string
	svc := &fakeService{
		createForBackend: func(_ models.Input, backend backends.Backend) (*models.Contact, error) {
			gotProvider = backend.Provider()
			return testContact(backend.Provider()), nil
		},
	}
	r := newRouter(svc)

	body := map[string]any{
		"provider":     "epp",
		"first_name":   "Jo",
		"last_name":    "Uwase",
		"street":       "KG 7 Ave",
		"city":         "Kigali",
		"province":     "Kigali",
		"postal_code":  "00000",
		"country_code": "RW",
		"phone":        "0788123456",
		"email":        "jo@example.rw",
	}
	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/contacts", body))

	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.Equal(t, backends.ProviderEPP, gotProvider)

	resp := testutil.UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, "jo@example.rw", (*resp)["email"])
	assert.Equal(t, "EXT-1", (*resp)["external_id"])
}

func TestCreateContactUnknownProvider(t *testing.T) {
	r := newRouter(&fakeService{})

	body := map[string]any{"provider": "whois", "email": "jo@example.rw"}
	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/contacts", body))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "bad_request")
}

func TestCreateContactValidationError(t *testing.T) {
	svc := &fakeService{
		createForBackend: func(models.Input, backends.Backend) (*models.Contact, error) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "email is required")
		},
	}
	r := newRouter(svc)

	body := map[string]any{"provider": "registrar"}
	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/contacts", body))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "bad_request")
}

func TestCreateDualPartialFailureSurfacesRegistryContact(t *testing.T) {
	epp := testContact(backends.ProviderEPP)
	svc := &fakeService{
		createDual: func(models.Input) (*service.DualResult, error) {
			return &service.DualResult{EPP: epp}, dErrors.New(dErrors.CodeUnavailable, "registrar unreachable")
		},
	}
	r := newRouter(svc)

	body := map[string]any{"provider": "dual", "first_name": "Jo"}
	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/contacts", body))

	testutil.AssertStatus(t, rr, http.StatusBadGateway)

	resp := testutil.UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, "registrar leg failed", (*resp)["error"])
	eppResp, ok := (*resp)["epp"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, epp.ID.String(), eppResp["id"])
}

func TestCreateDualBothLegs(t *testing.T) {
	svc := &fakeService{
		createDual: func(models.Input) (*service.DualResult, error) {
			return &service.DualResult{
				EPP:       testContact(backends.ProviderEPP),
				Registrar: testContact(backends.ProviderRegistrar),
			}, nil
		},
	}
	r := newRouter(svc)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/contacts",
		map[string]any{"provider": "dual"}))

	testutil.AssertStatus(t, rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[map[string]any](t, rr)
	assert.NotNil(t, (*resp)["epp"])
	assert.NotNil(t, (*resp)["registrar"])
}

func TestFindReusable(t *testing.T) {
	contact := testContact(backends.ProviderRegistrar)
	svc := &fakeService{
		reusable: map[string]*models.Contact{
			"registrar/jo@example.rw": contact,
		},
	}
	r := newRouter(svc)

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet,
		"/contacts/reusable?email=jo@example.rw&provider=registrar"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, contact.ID.String(), (*resp)["id"])

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet,
		"/contacts/reusable?email=nobody@example.rw&provider=registrar"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/contacts/reusable"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "bad_request")
}
