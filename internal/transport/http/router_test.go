package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/backends"
	platmetrics "registro/internal/platform/metrics"
	regmodels "registro/internal/registration/models"
	retrymodels "registro/internal/retry/models"
	dErrors "registro/pkg/domain-errors"
)

type stubSearch struct{}

func (stubSearch) SearchDomains(ctx context.Context, base string) []regmodels.SearchResult {
	return []regmodels.SearchResult{{Domain: base + ".rw", Available: true, Price: 1500, Currency: "USD"}}
}

type stubRetry struct{}

func (stubRetry) GetByID(ctx context.Context, id uuid.UUID) (*retrymodels.FailedRegistration, error) {
	return nil, dErrors.Newf(dErrors.CodeNotFound, "failed registration %s not found", id)
}

func (stubRetry) ListByStatus(ctx context.Context, status retrymodels.Status, limit int) ([]retrymodels.FailedRegistration, error) {
	f := retrymodels.New(uuid.New(), uuid.New(), "example.rw", "Object exists",
		backends.ContactIDs{Registrant: "RC1", Admin: "RC2", Tech: "RC3", Billing: "RC4"},
		time.Minute, time.Now())
	return []retrymodels.FailedRegistration{*f}, nil
}

func (s stubRetry) Resolve(ctx context.Context, id uuid.UUID) (*retrymodels.FailedRegistration, error) {
	return s.GetByID(ctx, id)
}

func (s stubRetry) Abandon(ctx context.Context, id uuid.UUID) (*retrymodels.FailedRegistration, error) {
	return s.GetByID(ctx, id)
}

func (s stubRetry) RetryNow(ctx context.Context, id uuid.UUID) (*retrymodels.FailedRegistration, error) {
	return s.GetByID(ctx, id)
}

func newServer(t *testing.T, checks map[string]func() error) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(RouterConfig{
		AdminToken:   "sekrit",
		Search:       stubSearch{},
		Retry:        stubRetry{},
		HealthChecks: checks,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := newServer(t, map[string]func() error{
		"postgres": func() error { return nil },
	})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["postgres"])
}

func TestHealthDegraded(t *testing.T) {
	srv := newServer(t, map[string]func() error{
		"redis": func() error { return errors.New("connection refused") },
	})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSearchRouteIsPublic(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/domains/search?name=acme")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/admin/failed-registrations")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/failed-registrations?status=pending", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "sekrit")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestDurationObserved(t *testing.T) {
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Metrics: platmetrics.New(),
		Search:  stubSearch{},
	}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/domains/search?name=acme")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	exposition := string(body)
	assert.Contains(t, exposition, "registro_http_request_duration_seconds")
	assert.Contains(t, exposition, `route="/domains/search"`)
	assert.Contains(t, exposition, `status="200"`)
}
