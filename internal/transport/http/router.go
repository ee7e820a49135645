// Package httptransport assembles the HTTP surface: the public availability
// search, the operator API behind the admin token, health and metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	contacthandler "registro/internal/contact/handler"
	"registro/internal/platform/metrics"
	"registro/internal/platform/middleware"
	reghandler "registro/internal/registration/handler"
	retryhandler "registro/internal/retry/handler"
	"registro/pkg/platform/httputil"
)

type RouterConfig struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	AdminToken   string
	Search       reghandler.Searcher
	Retry        retryhandler.Service
	Contacts     *contacthandler.Handler
	HealthChecks map[string]func() error
}

// NewRouter wires every endpoint with the shared middleware chain. Admin
// routes additionally require the X-Admin-Token header.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", healthHandler(cfg.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		if cfg.Search != nil {
			reghandler.New(cfg.Search, logger).Register(r)
		}
	})

	if cfg.Retry != nil || cfg.Contacts != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdminToken(cfg.AdminToken, logger))
			r.Use(middleware.ContentTypeJSON)
			if cfg.Retry != nil {
				retryhandler.New(cfg.Retry, logger).Register(r)
			}
			if cfg.Contacts != nil {
				cfg.Contacts.Register(r)
			}
		})
	}

	return r
}

func healthHandler(checks map[string]func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
