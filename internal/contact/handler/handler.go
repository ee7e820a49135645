// Package handler exposes contact provisioning to operators: create a
// contact in one backend or both, and look up reusable contacts by email.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registro/internal/backends"
	"registro/internal/contact/models"
	"registro/internal/contact/service"
	dErrors "registro/pkg/domain-errors"
	"registro/pkg/platform/httputil"
)

// Service is the contact-service surface the handler needs.
type Service interface {
	CreateForBackend(ctx context.Context, input models.Input, backend backends.Backend) (*models.Contact, error)
	CreateDual(ctx context.Context, input models.Input, registry, registrar backends.Backend) (*service.DualResult, error)
	FindReusable(ctx context.Context, email, provider string) (*models.Contact, error)
}

type Handler struct {
	service   Service
	registry  backends.Backend
	registrar backends.Backend
	logger    *slog.Logger
}

func New(svc Service, registry, registrar backends.Backend, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, registry: registry, registrar: registrar, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/contacts", h.handleCreate)
	r.Get("/contacts/reusable", h.handleFindReusable)
}

type createRequest struct {
	models.Input
	// Provider selects where to create the contact: "epp", "registrar" or
	// "dual" for both (registry first).
	Provider string `json:"provider"`
}

type contactResponse struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Provider   string  `json:"provider"`
	ExternalID *string `json:"external_id"`
}

func toResponse(c *models.Contact) *contactResponse {
	if c == nil {
		return nil
	}
	return &contactResponse{
		ID:         c.ID.String(),
		Email:      c.Email,
		Phone:      c.Phone,
		Provider:   c.Provider,
		ExternalID: c.ExternalID,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	switch req.Provider {
	case backends.ProviderEPP:
		h.createSingle(ctx, w, req.Input, h.registry)
	case backends.ProviderRegistrar:
		h.createSingle(ctx, w, req.Input, h.registrar)
	case "dual":
		h.createDual(ctx, w, req.Input)
	default:
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest,
			"provider must be %q, %q or \"dual\"", backends.ProviderEPP, backends.ProviderRegistrar))
	}
}

func (h *Handler) createSingle(ctx context.Context, w http.ResponseWriter, input models.Input, backend backends.Backend) {
	contact, err := h.service.CreateForBackend(ctx, input, backend)
	if err != nil {
		h.writeCreateError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(contact))
}

func (h *Handler) createDual(ctx context.Context, w http.ResponseWriter, input models.Input) {
	result, err := h.service.CreateDual(ctx, input, h.registry, h.registrar)
	if err != nil {
		// A partial result means the registry leg stuck; surface what exists
		// alongside the failure so operators do not re-create it.
		if result != nil && result.EPP != nil {
			httputil.WriteJSON(w, http.StatusBadGateway, map[string]any{
				"error":             "registrar leg failed",
				"error_description": err.Error(),
				"epp":               toResponse(result.EPP),
			})
			return
		}
		h.writeCreateError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"epp":       toResponse(result.EPP),
		"registrar": toResponse(result.Registrar),
	})
}

func (h *Handler) handleFindReusable(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	provider := r.URL.Query().Get("provider")
	if email == "" || provider == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "email and provider query parameters are required"))
		return
	}
	contact, err := h.service.FindReusable(r.Context(), email, provider)
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "no %s contact for that email", provider))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(contact))
}

func (h *Handler) writeCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	if dErrors.Is(err, dErrors.CodeBadRequest) {
		httputil.WriteError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, "contact creation failed", "error", err.Error())
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "backend contact creation failed"))
}
