// Package handler exposes the failed-registration records to operators:
// list by status for dashboards, inspect one, and manually resolve, abandon
// or immediately retry a record.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"registro/internal/retry/models"
	dErrors "registro/pkg/domain-errors"
	"registro/pkg/platform/httputil"
)

// Service is the retry-service surface the handler needs.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.FailedRegistration, error)
	Resolve(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error)
	Abandon(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error)
	RetryNow(ctx context.Context, id uuid.UUID) (*models.FailedRegistration, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. Admin authentication is applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Get("/failed-registrations", h.handleList)
	r.Get("/failed-registrations/{id}", h.handleGet)
	r.Post("/failed-registrations/{id}/resolve", h.handleResolve)
	r.Post("/failed-registrations/{id}/abandon", h.handleAbandon)
	r.Post("/failed-registrations/{id}/retry", h.handleRetryNow)
}

type failedRegistrationResponse struct {
	ID            uuid.UUID  `json:"id"`
	OrderID       uuid.UUID  `json:"order_id"`
	OrderItemID   uuid.UUID  `json:"order_item_id"`
	Domain        string     `json:"domain"`
	Reason        string     `json:"reason"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	Status        string     `json:"status"`
	RegistrantID  string     `json:"registrant_id"`
	AdminID       string     `json:"admin_id"`
	TechID        string     `json:"tech_id"`
	BillingID     string     `json:"billing_id"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toResponse(f *models.FailedRegistration) failedRegistrationResponse {
	return failedRegistrationResponse{
		ID:            f.ID,
		OrderID:       f.OrderID,
		OrderItemID:   f.OrderItemID,
		Domain:        f.Domain,
		Reason:        f.Reason,
		RetryCount:    f.RetryCount,
		MaxRetries:    f.MaxRetries,
		Status:        string(f.Status),
		RegistrantID:  f.RegistrantID,
		AdminID:       f.AdminID,
		TechID:        f.TechID,
		BillingID:     f.BillingID,
		NextAttemptAt: f.NextAttemptAt,
		ResolvedAt:    f.ResolvedAt,
		CreatedAt:     f.CreatedAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusPending
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records, err := h.service.ListByStatus(ctx, status, limit)
	if err != nil {
		h.writeServiceError(ctx, w, "list failed registrations", err)
		return
	}

	out := make([]failedRegistrationResponse, 0, len(records))
	for i := range records {
		out = append(out, toResponse(&records[i]))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  string(status),
		"records": out,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	record, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get failed registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(record))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "resolve", h.service.Resolve)
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "abandon", h.service.Abandon)
}

func (h *Handler) handleRetryNow(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "retry", h.service.RetryNow)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, uuid.UUID) (*models.FailedRegistration, error)) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	record, err := fn(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, action, err)
		return
	}
	h.logger.InfoContext(ctx, "manual intervention applied",
		"action", action,
		"record_id", id,
		"domain", record.Domain,
		"status", string(record.Status),
	)
	httputil.WriteJSON(w, http.StatusOK, toResponse(record))
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "record id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest, dErrors.CodeNotFound, dErrors.CodeInvariantViolation, dErrors.CodeConflict:
		httputil.WriteError(w, err)
	default:
		h.logger.ErrorContext(ctx, op+" failed", "error", err.Error())
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, op+" failed"))
	}
}
