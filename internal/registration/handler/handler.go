// Package handler exposes the storefront-facing availability search.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registro/internal/registration/models"
	dErrors "registro/pkg/domain-errors"
	"registro/pkg/platform/httputil"
)

// Searcher is the slice of the registration service the handler needs.
type Searcher interface {
	SearchDomains(ctx context.Context, base string) []models.SearchResult
}

type Handler struct {
	search Searcher
	logger *slog.Logger
}

func New(search Searcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{search: search, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/domains/search", h.handleSearch)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "name query parameter is required"))
		return
	}

	results := h.search.SearchDomains(r.Context(), name)
	if results == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "name contains no searchable characters"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"results": results,
	})
}
