package allocation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// Handler wires HTTP endpoints for allocation previews.
type Handler struct {
	logger  *slog.Logger
	service *Service
	repo    *Repository
}

// NewHandler constructs the allocation handler.
func NewHandler(logger *slog.Logger, service *Service, repo *Repository) *Handler {
	return &Handler{logger: logger, service: service, repo: repo}
}

// MountRoutes registers allocation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/preview", h.handlePreview)
	r.Get("/batches/{productID}", h.handleListBatches)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var line Line
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.service.Preview(r.Context(), line)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"result":    result,
		"allocated": result.Allocated(),
		"short":     result.Short(),
	})
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	batches, err := h.repo.ListBatches(r.Context(), tenantID, productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := 0
	switch {
	case errors.Is(err, ErrBatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrBatchStock):
		status = http.StatusUnprocessableEntity
	default:
		status = shared.HTTPStatus(err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("allocation request failed", slog.Any("error", err))
	}
	shared.WriteErrorStatus(w, status, err)
}
