package ledger

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// Handler wires HTTP endpoints for the account registry.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bootstrap", h.handleBootstrap)
	r.Post("/accounts", h.handleCreate)
	r.Get("/accounts/{accountID}", h.handleGet)
	r.Patch("/accounts/{accountID}", h.handleUpdate)
	r.Get("/accounts/{accountID}/balance", h.handleBalance)
	r.Get("/groups/{group}", h.handleListByGroup)
}

// handleBootstrap seeds the tenant's system chart. Safe to repeat; existing
// accounts are left untouched.
func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EnsureSystemChart(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	account, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	account, err := h.service.Get(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	account, err := h.service.Update(r.Context(), accountID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse("2006-01-02", raw); err != nil {
			shared.WriteErrorStatus(w, http.StatusBadRequest, err)
			return
		}
	}
	balance, err := h.service.BalanceAsOf(r.Context(), accountID, asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"as_of":      asOf.Format("2006-01-02"),
		"balance":    balance,
	})
}

func (h *Handler) handleListByGroup(w http.ResponseWriter, r *http.Request) {
	group := AccountGroup(chi.URLParam(r, "group"))
	accounts, err := h.service.ListByGroup(r.Context(), group)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := 0
	switch {
	case errors.Is(err, ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrDuplicateCode):
		status = http.StatusConflict
	case errors.Is(err, ErrSystemAccount):
		status = http.StatusForbidden
	default:
		status = shared.HTTPStatus(err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("ledger request failed", slog.Any("error", err))
	}
	shared.WriteErrorStatus(w, status, err)
}
