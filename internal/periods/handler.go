package periods

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lekha-erp/lekha-erp/internal/security"
	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// PinGate abstracts the PIN authorization gate for the unlock transition.
type PinGate interface {
	Verify(ctx context.Context, req security.VerifyRequest) (security.VerificationResult, error)
}

// Handler wires HTTP endpoints for accounting periods.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    PinGate
}

// NewHandler constructs the periods handler.
func NewHandler(logger *slog.Logger, service *Service, gate PinGate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Post("/{periodID}/close", h.transition(h.service.Close))
	r.Post("/{periodID}/lock", h.transition(h.service.Lock))
	r.Post("/{periodID}/reopen", h.transition(h.service.Reopen))
	r.Post("/{periodID}/unlock", h.handleUnlock)
}

type transitionFunc func(ctx context.Context, periodID int64) (Period, error)

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	period, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, period)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	periods, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (h *Handler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		periodID, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
		if err != nil {
			shared.WriteErrorStatus(w, http.StatusBadRequest, err)
			return
		}
		period, err := fn(r.Context(), periodID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, period)
	}
}

// handleUnlock is the only transition that passes through the PIN gate:
// unlocking a hard-locked period is an owner-only critical action.
func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	periodID, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Pin string `json:"pin"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	result, err := h.gate.Verify(r.Context(), security.VerifyRequest{
		Action: security.ActionPeriodUnlock,
		Pin:    body.Pin,
		Actor:  shared.ActorFromContext(r.Context()),
	})
	if err != nil && !errors.Is(err, shared.ErrAuthorizationDenied) {
		h.writeError(w, err)
		return
	}
	if !result.Authorized {
		shared.WriteErrorStatus(w, http.StatusForbidden, errors.New(result.Reason))
		return
	}
	period, err := h.service.Unlock(r.Context(), periodID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, period)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := 0
	switch {
	case errors.Is(err, ErrPeriodNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrOverlap):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrPeriodLocked):
		status = http.StatusConflict
	case errors.Is(err, security.ErrThrottled):
		status = http.StatusTooManyRequests
	default:
		status = shared.HTTPStatus(err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("periods request failed", slog.Any("error", err))
	}
	shared.WriteErrorStatus(w, status, err)
}
