package journal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/periods"
	"github.com/lekha-erp/lekha-erp/internal/security"
	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// PinGate abstracts the PIN authorization gate for locked-entry corrections.
type PinGate interface {
	Verify(ctx context.Context, req security.VerifyRequest) (security.VerificationResult, error)
}

// Handler wires HTTP endpoints for the journal module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	repo    *Repository
	gate    PinGate
}

// NewHandler constructs the journal handler.
func NewHandler(logger *slog.Logger, service *Service, repo *Repository, gate PinGate) *Handler {
	return &Handler{logger: logger, service: service, repo: repo, gate: gate}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.handlePost)
	r.Post("/reversals", h.handleReverse)
	r.Get("/day-book", h.handleDayBook)
	r.Get("/entries/{sourceType}/{sourceID}", h.handleGetBySource)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var in PostingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	entry, err := h.service.PostEntry(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entry)
}

// handleReverse posts a correction. A locked original only unlocks when the
// supplied PIN passes the owner-only gate; the flag itself is not wire-settable.
func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReverseInput
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	in := body.ReverseInput
	in.OwnerUnlock = false
	if body.Pin != "" && h.gate != nil {
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
		in.OwnerUnlock = true
	}
	entry, err := h.service.ReverseEntry(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleDayBook(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	filter := DayBookFilter{}
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = time.Parse("2006-01-02", raw); err != nil {
			shared.WriteErrorStatus(w, http.StatusBadRequest, err)
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = time.Parse("2006-01-02", raw); err != nil {
			shared.WriteErrorStatus(w, http.StatusBadRequest, err)
			return
		}
	}
	filter.Class = EntryClass(q.Get("class"))
	entries, err := h.repo.ListEntries(r.Context(), tenantID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleGetBySource(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	entry, err := h.repo.GetBySource(r.Context(), tenantID, chi.URLParam(r, "sourceType"), sourceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := 0
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrUnknownLedger):
		status = http.StatusNotFound
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines), errors.Is(err, ErrInvalidVoucherType):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrEntryLocked), errors.Is(err, periods.ErrPeriodLocked):
		status = http.StatusConflict
	case errors.Is(err, security.ErrThrottled):
		status = http.StatusTooManyRequests
	default:
		status = shared.HTTPStatus(err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("journal request failed", slog.Any("error", err))
	}
	shared.WriteErrorStatus(w, status, err)
}
