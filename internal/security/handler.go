package security

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// Handler wires HTTP endpoints for the authorization gate.
type Handler struct {
	logger  *slog.Logger
	service *Service
	repo    *Repository
}

// NewHandler constructs the security handler.
func NewHandler(logger *slog.Logger, service *Service, repo *Repository) *Handler {
	return &Handler{logger: logger, service: service, repo: repo}
}

// MountRoutes registers security routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/verify", h.handleVerify)
	r.Get("/actions", h.handleActions)
	r.Get("/settings", h.handleGetSettings)
	r.Put("/settings", h.handlePutSettings)
}

type verifyRequestBody struct {
	Action  Action   `json:"action"`
	Pin     string   `json:"pin"`
	Context *float64 `json:"context,omitempty"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body verifyRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.service.Verify(r.Context(), VerifyRequest{
		Action:  body.Action,
		Pin:     body.Pin,
		Actor:   shared.ActorFromContext(r.Context()),
		Context: body.Context,
	})
	if err != nil && !errors.Is(err, shared.ErrAuthorizationDenied) {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if !result.Authorized {
		status = http.StatusForbidden
	}
	shared.WriteJSON(w, status, result)
}

func (h *Handler) handleActions(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{"actions": Catalog()})
}

type settingsResponse struct {
	MaxDiscountPercent  float64         `json:"max_discount_percent"`
	BillEditWindowMins  int             `json:"bill_edit_window_mins"`
	CashMismatchLimit   float64         `json:"cash_mismatch_limit"`
	ApprovalAmountLimit float64         `json:"approval_amount_limit"`
	PinRequired         map[Action]bool `json:"pin_required"`
	MaxPinAttempts      int             `json:"max_pin_attempts"`
	LockoutMins         int             `json:"lockout_mins"`
	PinConfigured       bool            `json:"pin_configured"`
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	settings, err := h.repo.GetSettings(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, settingsView(settings))
}

type settingsUpdateBody struct {
	MaxDiscountPercent  float64         `json:"max_discount_percent"`
	BillEditWindowMins  int             `json:"bill_edit_window_mins"`
	CashMismatchLimit   float64         `json:"cash_mismatch_limit"`
	ApprovalAmountLimit float64         `json:"approval_amount_limit"`
	PinRequired         map[Action]bool `json:"pin_required"`
	MaxPinAttempts      int             `json:"max_pin_attempts"`
	LockoutMins         int             `json:"lockout_mins"`
	NewPin              string          `json:"new_pin"`
	Pin                 string          `json:"pin"`
}

// handlePutSettings rewrites the tenant policy. The change is itself a
// protected owner-only action, so it runs through the gate first.
func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body settingsUpdateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	current, err := h.repo.GetSettings(r.Context(), tenantID)
	if err != nil && !errors.Is(err, ErrSettingsNotFound) {
		h.writeError(w, err)
		return
	}
	// Bootstrap: the very first settings write needs no existing PIN.
	if err == nil && current.OwnerPinHash != "" {
		result, verr := h.service.Verify(r.Context(), VerifyRequest{
			Action: ActionSettingsChange,
			Pin:    body.Pin,
			Actor:  shared.ActorFromContext(r.Context()),
		})
		if verr != nil && !errors.Is(verr, shared.ErrAuthorizationDenied) {
			h.writeError(w, verr)
			return
		}
		if !result.Authorized {
			shared.WriteErrorStatus(w, http.StatusForbidden, errors.New(result.Reason))
			return
		}
	}

	updated := current
	updated.TenantID = tenantID
	updated.MaxDiscountPercent = body.MaxDiscountPercent
	updated.BillEditWindowMins = body.BillEditWindowMins
	updated.CashMismatchLimit = body.CashMismatchLimit
	updated.ApprovalAmountLimit = body.ApprovalAmountLimit
	updated.PinRequired = body.PinRequired
	updated.MaxPinAttempts = body.MaxPinAttempts
	updated.LockoutDuration = time.Duration(body.LockoutMins) * time.Minute
	if body.NewPin != "" {
		hash, err := HashPin(body.NewPin)
		if err != nil {
			h.writeError(w, err)
			return
		}
		updated.OwnerPinHash = hash
	}
	if err := h.repo.UpsertSettings(r.Context(), updated); err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, settingsView(updated))
}

func settingsView(s Settings) settingsResponse {
	return settingsResponse{
		MaxDiscountPercent:  s.MaxDiscountPercent,
		BillEditWindowMins:  s.BillEditWindowMins,
		CashMismatchLimit:   s.CashMismatchLimit,
		ApprovalAmountLimit: s.ApprovalAmountLimit,
		PinRequired:         s.PinRequired,
		MaxPinAttempts:      s.MaxPinAttempts,
		LockoutMins:         int(s.LockoutDuration / time.Minute),
		PinConfigured:       s.OwnerPinHash != "",
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := 0
	switch {
	case errors.Is(err, ErrUnknownAction):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrSettingsNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrThrottled):
		status = http.StatusTooManyRequests
	default:
		status = shared.HTTPStatus(err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("security request failed", slog.Any("error", err))
	}
	shared.WriteErrorStatus(w, status, err)
}
