package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/security"
	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// Handler wires HTTP endpoints for the billing module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the billing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleFinalize)
	r.Get("/{billID}", h.handleGet)
	r.Get("/{billID}/can-edit", h.handleCanEdit)
	r.Get("/{billID}/can-delete", h.handleCanDelete)
	r.Put("/{billID}", h.handleEdit)
	r.Delete("/{billID}", h.handleDelete)
	r.Post("/{billID}/payments", h.handlePayment)
	r.Post("/{billID}/print", h.handlePrint)
	r.Post("/{billID}/gst-filed", h.handleGSTFiled)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var in CreateBillInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	outcome, err := h.service.FinalizeSale(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, saleResponse(outcome))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "billID"))
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	bill, state, err := h.service.GetBill(r.Context(), billID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"bill":          bill,
		"state":         state,
		"state_display": state.Display(),
	})
}

func (h *Handler) handleCanEdit(w http.ResponseWriter, r *http.Request) {
	h.handleCheck(w, r, h.service.CheckEdit)
}

func (h *Handler) handleCanDelete(w http.ResponseWriter, r *http.Request) {
	h.handleCheck(w, r, h.service.CheckDelete)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request, check func(ctx context.Context, billID uuid.UUID) (CheckResult, error)) {
	billID, err := uuid.Parse(chi.URLParam(r, "billID"))
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	result, err := check(r.Context(), billID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "billID"))
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	var in EditBillInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	in.BillID = billID
	outcome, err := h.service.EditBill(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, saleResponse(outcome))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "billID"))
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
	if err := h.service.DeleteBill(r.Context(), billID, body.Pin); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "billID"))
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	bill, err := h.service.RecordPayment(r.Context(), billID, body.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"bill": bill, "state": DeriveState(bill)})
}

func (h *Handler) handlePrint(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "billID"))
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	count, err := h.service.RecordPrint(r.Context(), billID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"print_count": count})
}

func (h *Handler) handleGSTFiled(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "billID"))
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	if err := h.service.MarkGSTFiled(r.Context(), billID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := 0
	switch {
	case errors.Is(err, ErrBillNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrOverpayment):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, security.ErrThrottled):
		status = http.StatusTooManyRequests
	default:
		status = shared.HTTPStatus(err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("billing request failed", slog.Any("error", err))
	}
	shared.WriteErrorStatus(w, status, err)
}

func saleResponse(outcome SaleOutcome) map[string]any {
	short := false
	for _, result := range outcome.Allocations {
		if result.Short() > 0 {
			short = true
			break
		}
	}
	return map[string]any{
		"bill":        outcome.Bill,
		"state":       DeriveState(outcome.Bill),
		"allocations": outcome.Allocations,
		"short":       short,
	}
}
