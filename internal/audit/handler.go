package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lekha-erp/lekha-erp/internal/security"
	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// PinGate abstracts the authorization gate for data export.
type PinGate interface {
	Verify(ctx context.Context, req security.VerifyRequest) (security.VerificationResult, error)
}

// Handler wires HTTP endpoints for the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    PinGate
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service *Service, gate PinGate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/timeline", h.handleTimeline)
	r.Get("/export", h.handleExport)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"rows":   result.Rows,
		"paging": result.Paging,
	})
}

// handleExport streams the filtered timeline as CSV. Bulk export is a
// PIN-protected action.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	result, err := h.gate.Verify(r.Context(), security.VerifyRequest{
		Action: security.ActionDataExport,
		Pin:    r.Header.Get("X-Pin"),
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
	filters, err := parseFilters(r)
	if err != nil {
		shared.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.writeError(w, err)
		return
	}
	csvBytes, err := writeCSV(rows)
	if err != nil {
		h.logger.Error("encode audit csv", slog.Any("error", err))
		shared.WriteErrorStatus(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	_, _ = w.Write(csvBytes)
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	var err error
	if raw := q.Get("from"); raw != "" {
		if filters.From, err = time.Parse("2006-01-02", raw); err != nil {
			return TimelineFilters{}, err
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filters.To, err = time.Parse("2006-01-02", raw); err != nil {
			return TimelineFilters{}, err
		}
	}
	if raw := q.Get("actor"); raw != "" {
		if filters.Actor, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return TimelineFilters{}, err
		}
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	return filters, nil
}

func writeCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"at", "actor_id", "action", "entity", "entity_id", "outcome", "meta"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		meta := ""
		if row.Meta != nil {
			raw, err := json.Marshal(row.Meta)
			if err != nil {
				return nil, err
			}
			meta = string(raw)
		}
		record := []string{
			row.At.Format(time.RFC3339),
			fmt.Sprintf("%d", row.ActorID),
			row.Action,
			row.Entity,
			row.EntityID,
			row.Outcome,
			meta,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := 0
	switch {
	case errors.Is(err, security.ErrThrottled):
		status = http.StatusTooManyRequests
	default:
		status = shared.HTTPStatus(err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("audit request failed", slog.Any("error", err))
	}
	shared.WriteErrorStatus(w, status, err)
}
