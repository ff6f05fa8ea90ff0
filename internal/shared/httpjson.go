package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HTTPStatus maps the shared sentinel errors to response codes. Errors the
// map does not know become 500s; domain handlers layer their own sentinels
// on top before falling back here.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTenantMissing):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrImmutabilityViolation):
		return http.StatusConflict
	case errors.Is(err, ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error body using HTTPStatus for the code.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorStatus(w, HTTPStatus(err), err)
}

// WriteErrorStatus writes err with an explicit status code.
func WriteErrorStatus(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError && err != nil {
		msg = err.Error()
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}
