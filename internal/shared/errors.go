package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorizationDenied indicates a wrong PIN or an insufficient role.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrImmutabilityViolation indicates an edit/delete denied by document state.
	ErrImmutabilityViolation = errors.New("document is immutable in its current state")
	// ErrConcurrencyConflict indicates an optimistic-lock failure; callers retry with fresh data.
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")
	// ErrTenantMissing indicates the request context carries no tenant.
	ErrTenantMissing = errors.New("tenant not resolved")
)
