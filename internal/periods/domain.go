package periods

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status enumerates accounting period lifecycle stages.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
	StatusLocked Status = "LOCKED"
)

// Period encapsulates one fiscal window scoped to a tenant.
type Period struct {
	ID        int64
	TenantID  uuid.UUID
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Status    Status
	LockedBy  *int64
	LockedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput groups fields for opening a new period.
type CreateInput struct {
	Code      string
	StartDate time.Time
	EndDate   time.Time
}

var (
	// ErrPeriodNotFound indicates no period covers the requested date.
	ErrPeriodNotFound = errors.New("periods: period not found")
	// ErrPeriodLocked indicates the period is hard locked against postings.
	ErrPeriodLocked = errors.New("periods: period locked")
	// ErrInvalidTransition indicates a status change the policy forbids.
	ErrInvalidTransition = errors.New("periods: transition not allowed")
	// ErrOverlap indicates the new window intersects an existing period.
	ErrOverlap = errors.New("periods: window overlaps an existing period")
)

// Contains reports whether the date falls inside the period window.
func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// ValidateTransition checks a status change against the close policy.
// LOCKED only reopens to CLOSED, and only with an owner override.
func ValidateTransition(current, target Status, hasOverride bool) error {
	if current == target {
		return nil
	}
	switch current {
	case StatusOpen:
		if target == StatusClosed || target == StatusLocked {
			return nil
		}
	case StatusClosed:
		if target == StatusOpen || target == StatusLocked {
			return nil
		}
	case StatusLocked:
		if target == StatusClosed && hasOverride {
			return nil
		}
	}
	return ErrInvalidTransition
}

// Validate ensures create input is well formed.
func (in CreateInput) Validate() error {
	if in.Code == "" {
		return errors.New("periods: code required")
	}
	if !in.EndDate.After(in.StartDate) {
		return errors.New("periods: end date must follow start date")
	}
	return nil
}
