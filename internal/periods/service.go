package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// RepositoryPort abstracts period persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, tenantID uuid.UUID, in CreateInput) (Period, error)
	FindByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (Period, error)
	GetByID(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error)
	UpdateStatus(ctx context.Context, tenantID uuid.UUID, periodID int64, target Status, actorID int64) (Period, error)
	List(ctx context.Context, tenantID uuid.UUID, limit int) ([]Period, error)
}

// Service coordinates the accounting calendar and close policy.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditPort
	now   func() time.Time
}

// NewService constructs the period service.
func NewService(repo RepositoryPort, audit shared.AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create opens a new period window.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Period{}, err
	}
	if err := in.Validate(); err != nil {
		return Period{}, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	return s.repo.Insert(ctx, tenantID, in)
}

// EnsureOpenForPosting rejects postings dated inside a locked period. A soft
// closed period still accepts late entries; a locked one needs an owner unlock
// first, decided by the PIN gate at the caller.
func (s *Service) EnsureOpenForPosting(ctx context.Context, date time.Time, ownerUnlock bool) (Period, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Period{}, err
	}
	period, err := s.repo.FindByDate(ctx, tenantID, date)
	if err != nil {
		return Period{}, err
	}
	if period.Status == StatusLocked && !ownerUnlock {
		return Period{}, ErrPeriodLocked
	}
	return period, nil
}

// Close soft-closes a period.
func (s *Service) Close(ctx context.Context, periodID int64) (Period, error) {
	return s.transition(ctx, periodID, StatusClosed, false)
}

// Lock hard-locks a period; contained journal entries become locked too.
func (s *Service) Lock(ctx context.Context, periodID int64) (Period, error) {
	return s.transition(ctx, periodID, StatusLocked, false)
}

// Unlock reopens a locked period to CLOSED. Owner-only; the caller must have
// passed the PIN gate for the period-unlock action before invoking this.
func (s *Service) Unlock(ctx context.Context, periodID int64) (Period, error) {
	return s.transition(ctx, periodID, StatusClosed, true)
}

// Reopen returns a soft-closed period to OPEN.
func (s *Service) Reopen(ctx context.Context, periodID int64) (Period, error) {
	return s.transition(ctx, periodID, StatusOpen, false)
}

func (s *Service) transition(ctx context.Context, periodID int64, target Status, override bool) (Period, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Period{}, err
	}
	current, err := s.repo.GetByID(ctx, tenantID, periodID)
	if err != nil {
		return Period{}, err
	}
	if err := ValidateTransition(current.Status, target, override); err != nil {
		return Period{}, err
	}
	actor := shared.ActorFromContext(ctx)
	period, err := s.repo.UpdateStatus(ctx, tenantID, periodID, target, actor.ID)
	if err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actor.ID,
			Action:   "period." + string(target),
			Entity:   "accounting_period",
			EntityID: fmt.Sprintf("%d", period.ID),
			Outcome:  "success",
			Meta:     map[string]any{"code": period.Code, "from": string(current.Status)},
			At:       s.now(),
		})
	}
	return period, nil
}

// List returns periods newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Period, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID, limit)
}
