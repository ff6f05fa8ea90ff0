package security

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// SettingsPort abstracts settings and attempt persistence.
type SettingsPort interface {
	GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error)
	RecordAttempt(ctx context.Context, result VerificationResult, tenantID uuid.UUID) error
}

// ThrottlePort abstracts the failed-attempt backoff store.
type ThrottlePort interface {
	Allowed(ctx context.Context, tenantID uuid.UUID, actorID int64, class string) (bool, error)
	RecordFailure(ctx context.Context, tenantID uuid.UUID, actorID int64, class string, policy Settings) error
	Reset(ctx context.Context, tenantID uuid.UUID, actorID int64, class string) error
}

// AlertPort dispatches fraud alerts off the primary transaction path.
type AlertPort interface {
	FraudAlert(ctx context.Context, tenantID uuid.UUID, result VerificationResult) error
}

// Metrics counts gate outcomes; nil disables instrumentation.
type Metrics interface {
	PinVerified(authorized bool)
}

// Service is the PIN authorization gate: the sole mechanism that converts an
// otherwise-denied mutation into an allowed one, and the sole source of
// audit and fraud signals for override attempts.
type Service struct {
	settings SettingsPort
	throttle ThrottlePort
	alerts   AlertPort
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the gate.
func NewService(settings SettingsPort, throttle ThrottlePort, alerts AlertPort, metrics Metrics, logger *slog.Logger) *Service {
	return &Service{settings: settings, throttle: throttle, alerts: alerts, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Verify decides one authorization attempt. The role check runs before the
// hash comparison so an insufficient-role caller never learns whether their
// PIN was correct. Every attempt is durably logged; a failed log write never
// fails the decision.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (VerificationResult, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return VerificationResult{}, err
	}
	spec, ok := Spec(req.Action)
	if !ok {
		return VerificationResult{}, ErrUnknownAction
	}
	settings, err := s.settings.GetSettings(ctx, tenantID)
	if err != nil {
		return VerificationResult{}, err
	}

	result := VerificationResult{
		Action:    req.Action,
		ActorID:   req.Actor.ID,
		ActorRole: req.Actor.Role,
		At:        s.now(),
	}

	if skip, reason := s.thresholdSkip(spec, settings, req.Context); skip {
		result.Authorized = true
		result.Reason = reason
		s.record(ctx, tenantID, result, spec)
		return result, nil
	}
	if !settings.RequiresPin(req.Action) {
		result.Authorized = true
		result.Reason = "pin requirement disabled for action"
		s.record(ctx, tenantID, result, spec)
		return result, nil
	}

	class := string(req.Action)
	allowed, err := s.throttle.Allowed(ctx, tenantID, req.Actor.ID, class)
	if err != nil {
		return VerificationResult{}, err
	}
	if !allowed {
		result.Reason = "locked out after repeated failures"
		s.record(ctx, tenantID, result, spec)
		return result, ErrThrottled
	}

	// Role sufficiency first: a correct but insufficient-role PIN must still
	// deny, without leaking hash correctness.
	if spec.OwnerOnly && req.Actor.Role != shared.RoleOwner {
		result.Reason = "action requires owner role"
		_ = s.throttle.RecordFailure(ctx, tenantID, req.Actor.ID, class, settings)
		s.record(ctx, tenantID, result, spec)
		return result, fmt.Errorf("%w: %s", shared.ErrAuthorizationDenied, result.Reason)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(settings.OwnerPinHash), []byte(req.Pin)); err != nil {
		result.Reason = "pin mismatch"
		_ = s.throttle.RecordFailure(ctx, tenantID, req.Actor.ID, class, settings)
		s.record(ctx, tenantID, result, spec)
		return result, fmt.Errorf("%w: pin mismatch", shared.ErrAuthorizationDenied)
	}

	result.Authorized = true
	result.Reason = "pin verified"
	_ = s.throttle.Reset(ctx, tenantID, req.Actor.ID, class)
	s.record(ctx, tenantID, result, spec)
	return result, nil
}

// thresholdSkip evaluates conditional actions against the tenant policy.
func (s *Service) thresholdSkip(spec ActionSpec, settings Settings, value *float64) (bool, string) {
	if !spec.Conditional || value == nil {
		return false, ""
	}
	switch spec.Action {
	case ActionDiscountAboveLimit:
		if *value <= settings.MaxDiscountPercent {
			return true, fmt.Sprintf("discount %.2f%% within limit %.2f%%", *value, settings.MaxDiscountPercent)
		}
	case ActionCashMismatch:
		if math.Abs(*value) <= settings.CashMismatchLimit {
			return true, fmt.Sprintf("mismatch %s within tolerance %s", shared.FormatAmount(*value), shared.FormatAmount(settings.CashMismatchLimit))
		}
	}
	return false, ""
}

// record logs the attempt durably and raises the fraud signal for critical
// successes. Both are side channels: neither can fail the verification.
func (s *Service) record(ctx context.Context, tenantID uuid.UUID, result VerificationResult, spec ActionSpec) {
	if s.metrics != nil {
		s.metrics.PinVerified(result.Authorized)
	}
	if err := s.settings.RecordAttempt(ctx, result, tenantID); err != nil && s.logger != nil {
		s.logger.Warn("pin attempt log failed", slog.String("action", string(result.Action)), slog.Any("error", err))
	}
	if result.Authorized && spec.Severity == SeverityCritical && s.alerts != nil {
		if err := s.alerts.FraudAlert(ctx, tenantID, result); err != nil && s.logger != nil {
			s.logger.Warn("fraud alert dispatch failed", slog.String("action", string(result.Action)), slog.Any("error", err))
		}
	}
}

// HashPin derives the bcrypt hash stored in settings.
func HashPin(pin string) (string, error) {
	if len(pin) < 4 {
		return "", fmt.Errorf("%w: pin too short", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
