package security

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// Severity grades protected actions for audit and alerting.
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Action enumerates the closed catalog of PIN-protected operations.
type Action string

const (
	ActionBillEditAfterWindow Action = "BILL_EDIT_AFTER_WINDOW"
	ActionBillDelete          Action = "BILL_DELETE"
	ActionPriceBelowCost      Action = "PRICE_BELOW_COST"
	ActionDiscountAboveLimit  Action = "DISCOUNT_ABOVE_LIMIT"
	ActionCashMismatch        Action = "CASH_MISMATCH"
	ActionPeriodUnlock        Action = "PERIOD_UNLOCK"
	ActionFiledTaxEdit        Action = "FILED_TAX_EDIT"
	ActionRoleChange          Action = "ROLE_CHANGE"
	ActionYearClose           Action = "YEAR_CLOSE"
	ActionCalcOverride        Action = "CALC_OVERRIDE"
	ActionSettingsChange      Action = "SETTINGS_CHANGE"
	ActionDataExport          Action = "DATA_EXPORT"
)

// ActionSpec describes one catalog entry.
type ActionSpec struct {
	Action    Action
	Severity  Severity
	OwnerOnly bool
	// Conditional actions carry a threshold from SecuritySettings; when the
	// numeric context stays under it no PIN is required at all.
	Conditional bool
}

// catalog is the closed set of protected actions. Critical, structurally
// destructive actions are owner-only: a correct manager PIN must still be
// denied for them.
var catalog = map[Action]ActionSpec{
	ActionBillEditAfterWindow: {Action: ActionBillEditAfterWindow, Severity: SeverityMedium},
	ActionBillDelete:          {Action: ActionBillDelete, Severity: SeverityCritical, OwnerOnly: true},
	ActionPriceBelowCost:      {Action: ActionPriceBelowCost, Severity: SeverityMedium},
	ActionDiscountAboveLimit:  {Action: ActionDiscountAboveLimit, Severity: SeverityMedium, Conditional: true},
	ActionCashMismatch:        {Action: ActionCashMismatch, Severity: SeverityHigh, Conditional: true},
	ActionPeriodUnlock:        {Action: ActionPeriodUnlock, Severity: SeverityCritical, OwnerOnly: true},
	ActionFiledTaxEdit:        {Action: ActionFiledTaxEdit, Severity: SeverityCritical, OwnerOnly: true},
	ActionRoleChange:          {Action: ActionRoleChange, Severity: SeverityCritical, OwnerOnly: true},
	ActionYearClose:           {Action: ActionYearClose, Severity: SeverityCritical, OwnerOnly: true},
	ActionCalcOverride:        {Action: ActionCalcOverride, Severity: SeverityCritical, OwnerOnly: true},
	ActionSettingsChange:      {Action: ActionSettingsChange, Severity: SeverityHigh, OwnerOnly: true},
	ActionDataExport:          {Action: ActionDataExport, Severity: SeverityHigh},
}

// Spec returns the catalog entry for an action.
func Spec(action Action) (ActionSpec, bool) {
	spec, ok := catalog[action]
	return spec, ok
}

// Catalog returns a copy of every protected action spec.
func Catalog() []ActionSpec {
	out := make([]ActionSpec, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, spec)
	}
	return out
}

// Settings is the per-tenant security policy record.
type Settings struct {
	TenantID            uuid.UUID
	OwnerPinHash        string
	MaxDiscountPercent  float64
	BillEditWindowMins  int
	CashMismatchLimit   float64
	ApprovalAmountLimit float64
	// PinRequired toggles the requirement per action; actions absent from the
	// map fall back to required.
	PinRequired map[Action]bool
	// Throttle policy: after MaxPinAttempts failures the actor/action class is
	// locked out for LockoutDuration. Tenant-configurable, never hardcoded.
	MaxPinAttempts  int
	LockoutDuration time.Duration
	UpdatedAt       time.Time
}

// RequiresPin reports whether the tenant demands a PIN for the action.
func (s Settings) RequiresPin(action Action) bool {
	if s.PinRequired == nil {
		return true
	}
	required, ok := s.PinRequired[action]
	if !ok {
		return true
	}
	return required
}

// VerifyRequest carries one authorization attempt.
type VerifyRequest struct {
	Action Action
	// Pin is the supplied secret, compared against the stored bcrypt hash.
	Pin   string
	Actor shared.Actor
	// Context carries the numeric value for conditional actions, e.g. the
	// discount percent or the cash difference.
	Context *float64
}

// VerificationResult is the gate's decision.
type VerificationResult struct {
	Authorized bool
	Action     Action
	ActorID    int64
	ActorRole  shared.Role
	At         time.Time
	Reason     string
}

var (
	// ErrUnknownAction indicates an action outside the closed catalog.
	ErrUnknownAction = errors.New("security: unknown protected action")
	// ErrThrottled indicates too many failed attempts for the actor/action class.
	ErrThrottled = errors.New("security: too many failed attempts, locked out")
	// ErrSettingsNotFound indicates the tenant has no security settings row.
	ErrSettingsNotFound = errors.New("security: settings not found")
)
