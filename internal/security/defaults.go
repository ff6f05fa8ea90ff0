package security

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Defaults is the pre-onboarding security policy, fed from configuration and
// applied whenever a tenant has not stored its own settings row yet.
type Defaults struct {
	MaxPinAttempts  int
	LockoutDuration time.Duration
}

// Settings materializes the defaults for one tenant. There is no PIN hash
// until the owner sets one, so PIN-gated overrides stay denied while routine
// policy lookups (edit window, discount limit) get the stock values.
func (d Defaults) Settings(tenantID uuid.UUID) Settings {
	attempts := d.MaxPinAttempts
	if attempts <= 0 {
		attempts = 5
	}
	lockout := d.LockoutDuration
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return Settings{
		TenantID:           tenantID,
		MaxDiscountPercent: 100,
		BillEditWindowMins: 30,
		MaxPinAttempts:     attempts,
		LockoutDuration:    lockout,
	}
}

// DefaultedSettings decorates a SettingsPort, substituting the configured
// defaults for tenants with no stored settings row.
type DefaultedSettings struct {
	inner    SettingsPort
	defaults Defaults
}

// NewDefaultedSettings constructs the decorator.
func NewDefaultedSettings(inner SettingsPort, defaults Defaults) *DefaultedSettings {
	return &DefaultedSettings{inner: inner, defaults: defaults}
}

// GetSettings returns the stored settings, or the defaults when none exist.
func (p *DefaultedSettings) GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error) {
	settings, err := p.inner.GetSettings(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return p.defaults.Settings(tenantID), nil
		}
		return Settings{}, err
	}
	return settings, nil
}

// RecordAttempt delegates to the underlying store.
func (p *DefaultedSettings) RecordAttempt(ctx context.Context, result VerificationResult, tenantID uuid.UUID) error {
	return p.inner.RecordAttempt(ctx, result, tenantID)
}
