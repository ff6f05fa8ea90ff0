package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

type mockSettingsStore struct {
	settings Settings
	attempts []VerificationResult
}

func (m *mockSettingsStore) GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error) {
	return m.settings, nil
}

func (m *mockSettingsStore) RecordAttempt(ctx context.Context, result VerificationResult, tenantID uuid.UUID) error {
	m.attempts = append(m.attempts, result)
	return nil
}

type mockAlerts struct {
	alerts []VerificationResult
}

func (m *mockAlerts) FraudAlert(ctx context.Context, tenantID uuid.UUID, result VerificationResult) error {
	m.alerts = append(m.alerts, result)
	return nil
}

func mustHash(t *testing.T, pin string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func gateFixture(t *testing.T, settings Settings) (*Service, *mockSettingsStore, *mockAlerts, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &mockSettingsStore{settings: settings}
	alerts := &mockAlerts{}
	svc := NewService(store, NewThrottle(client), alerts, nil, nil)
	ctx := shared.ContextWithTenant(context.Background(), uuid.New())
	return svc, store, alerts, ctx
}

func defaultSettings(t *testing.T) Settings {
	return Settings{
		OwnerPinHash:       mustHash(t, "4321"),
		MaxDiscountPercent: 10,
		CashMismatchLimit:  100,
		MaxPinAttempts:     3,
		LockoutDuration:    15 * time.Minute,
	}
}

func TestVerifyCorrectPinAuthorizes(t *testing.T) {
	svc, store, _, ctx := gateFixture(t, defaultSettings(t))

	result, err := svc.Verify(ctx, VerifyRequest{
		Action: ActionBillEditAfterWindow,
		Pin:    "4321",
		Actor:  shared.Actor{ID: 2, Role: shared.RoleManager},
	})
	require.NoError(t, err)
	assert.True(t, result.Authorized)
	assert.Equal(t, "pin verified", result.Reason)
	require.Len(t, store.attempts, 1)
	assert.True(t, store.attempts[0].Authorized)
}

func TestVerifyWrongPinDenied(t *testing.T) {
	svc, store, _, ctx := gateFixture(t, defaultSettings(t))

	result, err := svc.Verify(ctx, VerifyRequest{
		Action: ActionBillEditAfterWindow,
		Pin:    "9999",
		Actor:  shared.Actor{ID: 2, Role: shared.RoleManager},
	})
	assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)
	assert.False(t, result.Authorized)
	require.Len(t, store.attempts, 1)
	assert.False(t, store.attempts[0].Authorized)
}

func TestVerifyOwnerOnlyDeniesManagerWithCorrectPin(t *testing.T) {
	svc, store, _, ctx := gateFixture(t, defaultSettings(t))

	result, err := svc.Verify(ctx, VerifyRequest{
		Action: ActionBillDelete,
		Pin:    "4321",
		Actor:  shared.Actor{ID: 2, Role: shared.RoleManager},
	})
	assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)
	assert.False(t, result.Authorized)
	// The denial reason names the role, never the PIN outcome.
	assert.Equal(t, "action requires owner role", result.Reason)
	require.Len(t, store.attempts, 1)
}

func TestVerifyOwnerOnlyAllowsOwner(t *testing.T) {
	svc, _, alerts, ctx := gateFixture(t, defaultSettings(t))

	result, err := svc.Verify(ctx, VerifyRequest{
		Action: ActionBillDelete,
		Pin:    "4321",
		Actor:  shared.Actor{ID: 1, Role: shared.RoleOwner},
	})
	require.NoError(t, err)
	assert.True(t, result.Authorized)

	// A critical success raises the fraud signal even though it was allowed.
	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, ActionBillDelete, alerts.alerts[0].Action)
}

func TestVerifyNonCriticalSuccessRaisesNoAlert(t *testing.T) {
	svc, _, alerts, ctx := gateFixture(t, defaultSettings(t))

	_, err := svc.Verify(ctx, VerifyRequest{
		Action: ActionBillEditAfterWindow,
		Pin:    "4321",
		Actor:  shared.Actor{ID: 1, Role: shared.RoleOwner},
	})
	require.NoError(t, err)
	assert.Empty(t, alerts.alerts)
}

func TestVerifyUnknownActionRejected(t *testing.T) {
	svc, _, _, ctx := gateFixture(t, defaultSettings(t))

	_, err := svc.Verify(ctx, VerifyRequest{
		Action: "FREE_ICE_CREAM",
		Actor:  shared.Actor{ID: 1, Role: shared.RoleOwner},
	})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestVerifyDiscountUnderLimitSkipsPin(t *testing.T) {
	svc, store, _, ctx := gateFixture(t, defaultSettings(t))

	percent := 8.0
	result, err := svc.Verify(ctx, VerifyRequest{
		Action:  ActionDiscountAboveLimit,
		Actor:   shared.Actor{ID: 3, Role: shared.RoleStaff},
		Context: &percent,
	})
	require.NoError(t, err)
	assert.True(t, result.Authorized)
	assert.Contains(t, result.Reason, "within limit")
	require.Len(t, store.attempts, 1)
}

func TestVerifyDiscountOverLimitStillNeedsPin(t *testing.T) {
	svc, _, _, ctx := gateFixture(t, defaultSettings(t))

	percent := 25.0
	_, err := svc.Verify(ctx, VerifyRequest{
		Action:  ActionDiscountAboveLimit,
		Actor:   shared.Actor{ID: 3, Role: shared.RoleStaff},
		Context: &percent,
	})
	assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)

	result, err := svc.Verify(ctx, VerifyRequest{
		Action:  ActionDiscountAboveLimit,
		Pin:     "4321",
		Actor:   shared.Actor{ID: 3, Role: shared.RoleStaff},
		Context: &percent,
	})
	require.NoError(t, err)
	assert.True(t, result.Authorized)
}

func TestVerifyCashMismatchToleranceIsAbsolute(t *testing.T) {
	svc, _, _, ctx := gateFixture(t, defaultSettings(t))

	under := -80.0
	result, err := svc.Verify(ctx, VerifyRequest{
		Action:  ActionCashMismatch,
		Actor:   shared.Actor{ID: 3, Role: shared.RoleStaff},
		Context: &under,
	})
	require.NoError(t, err)
	assert.True(t, result.Authorized)

	over := -150.0
	_, err = svc.Verify(ctx, VerifyRequest{
		Action:  ActionCashMismatch,
		Actor:   shared.Actor{ID: 3, Role: shared.RoleStaff},
		Context: &over,
	})
	assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)
}

func TestVerifyDisabledActionSkipsPin(t *testing.T) {
	settings := defaultSettings(t)
	settings.PinRequired = map[Action]bool{ActionBillEditAfterWindow: false}
	svc, _, _, ctx := gateFixture(t, settings)

	result, err := svc.Verify(ctx, VerifyRequest{
		Action: ActionBillEditAfterWindow,
		Actor:  shared.Actor{ID: 2, Role: shared.RoleManager},
	})
	require.NoError(t, err)
	assert.True(t, result.Authorized)
}

func TestVerifyLockoutAfterRepeatedFailures(t *testing.T) {
	svc, _, _, ctx := gateFixture(t, defaultSettings(t))
	actor := shared.Actor{ID: 5, Role: shared.RoleManager}

	for i := 0; i < 3; i++ {
		_, err := svc.Verify(ctx, VerifyRequest{Action: ActionBillEditAfterWindow, Pin: "0000", Actor: actor})
		assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)
	}

	// Fourth attempt hits the lockout even with the correct PIN.
	_, err := svc.Verify(ctx, VerifyRequest{Action: ActionBillEditAfterWindow, Pin: "4321", Actor: actor})
	assert.ErrorIs(t, err, ErrThrottled)

	// The lockout is per action class; another class still verifies.
	result, err := svc.Verify(ctx, VerifyRequest{Action: ActionDataExport, Pin: "4321", Actor: actor})
	require.NoError(t, err)
	assert.True(t, result.Authorized)
}

func TestVerifySuccessResetsFailureCount(t *testing.T) {
	svc, _, _, ctx := gateFixture(t, defaultSettings(t))
	actor := shared.Actor{ID: 6, Role: shared.RoleManager}

	for i := 0; i < 2; i++ {
		_, err := svc.Verify(ctx, VerifyRequest{Action: ActionBillEditAfterWindow, Pin: "0000", Actor: actor})
		assert.Error(t, err)
	}
	_, err := svc.Verify(ctx, VerifyRequest{Action: ActionBillEditAfterWindow, Pin: "4321", Actor: actor})
	require.NoError(t, err)

	// The counter restarted; two more failures stay under the limit of three.
	for i := 0; i < 2; i++ {
		_, err := svc.Verify(ctx, VerifyRequest{Action: ActionBillEditAfterWindow, Pin: "0000", Actor: actor})
		assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)
	}
}

func TestHashPinRoundTrip(t *testing.T) {
	hash, err := HashPin("123456")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("123456")))

	_, err = HashPin("12")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCatalogOwnerOnlyCoversCriticalActions(t *testing.T) {
	for _, spec := range Catalog() {
		if spec.Severity == SeverityCritical {
			assert.True(t, spec.OwnerOnly, "critical action %s must be owner-only", spec.Action)
		}
	}
}
