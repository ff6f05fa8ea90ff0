package security

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// Throttle tracks failed PIN attempts per actor/action class in redis and
// locks the class out once the tenant's limit is crossed.
type Throttle struct {
	client   *redis.Client
	fallback Defaults
}

// NewThrottle constructs a Throttle.
func NewThrottle(client *redis.Client) *Throttle {
	return &Throttle{
		client:   client,
		fallback: Defaults{MaxPinAttempts: 5, LockoutDuration: 15 * time.Minute},
	}
}

// WithFallback sets the policy applied when a tenant's settings carry no
// throttle limits.
func (t *Throttle) WithFallback(d Defaults) *Throttle {
	if d.MaxPinAttempts > 0 {
		t.fallback.MaxPinAttempts = d.MaxPinAttempts
	}
	if d.LockoutDuration > 0 {
		t.fallback.LockoutDuration = d.LockoutDuration
	}
	return t
}

// Allowed reports whether the actor may attempt the action class.
func (t *Throttle) Allowed(ctx context.Context, tenantID uuid.UUID, actorID int64, class string) (bool, error) {
	if t == nil || t.client == nil {
		return true, nil
	}
	locked, err := t.client.Exists(ctx, shared.PinLockoutKey(tenantID, actorID, class)).Result()
	if err != nil {
		return false, err
	}
	return locked == 0, nil
}

// RecordFailure counts one failed attempt and applies the lockout when the
// policy's limit is reached. The failure counter expires with the lockout
// window so the backoff resets on its own.
func (t *Throttle) RecordFailure(ctx context.Context, tenantID uuid.UUID, actorID int64, class string, policy Settings) error {
	if t == nil || t.client == nil {
		return nil
	}
	maxAttempts := policy.MaxPinAttempts
	if maxAttempts <= 0 {
		maxAttempts = t.fallback.MaxPinAttempts
	}
	lockout := policy.LockoutDuration
	if lockout <= 0 {
		lockout = t.fallback.LockoutDuration
	}
	key := shared.PinAttemptKey(tenantID, actorID, class)
	fails, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if fails == 1 {
		if err := t.client.Expire(ctx, key, lockout).Err(); err != nil {
			return err
		}
	}
	if fails >= int64(maxAttempts) {
		return t.client.Set(ctx, shared.PinLockoutKey(tenantID, actorID, class), "1", lockout).Err()
	}
	return nil
}

// Reset clears the failure counter after a successful verification.
func (t *Throttle) Reset(ctx context.Context, tenantID uuid.UUID, actorID int64, class string) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Del(ctx, shared.PinAttemptKey(tenantID, actorID, class)).Err()
}
