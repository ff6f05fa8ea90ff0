package security

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists per-tenant security settings and PIN attempt records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSettings loads the tenant's security policy.
func (r *Repository) GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error) {
	var (
		s        Settings
		toggles  []byte
		lockMins int
	)
	err := r.pool.QueryRow(ctx, `SELECT tenant_id, owner_pin_hash, max_discount_percent, bill_edit_window_mins,
cash_mismatch_limit, approval_amount_limit, pin_required, max_pin_attempts, lockout_mins, updated_at
FROM security_settings WHERE tenant_id=$1`, tenantID).
		Scan(&s.TenantID, &s.OwnerPinHash, &s.MaxDiscountPercent, &s.BillEditWindowMins,
			&s.CashMismatchLimit, &s.ApprovalAmountLimit, &toggles, &s.MaxPinAttempts, &lockMins, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, ErrSettingsNotFound
		}
		return Settings{}, err
	}
	s.LockoutDuration = time.Duration(lockMins) * time.Minute
	if len(toggles) > 0 {
		if err := json.Unmarshal(toggles, &s.PinRequired); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

// UpsertSettings stores the tenant's security policy.
func (r *Repository) UpsertSettings(ctx context.Context, s Settings) error {
	toggles, err := json.Marshal(s.PinRequired)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO security_settings
(tenant_id, owner_pin_hash, max_discount_percent, bill_edit_window_mins, cash_mismatch_limit, approval_amount_limit, pin_required, max_pin_attempts, lockout_mins, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
ON CONFLICT (tenant_id) DO UPDATE SET
owner_pin_hash=EXCLUDED.owner_pin_hash,
max_discount_percent=EXCLUDED.max_discount_percent,
bill_edit_window_mins=EXCLUDED.bill_edit_window_mins,
cash_mismatch_limit=EXCLUDED.cash_mismatch_limit,
approval_amount_limit=EXCLUDED.approval_amount_limit,
pin_required=EXCLUDED.pin_required,
max_pin_attempts=EXCLUDED.max_pin_attempts,
lockout_mins=EXCLUDED.lockout_mins,
updated_at=NOW()`,
		s.TenantID, s.OwnerPinHash, s.MaxDiscountPercent, s.BillEditWindowMins,
		s.CashMismatchLimit, s.ApprovalAmountLimit, toggles, s.MaxPinAttempts,
		int(s.LockoutDuration/time.Minute))
	return err
}

// RecordAttempt stores one verification attempt, success or failure.
func (r *Repository) RecordAttempt(ctx context.Context, result VerificationResult, tenantID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO pin_attempts (tenant_id, actor_id, actor_role, action, authorized, reason, attempted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		tenantID, result.ActorID, result.ActorRole, result.Action, result.Authorized, result.Reason, result.At)
	return err
}
