package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lekha-erp/lekha-erp/internal/platform/db"
)

const accountColumns = `id, tenant_id, code, name, account_group, account_type, normal_balance,
opening_balance, opening_normal, balance, is_system, is_active, entity_kind, entity_id, created_at, updated_at`

// Repository persists ledger accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes account operations bound to one transaction.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, tenantID uuid.UUID, accountID int64) (Account, error)
	ApplyDelta(ctx context.Context, tenantID uuid.UUID, accountID int64, delta float64) error
	InsertAccount(ctx context.Context, tenantID uuid.UUID, in CreateInput, normal NormalBalance, system bool) (Account, error)
	UpdateAccount(ctx context.Context, tenantID uuid.UUID, accountID int64, name string, active bool) (Account, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a          Account
		entityKind *string
		entityID   *uuid.UUID
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Group, &a.Type, &a.Normal,
		&a.OpeningBalance, &a.OpeningNormal, &a.Balance, &a.IsSystem, &a.IsActive,
		&entityKind, &entityID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	if entityKind != nil && entityID != nil {
		a.Entity = &EntityRef{Kind: EntityKind(*entityKind), ID: *entityID}
	}
	return a, nil
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, tenantID uuid.UUID, accountID int64) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, accountID)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) ApplyDelta(ctx context.Context, tenantID uuid.UUID, accountID int64, delta float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_accounts SET balance = balance + $3, updated_at = NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) InsertAccount(ctx context.Context, tenantID uuid.UUID, in CreateInput, normal NormalBalance, system bool) (Account, error) {
	var entityKind, entityID any
	if in.Entity != nil {
		entityKind = string(in.Entity.Kind)
		entityID = in.Entity.ID
	}
	openingNormal := in.OpeningNormal
	if openingNormal == "" {
		openingNormal = normal
	}
	opening := signedOpening(in.OpeningBalance, openingNormal, normal)
	row := r.tx.QueryRow(ctx, `INSERT INTO ledger_accounts
(tenant_id, code, name, account_group, account_type, normal_balance, opening_balance, opening_normal, balance, is_system, is_active, entity_kind, entity_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,true,$11,$12)
RETURNING `+accountColumns,
		tenantID, in.Code, in.Name, in.Group, in.Type, normal, in.OpeningBalance, openingNormal, opening, system, entityKind, entityID)
	account, err := scanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, tenantID uuid.UUID, accountID int64, name string, active bool) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE ledger_accounts SET name=$3, is_active=$4, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2
RETURNING `+accountColumns, tenantID, accountID, name, active)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// signedOpening folds the opening direction into the account's own normal side.
func signedOpening(amount float64, openingNormal, normal NormalBalance) float64 {
	if amount == 0 {
		return 0
	}
	if openingNormal == normal {
		return amount
	}
	return -amount
}

// GetByID fetches one account outside a transaction.
func (r *Repository) GetByID(ctx context.Context, tenantID uuid.UUID, accountID int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=$1 AND id=$2`, tenantID, accountID)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// GetByCode fetches one account by its tenant-scoped code.
func (r *Repository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// ListByGroup returns active accounts of one group ordered by code.
func (r *Repository) ListByGroup(ctx context.Context, tenantID uuid.UUID, group AccountGroup) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts
WHERE tenant_id=$1 AND account_group=$2 AND is_active ORDER BY code`, tenantID, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// BalanceAsOf folds posted journal lines into the account balance up to and
// including the supplied date. The fold over immutable lines is authoritative;
// the stored balance column is a cache rebuilt from the same rows.
func (r *Repository) BalanceAsOf(ctx context.Context, tenantID uuid.UUID, accountID int64, asOf time.Time) (float64, error) {
	account, err := r.GetByID(ctx, tenantID, accountID)
	if err != nil {
		return 0, err
	}
	var debit, credit float64
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.tenant_id=$1 AND l.account_id=$2 AND e.entry_date <= $3`, tenantID, accountID, asOf).Scan(&debit, &credit)
	if err != nil {
		return 0, err
	}
	opening := signedOpening(account.OpeningBalance, account.OpeningNormal, account.Normal)
	return opening + account.Delta(debit, credit), nil
}
