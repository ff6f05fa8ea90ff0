package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// RepositoryPort abstracts the account repository for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, tenantID uuid.UUID, accountID int64) (Account, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error)
	ListByGroup(ctx context.Context, tenantID uuid.UUID, group AccountGroup) ([]Account, error)
	BalanceAsOf(ctx context.Context, tenantID uuid.UUID, accountID int64, asOf time.Time) (float64, error)
}

// Service owns the chart of accounts for every tenant. Balances move only
// through posted journal entries, never through direct writes.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditPort
	now   func() time.Time
}

// NewService constructs the registry service.
func NewService(repo RepositoryPort, audit shared.AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// systemAccount seeds one protected account at tenant onboarding.
type systemAccount struct {
	Code  string
	Name  string
	Group AccountGroup
	Type  string
}

var systemChart = []systemAccount{
	{Code: "1000", Name: "Cash In Hand", Group: GroupAsset, Type: "CASH"},
	{Code: "1010", Name: "Bank", Group: GroupAsset, Type: "BANK"},
	{Code: "1100", Name: "Sundry Debtors", Group: GroupAsset, Type: "RECEIVABLE"},
	{Code: "1200", Name: "Inventory", Group: GroupAsset, Type: "STOCK"},
	{Code: "1400", Name: "GST Input", Group: GroupAsset, Type: "TAX"},
	{Code: "2400", Name: "GST Output", Group: GroupLiability, Type: "TAX"},
	{Code: "3000", Name: "Owner Capital", Group: GroupEquity, Type: "CAPITAL"},
	{Code: "4000", Name: "Sales", Group: GroupIncome, Type: "SALES"},
	{Code: "5000", Name: "Purchases", Group: GroupExpense, Type: "PURCHASES"},
	{Code: "5900", Name: "Rounding Off", Group: GroupExpense, Type: "ROUNDING"},
}

// EnsureSystemChart creates the protected accounts for a new tenant. Existing
// codes are left untouched so the call is safe to repeat.
func (s *Service) EnsureSystemChart(ctx context.Context) error {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, sa := range systemChart {
			normal, err := NormalFor(sa.Group)
			if err != nil {
				return err
			}
			in := CreateInput{Code: sa.Code, Name: sa.Name, Group: sa.Group, Type: sa.Type}
			if _, err := tx.InsertAccount(ctx, tenantID, in, normal, true); err != nil {
				if errors.Is(err, ErrDuplicateCode) {
					continue
				}
				return err
			}
		}
		return nil
	})
}

// Create opens a new tenant account, e.g. a customer or vendor ledger.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Account{}, err
	}
	if err := in.Validate(); err != nil {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	normal, err := NormalFor(in.Group)
	if err != nil {
		return Account{}, err
	}
	var account Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertAccount(ctx, tenantID, in, normal, false)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	if s.audit != nil {
		actor := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actor.ID,
			Action:   "ledger.account.create",
			Entity:   "ledger_account",
			EntityID: fmt.Sprintf("%d", account.ID),
			Outcome:  "success",
			Meta:     map[string]any{"code": account.Code, "group": string(account.Group)},
			At:       s.now(),
		})
	}
	return account, nil
}

// Update renames or deactivates a tenant account. System chart accounts are
// protected and never change after seeding.
func (s *Service) Update(ctx context.Context, accountID int64, in UpdateInput) (Account, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Account{}, err
	}
	if err := in.Validate(); err != nil {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	var account Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccountForUpdate(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		if current.IsSystem {
			return ErrSystemAccount
		}
		name := current.Name
		if in.Name != nil {
			name = *in.Name
		}
		active := current.IsActive
		if in.IsActive != nil {
			active = *in.IsActive
		}
		updated, err := tx.UpdateAccount(ctx, tenantID, accountID, name, active)
		if err != nil {
			return err
		}
		account = updated
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	if s.audit != nil {
		actor := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actor.ID,
			Action:   "ledger.account.update",
			Entity:   "ledger_account",
			EntityID: fmt.Sprintf("%d", account.ID),
			Outcome:  "success",
			Meta:     map[string]any{"name": account.Name, "active": account.IsActive},
			At:       s.now(),
		})
	}
	return account, nil
}

// Get fetches one account by id.
func (s *Service) Get(ctx context.Context, accountID int64) (Account, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Account{}, err
	}
	return s.repo.GetByID(ctx, tenantID, accountID)
}

// GetByCode fetches one account by code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Account{}, err
	}
	return s.repo.GetByCode(ctx, tenantID, code)
}

// ListByGroup returns active accounts of one group.
func (s *Service) ListByGroup(ctx context.Context, group AccountGroup) ([]Account, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := NormalFor(group); err != nil {
		return nil, err
	}
	return s.repo.ListByGroup(ctx, tenantID, group)
}

// BalanceAsOf derives the account balance by folding posted lines.
func (s *Service) BalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (float64, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return s.repo.BalanceAsOf(ctx, tenantID, accountID, asOf)
}
