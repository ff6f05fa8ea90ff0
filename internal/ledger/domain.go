package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccountGroup enumerates top-level chart of accounts categories.
type AccountGroup string

const (
	GroupAsset     AccountGroup = "ASSET"
	GroupLiability AccountGroup = "LIABILITY"
	GroupIncome    AccountGroup = "INCOME"
	GroupExpense   AccountGroup = "EXPENSE"
	GroupEquity    AccountGroup = "EQUITY"
)

// NormalBalance enumerates which side grows an account.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// EntityKind enumerates external parties an account can mirror.
type EntityKind string

const (
	EntityCustomer EntityKind = "CUSTOMER"
	EntityVendor   EntityKind = "VENDOR"
	EntityBank     EntityKind = "BANK"
)

// EntityRef links an account to an external customer, vendor or bank record.
type EntityRef struct {
	Kind EntityKind
	ID   uuid.UUID
}

// Account models one chart of accounts node owned by a tenant.
type Account struct {
	ID             int64
	TenantID       uuid.UUID
	Code           string
	Name           string
	Group          AccountGroup
	Type           string
	Normal         NormalBalance
	OpeningBalance float64
	OpeningNormal  NormalBalance
	Balance        float64
	IsSystem       bool
	IsActive       bool
	Entity         *EntityRef
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateInput groups fields required to open a new account.
type CreateInput struct {
	Code           string
	Name           string
	Group          AccountGroup
	Type           string
	OpeningBalance float64
	OpeningNormal  NormalBalance
	Entity         *EntityRef
}

// UpdateInput carries the mutable account fields. Nil pointers leave the
// current value in place.
type UpdateInput struct {
	Name     *string
	IsActive *bool
}

var (
	// ErrAccountNotFound indicates the referenced account is absent for the tenant.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrDuplicateCode indicates an account code collision within the tenant.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrSystemAccount indicates a mutation attempt against a protected account.
	ErrSystemAccount = errors.New("ledger: system account cannot be modified")
)

// NormalFor returns the conventional normal balance for an account group.
func NormalFor(group AccountGroup) (NormalBalance, error) {
	switch group {
	case GroupAsset, GroupExpense:
		return NormalDebit, nil
	case GroupLiability, GroupIncome, GroupEquity:
		return NormalCredit, nil
	}
	return "", fmt.Errorf("ledger: unknown account group %q", group)
}

// Delta converts one posted line into the signed balance movement for the
// account: debit-normal accounts grow with debits, credit-normal with credits.
func (a Account) Delta(debit, credit float64) float64 {
	if a.Normal == NormalDebit {
		return debit - credit
	}
	return credit - debit
}

// Validate ensures update input changes at least one field.
func (in UpdateInput) Validate() error {
	if in.Name == nil && in.IsActive == nil {
		return errors.New("ledger: nothing to update")
	}
	if in.Name != nil && *in.Name == "" {
		return errors.New("ledger: account name required")
	}
	return nil
}

// Validate ensures create input is well formed.
func (in CreateInput) Validate() error {
	if in.Code == "" {
		return errors.New("ledger: account code required")
	}
	if in.Name == "" {
		return errors.New("ledger: account name required")
	}
	if _, err := NormalFor(in.Group); err != nil {
		return err
	}
	if in.OpeningBalance < 0 {
		return errors.New("ledger: opening balance must be >= 0")
	}
	if in.OpeningBalance > 0 && in.OpeningNormal != NormalDebit && in.OpeningNormal != NormalCredit {
		return errors.New("ledger: opening balance direction required")
	}
	return nil
}
