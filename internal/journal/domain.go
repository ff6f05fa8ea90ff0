package journal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// VoucherType enumerates the closed set of accounting voucher categories.
// Every dispatch over voucher types must handle all of these; Valid gates
// anything arriving from outside.
type VoucherType string

const (
	VoucherSale       VoucherType = "SALE"
	VoucherPurchase   VoucherType = "PURCHASE"
	VoucherReceipt    VoucherType = "RECEIPT"
	VoucherPayment    VoucherType = "PAYMENT"
	VoucherJournal    VoucherType = "JOURNAL"
	VoucherContra     VoucherType = "CONTRA"
	VoucherDebitNote  VoucherType = "DEBIT_NOTE"
	VoucherCreditNote VoucherType = "CREDIT_NOTE"
)

// Prefix returns the fixed voucher number prefix for the type.
func (v VoucherType) Prefix() string {
	switch v {
	case VoucherSale:
		return "SAL-"
	case VoucherPurchase:
		return "PUR-"
	case VoucherReceipt:
		return "RCP-"
	case VoucherPayment:
		return "PAY-"
	case VoucherJournal:
		return "JRN-"
	case VoucherContra:
		return "CON-"
	case VoucherDebitNote:
		return "DBN-"
	case VoucherCreditNote:
		return "CRN-"
	}
	return ""
}

// Valid reports whether the voucher type belongs to the closed set.
func (v VoucherType) Valid() bool {
	return v.Prefix() != ""
}

// FormatNumber renders the full voucher number from the per-type sequence.
func (v VoucherType) FormatNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", v.Prefix(), seq)
}

// EntryClass is a derived, read-only grouping for downstream consumers.
// It never participates in balance math.
type EntryClass string

const (
	ClassSale           EntryClass = "SALE"
	ClassPurchase       EntryClass = "PURCHASE"
	ClassExpense        EntryClass = "EXPENSE"
	ClassPayment        EntryClass = "PAYMENT"
	ClassReceipt        EntryClass = "RECEIPT"
	ClassAdjustment     EntryClass = "ADJUSTMENT"
	ClassDepreciation   EntryClass = "DEPRECIATION"
	ClassContra         EntryClass = "CONTRA"
	ClassOpeningBalance EntryClass = "OPENING_BALANCE"
	ClassSystem         EntryClass = "SYSTEM"
)

// Classify attaches a grouping from source type, voucher type and narration
// heuristics, in that order of precedence.
func Classify(sourceType string, voucher VoucherType, narration string) EntryClass {
	source := strings.ToUpper(sourceType)
	switch {
	case strings.Contains(source, "OPENING"):
		return ClassOpeningBalance
	case strings.Contains(source, "REVERSAL"), strings.Contains(source, "ADJUST"):
		return ClassAdjustment
	case strings.Contains(source, "SYSTEM"):
		return ClassSystem
	}
	switch voucher {
	case VoucherSale:
		return ClassSale
	case VoucherPurchase:
		return ClassPurchase
	case VoucherReceipt:
		return ClassReceipt
	case VoucherPayment:
		return ClassPayment
	case VoucherContra:
		return ClassContra
	case VoucherDebitNote, VoucherCreditNote:
		return ClassAdjustment
	case VoucherJournal:
		// fall through to narration heuristics
	}
	lowered := strings.ToLower(narration)
	switch {
	case strings.Contains(lowered, "depreciation"):
		return ClassDepreciation
	case strings.Contains(lowered, "opening"):
		return ClassOpeningBalance
	case strings.Contains(lowered, "expense"), strings.Contains(lowered, "rent"), strings.Contains(lowered, "salary"):
		return ClassExpense
	}
	return ClassSystem
}

// Entry captures one posted, append-only journal entry.
type Entry struct {
	ID          int64
	TenantID    uuid.UUID
	VoucherType VoucherType
	VoucherNo   string
	EntryDate   time.Time
	Narration   string
	SourceType  string
	SourceID    uuid.UUID
	Class       EntryClass
	TotalDebit  float64
	TotalCredit float64
	Locked      bool
	PostedBy    int64
	PostedAt    time.Time
	Lines       []Line
}

// Line stores a debit or credit against one ledger account. Exactly one of
// the two sides is non-zero.
type Line struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Debit     float64
	Credit    float64
}

// LineInput describes a journal line for a posting request.
type LineInput struct {
	AccountID int64   `json:"account_id" validate:"required,gt=0"`
	Debit     float64 `json:"debit" validate:"gte=0"`
	Credit    float64 `json:"credit" validate:"gte=0"`
}

// PostingInput groups fields required to post an entry.
type PostingInput struct {
	VoucherType VoucherType `json:"voucher_type" validate:"required"`
	EntryDate   time.Time   `json:"entry_date" validate:"required"`
	Narration   string      `json:"narration"`
	SourceType  string      `json:"source_type" validate:"required"`
	SourceID    uuid.UUID   `json:"source_id" validate:"required"`
	Lines       []LineInput `json:"lines" validate:"required,min=2,dive"`
	OwnerUnlock bool        `json:"-"`
}

// ReverseInput wraps parameters for posting a correction entry. OwnerUnlock
// never comes from the wire; only the PIN gate can grant it.
type ReverseInput struct {
	SourceType  string    `json:"source_type"`
	SourceID    uuid.UUID `json:"source_id"`
	Date        time.Time `json:"date"`
	Narration   string    `json:"narration"`
	OwnerUnlock bool      `json:"-"`
}

var (
	// ErrUnbalanced indicates total debit differs from total credit.
	ErrUnbalanced = errors.New("journal: entry is unbalanced")
	// ErrTooFewLines indicates fewer than two lines.
	ErrTooFewLines = errors.New("journal: entry requires at least two lines")
	// ErrUnknownLedger indicates a referenced account is absent for the tenant.
	ErrUnknownLedger = errors.New("journal: referenced ledger account not found")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("journal: entry not found")
	// ErrEntryLocked indicates period close froze the entry against corrections.
	ErrEntryLocked = errors.New("journal: entry locked by period close")
	// ErrInvalidVoucherType indicates a voucher type outside the closed set.
	ErrInvalidVoucherType = errors.New("journal: invalid voucher type")
)

// Validate ensures posting input meets the balance contract before any
// repository call, so a violation can never leave partial writes.
func (in PostingInput) Validate() error {
	if !in.VoucherType.Valid() {
		return ErrInvalidVoucherType
	}
	if in.EntryDate.IsZero() {
		return errors.New("journal: entry date required")
	}
	if in.SourceType == "" {
		return errors.New("journal: source type required")
	}
	if in.SourceID == uuid.Nil {
		return errors.New("journal: source id required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journal: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("journal: line %d negative amount", idx)
		}
		oneSided := (line.Debit > 0) != (line.Credit > 0)
		if !oneSided {
			return fmt.Errorf("journal: line %d must have exactly one non-zero side", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) >= shared.MinorUnit {
		return ErrUnbalanced
	}
	return nil
}

// Totals returns the debit and credit sums of the input lines.
func (in PostingInput) Totals() (debit, credit float64) {
	for _, line := range in.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}
