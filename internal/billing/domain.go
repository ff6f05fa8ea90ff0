package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the stored payment status of a bill. It is an input to state
// derivation, never the state itself.
type Status string

const (
	StatusDraft   Status = "DRAFT"
	StatusUnpaid  Status = "UNPAID"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

// State is the derived lifecycle position of a bill. It is a pure function
// of the stored facts (status, print count, paid amount, GST-filed flag) and
// is never persisted as authoritative.
type State string

const (
	StateDraft    State = "DRAFT"
	StateUnpaid   State = "UNPAID"
	StatePaid     State = "PAID"
	StatePrinted  State = "PRINTED"
	StateGSTFiled State = "GST_FILED"
)

// Display returns the user-facing label for the state.
func (s State) Display() string {
	switch s {
	case StateDraft:
		return "Draft"
	case StateUnpaid:
		return "Unpaid"
	case StatePaid:
		return "Paid"
	case StatePrinted:
		return "Printed"
	case StateGSTFiled:
		return "GST Filed"
	}
	return "Unknown"
}

// LockRank orders states by lock strictness. Paid and printed share a rank:
// both are locked, neither is stricter than the other. Rank never decreases
// over a bill's life; GST-filed is absorbing.
func (s State) LockRank() int {
	switch s {
	case StateDraft:
		return 0
	case StateUnpaid:
		return 1
	case StatePaid, StatePrinted:
		return 2
	case StateGSTFiled:
		return 3
	}
	return 3
}

// Item is one requested sale line on a bill.
type Item struct {
	ID        int64
	BillID    uuid.UUID
	ProductID uuid.UUID
	Name      string
	Quantity  float64
	Price     float64
	Discount  float64
	Tax       float64
	Total     float64
	// BatchID carries a manual batch choice which always wins over FEFO.
	BatchID *int64
}

// Bill is a sale document with its line items.
type Bill struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	CustomerID    *uuid.UUID
	Status        Status
	Items         []Item
	Subtotal      float64
	DiscountTotal float64
	GSTAmount     float64
	Total         float64
	PaidAmount    float64
	PrintCount    int
	IsGSTFiled    bool
	BillDate      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeriveState computes the lifecycle state from the stored facts. The filed
// flag dominates, then printing, then payment, then the draft marker.
func DeriveState(b Bill) State {
	switch {
	case b.IsGSTFiled:
		return StateGSTFiled
	case b.PrintCount > 0:
		return StatePrinted
	case b.PaidAmount > 0 || b.Status == StatusPaid || b.Status == StatusPartial:
		return StatePaid
	case b.Status == StatusDraft:
		return StateDraft
	default:
		return StateUnpaid
	}
}

// CheckResult is the immutability guard's decision for one requested change.
// PinCanOverride is informational: it tells the caller whether the PIN gate
// could flip the denial, it never grants anything by itself.
type CheckResult struct {
	Allowed        bool
	Reason         string
	PinCanOverride bool
	State          State
}

var (
	// ErrBillNotFound indicates a missing bill.
	ErrBillNotFound = errors.New("billing: bill not found")
	// ErrOverpayment indicates a payment beyond the outstanding amount.
	ErrOverpayment = errors.New("billing: payment exceeds outstanding amount")
	// ErrAlreadyFiled indicates a repeated GST filing mark.
	ErrAlreadyFiled = errors.New("billing: bill already GST filed")
)
