package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var guardNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func unpaidBill(age time.Duration) Bill {
	return Bill{Status: StatusUnpaid, BillDate: guardNow.Add(-age)}
}

func TestDeriveStateOrdering(t *testing.T) {
	assert.Equal(t, StateDraft, DeriveState(Bill{Status: StatusDraft}))
	assert.Equal(t, StateUnpaid, DeriveState(Bill{Status: StatusUnpaid}))
	assert.Equal(t, StatePaid, DeriveState(Bill{Status: StatusUnpaid, PaidAmount: 50}))
	assert.Equal(t, StatePaid, DeriveState(Bill{Status: StatusPartial}))
	assert.Equal(t, StatePrinted, DeriveState(Bill{Status: StatusPaid, PaidAmount: 50, PrintCount: 1}))

	// The filed flag dominates everything else.
	assert.Equal(t, StateGSTFiled, DeriveState(Bill{Status: StatusDraft, IsGSTFiled: true}))
}

func TestLockRankNeverDecreases(t *testing.T) {
	assert.Less(t, StateDraft.LockRank(), StateUnpaid.LockRank())
	assert.Less(t, StateUnpaid.LockRank(), StatePaid.LockRank())
	assert.Equal(t, StatePaid.LockRank(), StatePrinted.LockRank())
	assert.Less(t, StatePrinted.LockRank(), StateGSTFiled.LockRank())
}

func TestCanEditInsideWindow(t *testing.T) {
	result := CanEdit(unpaidBill(25*time.Minute), 30*time.Minute, guardNow)
	assert.True(t, result.Allowed)
	assert.False(t, result.PinCanOverride)
	assert.Equal(t, StateUnpaid, result.State)
}

func TestCanEditAfterWindowNeedsOverride(t *testing.T) {
	result := CanEdit(unpaidBill(35*time.Minute), 30*time.Minute, guardNow)
	assert.False(t, result.Allowed)
	assert.True(t, result.PinCanOverride)
	assert.Equal(t, StateUnpaid, result.State)
}

func TestCanEditDraftAlwaysFree(t *testing.T) {
	result := CanEdit(Bill{Status: StatusDraft, BillDate: guardNow.Add(-48 * time.Hour)}, 30*time.Minute, guardNow)
	assert.True(t, result.Allowed)
}

func TestCanEditPaidAndPrintedNeedOverride(t *testing.T) {
	paid := CanEdit(Bill{Status: StatusPaid, PaidAmount: 100, BillDate: guardNow}, 30*time.Minute, guardNow)
	assert.False(t, paid.Allowed)
	assert.True(t, paid.PinCanOverride)

	printed := CanEdit(Bill{Status: StatusUnpaid, PrintCount: 2, BillDate: guardNow}, 30*time.Minute, guardNow)
	assert.False(t, printed.Allowed)
	assert.True(t, printed.PinCanOverride)
}

func TestCanEditGSTFiledAbsolute(t *testing.T) {
	result := CanEdit(Bill{Status: StatusUnpaid, IsGSTFiled: true, BillDate: guardNow}, 30*time.Minute, guardNow)
	assert.False(t, result.Allowed)
	assert.False(t, result.PinCanOverride)
	assert.Equal(t, StateGSTFiled, result.State)
}

func TestCanDeleteDraftFree(t *testing.T) {
	result := CanDelete(Bill{Status: StatusDraft, BillDate: guardNow}, guardNow)
	assert.True(t, result.Allowed)
}

func TestCanDeleteUnpaidAlwaysNeedsOverride(t *testing.T) {
	// Even inside the edit window, deletion is gated.
	result := CanDelete(unpaidBill(5*time.Minute), guardNow)
	assert.False(t, result.Allowed)
	assert.True(t, result.PinCanOverride)
}

func TestCanDeletePrintedNeverAllowed(t *testing.T) {
	result := CanDelete(Bill{Status: StatusUnpaid, PrintCount: 1, BillDate: guardNow}, guardNow)
	assert.False(t, result.Allowed)
	assert.False(t, result.PinCanOverride)
}

func TestCanDeletePaidNeverAllowed(t *testing.T) {
	result := CanDelete(Bill{Status: StatusPaid, PaidAmount: 118, BillDate: guardNow}, guardNow)
	assert.False(t, result.Allowed)
	assert.False(t, result.PinCanOverride)
}

func TestCanDeleteGSTFiledAbsolute(t *testing.T) {
	result := CanDelete(Bill{Status: StatusUnpaid, IsGSTFiled: true, BillDate: guardNow}, guardNow)
	assert.False(t, result.Allowed)
	assert.False(t, result.PinCanOverride)
}
