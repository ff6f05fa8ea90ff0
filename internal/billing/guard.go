package billing

import (
	"fmt"
	"time"
)

// CanEdit decides whether a bill may be edited right now. Draft documents
// are free; unpaid ones are free inside the tenant's edit window; paid and
// printed ones always need authorization; a GST-filed bill is permanently
// immutable and no PIN can flip that.
func CanEdit(bill Bill, editWindow time.Duration, now time.Time) CheckResult {
	state := DeriveState(bill)
	switch state {
	case StateDraft:
		return CheckResult{Allowed: true, Reason: "draft documents are freely editable", State: state}
	case StateUnpaid:
		age := now.Sub(bill.BillDate)
		if age <= editWindow {
			return CheckResult{Allowed: true, Reason: fmt.Sprintf("within %d minute edit window", int(editWindow.Minutes())), State: state}
		}
		return CheckResult{
			Reason:         fmt.Sprintf("edit window of %d minutes elapsed", int(editWindow.Minutes())),
			PinCanOverride: true,
			State:          state,
		}
	case StatePaid, StatePrinted:
		return CheckResult{
			Reason:         fmt.Sprintf("bill is %s and locked", state.Display()),
			PinCanOverride: true,
			State:          state,
		}
	case StateGSTFiled:
		return CheckResult{Reason: "bill is filed with the tax authority and permanently immutable", State: state}
	}
	return CheckResult{Reason: "unknown state", State: state}
}

// CanDelete decides whether a bill may be deleted. Deletion is stricter than
// editing: an unpaid bill always needs authorization, and a paid or printed
// bill can never be deleted; corrections go through a reversal instead.
func CanDelete(bill Bill, now time.Time) CheckResult {
	state := DeriveState(bill)
	switch state {
	case StateDraft:
		return CheckResult{Allowed: true, Reason: "draft documents can be discarded", State: state}
	case StateUnpaid:
		return CheckResult{
			Reason:         "deleting an issued bill always requires authorization",
			PinCanOverride: true,
			State:          state,
		}
	case StatePaid, StatePrinted:
		return CheckResult{Reason: fmt.Sprintf("a %s bill cannot be deleted; post a reversal instead", state.Display()), State: state}
	case StateGSTFiled:
		return CheckResult{Reason: "bill is filed with the tax authority and permanently immutable", State: state}
	}
	return CheckResult{Reason: "unknown state", State: state}
}
