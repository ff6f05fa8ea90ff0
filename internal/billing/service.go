package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/allocation"
	"github.com/lekha-erp/lekha-erp/internal/journal"
	"github.com/lekha-erp/lekha-erp/internal/platform/db"
	"github.com/lekha-erp/lekha-erp/internal/security"
	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// maxConflictRetries bounds optimistic retries on serialization conflicts
// before the failure surfaces as ErrConcurrencyConflict.
const maxConflictRetries = 3

// PinGate abstracts the PIN authorization gate: the only component that can
// turn a guard denial into an allowance.
type PinGate interface {
	Verify(ctx context.Context, req security.VerifyRequest) (security.VerificationResult, error)
}

// PolicyPort supplies the tenant's security settings, e.g. the edit window.
type PolicyPort interface {
	GetSettings(ctx context.Context, tenantID uuid.UUID) (security.Settings, error)
}

// AccountResolver maps chart codes to ledger account ids for the tenant.
type AccountResolver interface {
	ResolveCode(ctx context.Context, code string) (int64, error)
}

// RepositoryPort abstracts bill persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBill(ctx context.Context, tenantID, billID uuid.UUID) (Bill, error)
}

// AccountCodes names the system accounts a sale touches.
type AccountCodes struct {
	Cash      string
	Debtors   string
	Sales     string
	GSTOutput string
}

// DefaultAccountCodes matches the seeded system chart.
func DefaultAccountCodes() AccountCodes {
	return AccountCodes{Cash: "1000", Debtors: "1100", Sales: "4000", GSTOutput: "2400"}
}

// ItemInput describes one requested sale line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Quantity  float64   `json:"quantity" validate:"gt=0"`
	Price     float64   `json:"price" validate:"gte=0"`
	Discount  float64   `json:"discount" validate:"gte=0"`
	Tax       float64   `json:"tax" validate:"gte=0"`
	BatchID   *int64    `json:"batch_id"`
}

// CreateBillInput groups fields to finalize (or draft) a sale.
type CreateBillInput struct {
	CustomerID *uuid.UUID  `json:"customer_id"`
	BillDate   time.Time   `json:"bill_date"`
	Draft      bool        `json:"draft"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
	PaidAmount float64     `json:"paid_amount" validate:"gte=0"`
	Pin        string      `json:"pin"`
}

// EditBillInput groups fields to rewrite a bill's lines.
type EditBillInput struct {
	BillID uuid.UUID   `json:"bill_id" validate:"required"`
	Items  []ItemInput `json:"items" validate:"required,min=1,dive"`
	Pin    string      `json:"pin"`
}

// SaleOutcome reports a finalized sale back to the billing layer: the stored
// document plus the allocation results, shortfalls included.
type SaleOutcome struct {
	Bill        Bill
	Allocations []allocation.Result
}

// Service orchestrates the bill lifecycle: finalize, edit, delete, payment,
// print and GST filing. The guard decides, the PIN gate overrides, and every
// money or stock effect commits in one transaction.
type Service struct {
	repo     RepositoryPort
	gate     PinGate
	policy   PolicyPort
	journals *journal.Service
	accounts AccountResolver
	codes    AccountCodes
	audit    shared.AuditPort
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the billing service.
func NewService(repo RepositoryPort, gate PinGate, policy PolicyPort, journals *journal.Service, accounts AccountResolver, codes AccountCodes, audit shared.AuditPort) *Service {
	if codes == (AccountCodes{}) {
		codes = DefaultAccountCodes()
	}
	return &Service{
		repo:     repo,
		gate:     gate,
		policy:   policy,
		journals: journals,
		accounts: accounts,
		codes:    codes,
		audit:    audit,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// FinalizeSale stores the bill, allocates its lines against stock batches and
// posts the balanced sale entry, all inside one transaction. A discount above
// the tenant's limit must pass the PIN gate first. Short allocations are a
// degraded success surfaced in the outcome, never an error.
func (s *Service) FinalizeSale(ctx context.Context, in CreateBillInput) (SaleOutcome, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return SaleOutcome{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return SaleOutcome{}, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	bill := buildBill(tenantID, in)
	if err := validateTotals(bill); err != nil {
		return SaleOutcome{}, err
	}

	if !in.Draft && bill.Subtotal > 0 {
		percent := bill.DiscountTotal / bill.Subtotal * 100
		if err := s.authorizeDiscount(ctx, percent, in.Pin); err != nil {
			return SaleOutcome{}, err
		}
	}

	if in.Draft {
		var stored Bill
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inserted, err := tx.InsertBill(ctx, bill)
			if err != nil {
				return err
			}
			stored = inserted
			return nil
		})
		if err != nil {
			return SaleOutcome{}, err
		}
		return SaleOutcome{Bill: stored}, nil
	}

	var outcome SaleOutcome
	err = s.withConflictRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertBill(ctx, bill)
		if err != nil {
			return err
		}
		results, err := s.allocateItems(ctx, tx, tenantID, inserted.ID, bill.Items)
		if err != nil {
			return err
		}
		if err := s.postSaleEntry(ctx, tx, inserted); err != nil {
			return err
		}
		inserted.Items = bill.Items
		outcome = SaleOutcome{Bill: inserted, Allocations: results}
		return nil
	})
	if err != nil {
		return SaleOutcome{}, err
	}
	s.auditBill(ctx, tenantID, "bill.finalize", outcome.Bill, nil)
	return outcome, nil
}

// CheckEdit exposes the guard's edit decision for confirmation flows.
func (s *Service) CheckEdit(ctx context.Context, billID uuid.UUID) (CheckResult, error) {
	bill, window, err := s.billAndWindow(ctx, billID)
	if err != nil {
		return CheckResult{}, err
	}
	return CanEdit(bill, window, s.now()), nil
}

// CheckDelete exposes the guard's delete decision for confirmation flows.
func (s *Service) CheckDelete(ctx context.Context, billID uuid.UUID) (CheckResult, error) {
	bill, _, err := s.billAndWindow(ctx, billID)
	if err != nil {
		return CheckResult{}, err
	}
	return CanDelete(bill, s.now()), nil
}

// EditBill rewrites a bill's lines. The immutability guard decides; a denial
// that the guard marks overridable goes through the PIN gate, inside the same
// logical operation as the mutation. Stock returns to its batches, the old
// journal entry reverses, and the new allocation and entry post together.
func (s *Service) EditBill(ctx context.Context, in EditBillInput) (SaleOutcome, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return SaleOutcome{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return SaleOutcome{}, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	bill, window, err := s.billAndWindow(ctx, in.BillID)
	if err != nil {
		return SaleOutcome{}, err
	}
	check := CanEdit(bill, window, s.now())
	overridden, err := s.resolveCheck(ctx, check, security.ActionBillEditAfterWindow, in.Pin)
	if err != nil {
		return SaleOutcome{}, err
	}

	var outcome SaleOutcome
	err = s.withConflictRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBillForUpdate(ctx, tenantID, in.BillID)
		if err != nil {
			return err
		}
		// The state may have advanced between the check and the lock.
		recheck := CanEdit(current, window, s.now())
		if !recheck.Allowed && !(recheck.PinCanOverride && overridden) {
			return fmt.Errorf("%w: %s", shared.ErrImmutabilityViolation, recheck.Reason)
		}
		if err := s.restock(ctx, tx, tenantID, current.ID); err != nil {
			return err
		}
		if err := s.reverseSaleEntry(ctx, tx, current); err != nil {
			return err
		}
		updated := buildBill(tenantID, CreateBillInput{CustomerID: current.CustomerID, BillDate: current.BillDate, Items: in.Items, PaidAmount: current.PaidAmount})
		updated.ID = current.ID
		updated.Status = current.Status
		updated.PrintCount = current.PrintCount
		updated.PaidAmount = current.PaidAmount
		if err := validateTotals(updated); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, tenantID, current.ID, updated.Items); err != nil {
			return err
		}
		if err := tx.UpdateTotals(ctx, updated); err != nil {
			return err
		}
		results, err := s.allocateItems(ctx, tx, tenantID, current.ID, updated.Items)
		if err != nil {
			return err
		}
		if err := s.postSaleEntry(ctx, tx, updated); err != nil {
			return err
		}
		outcome = SaleOutcome{Bill: updated, Allocations: results}
		return nil
	})
	if err != nil {
		return SaleOutcome{}, err
	}
	s.auditBill(ctx, tenantID, "bill.edit", outcome.Bill, map[string]any{"overridden": overridden})
	return outcome, nil
}

// DeleteBill removes a bill where the guard permits it. Paid, printed and
// GST-filed bills can never be deleted, PIN or not; issued unpaid bills need
// the owner-only delete authorization.
func (s *Service) DeleteBill(ctx context.Context, billID uuid.UUID, pin string) error {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	bill, _, err := s.billAndWindow(ctx, billID)
	if err != nil {
		return err
	}
	check := CanDelete(bill, s.now())
	overridden, err := s.resolveCheck(ctx, check, security.ActionBillDelete, pin)
	if err != nil {
		return err
	}
	err = s.withConflictRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBillForUpdate(ctx, tenantID, billID)
		if err != nil {
			return err
		}
		recheck := CanDelete(current, s.now())
		if !recheck.Allowed && !(recheck.PinCanOverride && overridden) {
			return fmt.Errorf("%w: %s", shared.ErrImmutabilityViolation, recheck.Reason)
		}
		if err := s.restock(ctx, tx, tenantID, current.ID); err != nil {
			return err
		}
		if err := s.reverseSaleEntry(ctx, tx, current); err != nil {
			return err
		}
		return tx.DeleteBill(ctx, tenantID, billID)
	})
	if err != nil {
		return err
	}
	s.auditBill(ctx, tenantID, "bill.delete", bill, map[string]any{"overridden": overridden})
	return nil
}

// RecordPayment applies a payment and posts the receipt entry together.
func (s *Service) RecordPayment(ctx context.Context, billID uuid.UUID, amount float64) (Bill, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Bill{}, err
	}
	if amount <= 0 {
		return Bill{}, fmt.Errorf("%w: payment must be positive", shared.ErrValidation)
	}
	var updated Bill
	err = s.withConflictRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBillForUpdate(ctx, tenantID, billID)
		if err != nil {
			return err
		}
		outstanding := current.Total - current.PaidAmount
		if amount > outstanding+shared.MinorUnit {
			return ErrOverpayment
		}
		newPaid := shared.Round2(current.PaidAmount + amount)
		status := StatusPartial
		if shared.EqualAmount(newPaid, current.Total) {
			status = StatusPaid
		}
		if err := tx.UpdatePayment(ctx, tenantID, billID, newPaid, status); err != nil {
			return err
		}
		cashID, err := s.accounts.ResolveCode(ctx, s.codes.Cash)
		if err != nil {
			return err
		}
		debtorsID, err := s.accounts.ResolveCode(ctx, s.codes.Debtors)
		if err != nil {
			return err
		}
		_, err = s.journals.PostEntryTx(ctx, tx.Journal(), journal.PostingInput{
			VoucherType: journal.VoucherReceipt,
			EntryDate:   s.now(),
			Narration:   fmt.Sprintf("Payment received against bill %s", shortID(billID)),
			SourceType:  "PAYMENT",
			SourceID:    billID,
			Lines: []journal.LineInput{
				{AccountID: cashID, Debit: amount},
				{AccountID: debtorsID, Credit: amount},
			},
		})
		if err != nil {
			return err
		}
		current.PaidAmount = newPaid
		current.Status = status
		updated = current
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.auditBill(ctx, tenantID, "bill.payment", updated, map[string]any{"amount": shared.FormatAmount(amount)})
	return updated, nil
}

// RecordPrint registers a print of the document, which locks it.
func (s *Service) RecordPrint(ctx context.Context, billID uuid.UUID) (int, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		count, err = tx.IncrementPrintCount(ctx, tenantID, billID)
		return err
	})
	return count, err
}

// MarkGSTFiled marks the bill as reported to the tax authority. The flag is
// one-way: from here on no code path permits edit or delete.
func (s *Service) MarkGSTFiled(ctx context.Context, billID uuid.UUID) error {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBillForUpdate(ctx, tenantID, billID); err != nil {
			return err
		}
		return tx.SetGSTFiled(ctx, tenantID, billID)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		actor := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actor.ID,
			Action:   "bill.gst_filed",
			Entity:   "bill",
			EntityID: billID.String(),
			Outcome:  "success",
			At:       s.now(),
		})
	}
	return nil
}

// GetBill fetches one bill with its derived state.
func (s *Service) GetBill(ctx context.Context, billID uuid.UUID) (Bill, State, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Bill{}, "", err
	}
	bill, err := s.repo.GetBill(ctx, tenantID, billID)
	if err != nil {
		return Bill{}, "", err
	}
	return bill, DeriveState(bill), nil
}

// resolveCheck turns a guard decision plus an optional PIN into go/no-go.
// Only an overridable denial consults the gate; a hard denial returns the
// immutability error untouched so no PIN path exists for it.
func (s *Service) resolveCheck(ctx context.Context, check CheckResult, action security.Action, pin string) (bool, error) {
	if check.Allowed {
		return false, nil
	}
	if !check.PinCanOverride {
		return false, fmt.Errorf("%w: %s", shared.ErrImmutabilityViolation, check.Reason)
	}
	if pin == "" {
		return false, fmt.Errorf("%w: %s", shared.ErrImmutabilityViolation, check.Reason)
	}
	actor := shared.ActorFromContext(ctx)
	result, err := s.gate.Verify(ctx, security.VerifyRequest{Action: action, Pin: pin, Actor: actor})
	if err != nil {
		return false, err
	}
	if !result.Authorized {
		return false, fmt.Errorf("%w: %s", shared.ErrAuthorizationDenied, result.Reason)
	}
	return true, nil
}

func (s *Service) authorizeDiscount(ctx context.Context, percent float64, pin string) error {
	actor := shared.ActorFromContext(ctx)
	result, err := s.gate.Verify(ctx, security.VerifyRequest{
		Action:  security.ActionDiscountAboveLimit,
		Pin:     pin,
		Actor:   actor,
		Context: &percent,
	})
	if err != nil {
		return err
	}
	if !result.Authorized {
		return fmt.Errorf("%w: %s", shared.ErrAuthorizationDenied, result.Reason)
	}
	return nil
}

// withConflictRetry reruns the transaction with fresh rows when Postgres
// reports a serialization conflict, up to a bounded count. Used for the
// paths that contend on batch stock and account balances.
func (s *Service) withConflictRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		lastErr = s.repo.WithTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !db.IsSerializationFailure(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrConcurrencyConflict, lastErr)
}

// allocateItems walks every requested line through the FEFO engine against
// locked batch rows and decrements the chosen batches, saving the chunks.
func (s *Service) allocateItems(ctx context.Context, tx TxRepository, tenantID, billID uuid.UUID, items []Item) ([]allocation.Result, error) {
	batches := tx.Batches()
	var results []allocation.Result
	for _, item := range items {
		line := allocation.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Discount:  item.Discount,
			Tax:       item.Tax,
			BatchID:   item.BatchID,
		}
		available, err := batches.ListBatchesForUpdate(ctx, tenantID, item.ProductID)
		if err != nil {
			return nil, err
		}
		result, err := allocation.Allocate(line, available)
		if err != nil {
			return nil, err
		}
		for _, chunk := range result.Chunks {
			if chunk.BatchID == nil {
				continue
			}
			if err := batches.DecrementBatch(ctx, tenantID, *chunk.BatchID, chunk.Quantity); err != nil {
				return nil, err
			}
		}
		if err := tx.SaveAllocations(ctx, tenantID, billID, result.Chunks); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// restock returns every allocated chunk's stock to its batch.
func (s *Service) restock(ctx context.Context, tx TxRepository, tenantID, billID uuid.UUID) error {
	chunks, err := tx.ListAllocations(ctx, tenantID, billID)
	if err != nil {
		return err
	}
	batches := tx.Batches()
	for _, chunk := range chunks {
		if chunk.BatchID == nil {
			continue
		}
		if err := batches.IncrementBatch(ctx, tenantID, *chunk.BatchID, chunk.Quantity); err != nil {
			return err
		}
	}
	return tx.ClearAllocations(ctx, tenantID, billID)
}

// postSaleEntry posts the balanced sale voucher for a finalized bill.
func (s *Service) postSaleEntry(ctx context.Context, tx TxRepository, bill Bill) error {
	if bill.Total <= 0 {
		return nil
	}
	cashID, err := s.accounts.ResolveCode(ctx, s.codes.Cash)
	if err != nil {
		return err
	}
	debtorsID, err := s.accounts.ResolveCode(ctx, s.codes.Debtors)
	if err != nil {
		return err
	}
	salesID, err := s.accounts.ResolveCode(ctx, s.codes.Sales)
	if err != nil {
		return err
	}
	lines := make([]journal.LineInput, 0, 4)
	if bill.PaidAmount > 0 {
		lines = append(lines, journal.LineInput{AccountID: cashID, Debit: bill.PaidAmount})
	}
	if outstanding := shared.Round2(bill.Total - bill.PaidAmount); outstanding > 0 {
		lines = append(lines, journal.LineInput{AccountID: debtorsID, Debit: outstanding})
	}
	net := shared.Round2(bill.Subtotal - bill.DiscountTotal)
	if net > 0 {
		lines = append(lines, journal.LineInput{AccountID: salesID, Credit: net})
	}
	if bill.GSTAmount > 0 {
		gstID, err := s.accounts.ResolveCode(ctx, s.codes.GSTOutput)
		if err != nil {
			return err
		}
		lines = append(lines, journal.LineInput{AccountID: gstID, Credit: bill.GSTAmount})
	}
	_, err = s.journals.PostEntryTx(ctx, tx.Journal(), journal.PostingInput{
		VoucherType: journal.VoucherSale,
		EntryDate:   bill.BillDate,
		Narration:   fmt.Sprintf("Sale bill %s", shortID(bill.ID)),
		SourceType:  "SALE",
		SourceID:    bill.ID,
		Lines:       lines,
	})
	return err
}

// reverseSaleEntry reverses the bill's sale voucher when one exists. A draft
// that never posted simply has nothing to reverse.
func (s *Service) reverseSaleEntry(ctx context.Context, tx TxRepository, bill Bill) error {
	_, err := s.journals.ReverseEntryTx(ctx, tx.Journal(), journal.ReverseInput{
		SourceType: "SALE",
		SourceID:   bill.ID,
	})
	if err != nil && !errors.Is(err, journal.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (s *Service) billAndWindow(ctx context.Context, billID uuid.UUID) (Bill, time.Duration, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Bill{}, 0, err
	}
	bill, err := s.repo.GetBill(ctx, tenantID, billID)
	if err != nil {
		return Bill{}, 0, err
	}
	settings, err := s.policy.GetSettings(ctx, tenantID)
	if err != nil {
		return Bill{}, 0, err
	}
	window := time.Duration(settings.BillEditWindowMins) * time.Minute
	return bill, window, nil
}

func (s *Service) auditBill(ctx context.Context, tenantID uuid.UUID, action string, bill Bill, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["total"] = shared.FormatAmount(bill.Total)
	meta["state"] = string(DeriveState(bill))
	actor := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "bill",
		EntityID: bill.ID.String(),
		Outcome:  "success",
		Meta:     meta,
		At:       s.now(),
	})
}

// validateTotals rejects documents whose discounts exceed the goods value or
// whose recorded payments exceed the new total.
func validateTotals(bill Bill) error {
	for _, item := range bill.Items {
		gross := shared.Round2(item.Quantity * item.Price)
		if item.Discount > gross+shared.MinorUnit {
			return fmt.Errorf("%w: discount %s exceeds line value %s for %s",
				shared.ErrValidation, shared.FormatAmount(item.Discount), shared.FormatAmount(gross), item.Name)
		}
	}
	if bill.Total < -shared.MinorUnit {
		return fmt.Errorf("%w: bill total is negative", shared.ErrValidation)
	}
	if bill.PaidAmount > bill.Total+shared.MinorUnit {
		return fmt.Errorf("%w: paid amount exceeds total", shared.ErrValidation)
	}
	return nil
}

// buildBill computes document totals from the requested lines.
func buildBill(tenantID uuid.UUID, in CreateBillInput) Bill {
	bill := Bill{
		TenantID:   tenantID,
		CustomerID: in.CustomerID,
		Status:     StatusUnpaid,
		PaidAmount: in.PaidAmount,
		BillDate:   in.BillDate,
	}
	if in.Draft {
		bill.Status = StatusDraft
	}
	if bill.BillDate.IsZero() {
		bill.BillDate = time.Now()
	}
	for _, item := range in.Items {
		gross := shared.Round2(item.Quantity * item.Price)
		total := shared.Round2(gross - item.Discount + item.Tax)
		bill.Items = append(bill.Items, Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Discount:  item.Discount,
			Tax:       item.Tax,
			Total:     total,
			BatchID:   item.BatchID,
		})
		bill.Subtotal = shared.Round2(bill.Subtotal + gross)
		bill.DiscountTotal = shared.Round2(bill.DiscountTotal + item.Discount)
		bill.GSTAmount = shared.Round2(bill.GSTAmount + item.Tax)
	}
	bill.Total = shared.Round2(bill.Subtotal - bill.DiscountTotal + bill.GSTAmount)
	if in.PaidAmount > 0 {
		if shared.EqualAmount(in.PaidAmount, bill.Total) {
			bill.Status = StatusPaid
		} else {
			bill.Status = StatusPartial
		}
	}
	return bill
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
