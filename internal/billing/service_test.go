package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lekha-erp/lekha-erp/internal/allocation"
	"github.com/lekha-erp/lekha-erp/internal/journal"
	"github.com/lekha-erp/lekha-erp/internal/ledger"
	"github.com/lekha-erp/lekha-erp/internal/periods"
	"github.com/lekha-erp/lekha-erp/internal/security"
	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// mockStore backs every port the billing service composes over: bills,
// batches, journal entries and ledger balances, all in one place so a test
// can assert the cross-domain effects of one operation.
type mockStore struct {
	bills   map[uuid.UUID]*Bill
	items   map[uuid.UUID][]Item
	allocs  map[uuid.UUID][]allocation.AllocatedLine
	batches map[int64]*allocation.Batch

	accounts   map[int64]ledger.Account
	codes      map[string]int64
	entries    []journal.Entry
	entryLines map[int64][]journal.Line
	sequences  map[journal.VoucherType]int64
	nextEntry  int64

	settings security.Settings
	attempts []security.VerificationResult

	// conflicts makes the next N transactions fail with a serialization error.
	conflicts int
}

func newMockStore(t *testing.T) *mockStore {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	require.NoError(t, err)
	m := &mockStore{
		bills:      make(map[uuid.UUID]*Bill),
		items:      make(map[uuid.UUID][]Item),
		allocs:     make(map[uuid.UUID][]allocation.AllocatedLine),
		batches:    make(map[int64]*allocation.Batch),
		accounts:   make(map[int64]ledger.Account),
		codes:      make(map[string]int64),
		entryLines: make(map[int64][]journal.Line),
		sequences:  make(map[journal.VoucherType]int64),
		nextEntry:  1,
		settings: security.Settings{
			OwnerPinHash:       string(hash),
			MaxDiscountPercent: 10,
			BillEditWindowMins: 30,
		},
	}
	m.addAccount(1, "1000", ledger.GroupAsset)
	m.addAccount(2, "1100", ledger.GroupAsset)
	m.addAccount(3, "4000", ledger.GroupIncome)
	m.addAccount(4, "2400", ledger.GroupLiability)
	return m
}

func (m *mockStore) addAccount(id int64, code string, group ledger.AccountGroup) {
	normal, _ := ledger.NormalFor(group)
	m.accounts[id] = ledger.Account{ID: id, Code: code, Group: group, Normal: normal}
	m.codes[code] = id
}

func (m *mockStore) addBatch(id int64, productID uuid.UUID, expiry time.Time, stock float64) {
	m.batches[id] = &allocation.Batch{
		ID: id, ProductID: productID, ExpiryDate: expiry,
		RemainingStock: stock, Status: allocation.BatchStatusActive,
	}
}

func (m *mockStore) entriesBySource(sourceType string) []journal.Entry {
	var out []journal.Entry
	for _, entry := range m.entries {
		if entry.SourceType == sourceType {
			out = append(out, entry)
		}
	}
	return out
}

// Billing RepositoryPort.

func (m *mockStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.conflicts > 0 {
		m.conflicts--
		return &pgconn.PgError{Code: "40001"}
	}
	return fn(ctx, &mockBillTx{store: m})
}

func (m *mockStore) GetBill(ctx context.Context, tenantID, billID uuid.UUID) (Bill, error) {
	bill, ok := m.bills[billID]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	out := *bill
	out.Items = m.items[billID]
	return out, nil
}

// Security SettingsPort and billing PolicyPort.

func (m *mockStore) GetSettings(ctx context.Context, tenantID uuid.UUID) (security.Settings, error) {
	return m.settings, nil
}

func (m *mockStore) RecordAttempt(ctx context.Context, result security.VerificationResult, tenantID uuid.UUID) error {
	m.attempts = append(m.attempts, result)
	return nil
}

// Billing AccountResolver.

func (m *mockStore) ResolveCode(ctx context.Context, code string) (int64, error) {
	id, ok := m.codes[code]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	return id, nil
}

type mockBillTx struct {
	store *mockStore
}

func (tx *mockBillTx) InsertBill(ctx context.Context, bill Bill) (Bill, error) {
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}
	stored := bill
	stored.Items = nil
	tx.store.bills[bill.ID] = &stored
	tx.store.items[bill.ID] = bill.Items
	return bill, nil
}

func (tx *mockBillTx) GetBillForUpdate(ctx context.Context, tenantID, billID uuid.UUID) (Bill, error) {
	return tx.store.GetBill(ctx, tenantID, billID)
}

func (tx *mockBillTx) ReplaceItems(ctx context.Context, tenantID, billID uuid.UUID, items []Item) error {
	tx.store.items[billID] = items
	return nil
}

func (tx *mockBillTx) UpdateTotals(ctx context.Context, bill Bill) error {
	current, ok := tx.store.bills[bill.ID]
	if !ok {
		return ErrBillNotFound
	}
	current.Subtotal = bill.Subtotal
	current.DiscountTotal = bill.DiscountTotal
	current.GSTAmount = bill.GSTAmount
	current.Total = bill.Total
	return nil
}

func (tx *mockBillTx) UpdatePayment(ctx context.Context, tenantID, billID uuid.UUID, paid float64, status Status) error {
	current, ok := tx.store.bills[billID]
	if !ok {
		return ErrBillNotFound
	}
	current.PaidAmount = paid
	current.Status = status
	return nil
}

func (tx *mockBillTx) IncrementPrintCount(ctx context.Context, tenantID, billID uuid.UUID) (int, error) {
	current, ok := tx.store.bills[billID]
	if !ok {
		return 0, ErrBillNotFound
	}
	current.PrintCount++
	return current.PrintCount, nil
}

func (tx *mockBillTx) SetGSTFiled(ctx context.Context, tenantID, billID uuid.UUID) error {
	current, ok := tx.store.bills[billID]
	if !ok {
		return ErrBillNotFound
	}
	current.IsGSTFiled = true
	return nil
}

func (tx *mockBillTx) DeleteBill(ctx context.Context, tenantID, billID uuid.UUID) error {
	if _, ok := tx.store.bills[billID]; !ok {
		return ErrBillNotFound
	}
	delete(tx.store.bills, billID)
	delete(tx.store.items, billID)
	delete(tx.store.allocs, billID)
	return nil
}

func (tx *mockBillTx) SaveAllocations(ctx context.Context, tenantID, billID uuid.UUID, chunks []allocation.AllocatedLine) error {
	tx.store.allocs[billID] = append(tx.store.allocs[billID], chunks...)
	return nil
}

func (tx *mockBillTx) ListAllocations(ctx context.Context, tenantID, billID uuid.UUID) ([]allocation.AllocatedLine, error) {
	return tx.store.allocs[billID], nil
}

func (tx *mockBillTx) ClearAllocations(ctx context.Context, tenantID, billID uuid.UUID) error {
	delete(tx.store.allocs, billID)
	return nil
}

func (tx *mockBillTx) Batches() allocation.TxRepository {
	return &mockBatchTx{store: tx.store}
}

func (tx *mockBillTx) Journal() journal.TxRepository {
	return &mockJournalTx{store: tx.store}
}

type mockBatchTx struct {
	store *mockStore
}

func (tx *mockBatchTx) ListBatchesForUpdate(ctx context.Context, tenantID, productID uuid.UUID) ([]allocation.Batch, error) {
	var out []allocation.Batch
	for _, batch := range tx.store.batches {
		if batch.ProductID == productID {
			out = append(out, *batch)
		}
	}
	return out, nil
}

func (tx *mockBatchTx) DecrementBatch(ctx context.Context, tenantID uuid.UUID, batchID int64, qty float64) error {
	batch, ok := tx.store.batches[batchID]
	if !ok {
		return allocation.ErrBatchNotFound
	}
	if batch.RemainingStock < qty {
		return allocation.ErrBatchStock
	}
	batch.RemainingStock -= qty
	return nil
}

func (tx *mockBatchTx) IncrementBatch(ctx context.Context, tenantID uuid.UUID, batchID int64, qty float64) error {
	batch, ok := tx.store.batches[batchID]
	if !ok {
		return allocation.ErrBatchNotFound
	}
	batch.RemainingStock += qty
	return nil
}

type mockJournalTx struct {
	store *mockStore
}

func (tx *mockJournalTx) GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, date time.Time) (periods.Period, error) {
	return periods.Period{ID: 1, Status: periods.StatusOpen, StartDate: date.AddDate(0, 0, -15), EndDate: date.AddDate(0, 0, 15)}, nil
}

func (tx *mockJournalTx) NextVoucherNumber(ctx context.Context, tenantID uuid.UUID, voucher journal.VoucherType) (int64, error) {
	tx.store.sequences[voucher]++
	return tx.store.sequences[voucher], nil
}

func (tx *mockJournalTx) InsertEntry(ctx context.Context, tenantID uuid.UUID, in journal.PostingInput, voucherNo string, class journal.EntryClass, postedBy int64) (journal.Entry, error) {
	debit, credit := in.Totals()
	entry := journal.Entry{
		ID:          tx.store.nextEntry,
		TenantID:    tenantID,
		VoucherType: in.VoucherType,
		VoucherNo:   voucherNo,
		EntryDate:   in.EntryDate,
		Narration:   in.Narration,
		SourceType:  in.SourceType,
		SourceID:    in.SourceID,
		Class:       class,
		TotalDebit:  debit,
		TotalCredit: credit,
		PostedBy:    postedBy,
	}
	tx.store.nextEntry++
	tx.store.entries = append(tx.store.entries, entry)
	return entry, nil
}

func (tx *mockJournalTx) InsertLines(ctx context.Context, entryID int64, lines []journal.LineInput) ([]journal.Line, error) {
	out := make([]journal.Line, 0, len(lines))
	for i, line := range lines {
		out = append(out, journal.Line{
			ID: int64(i + 1), EntryID: entryID,
			AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit,
		})
	}
	tx.store.entryLines[entryID] = out
	return out, nil
}

func (tx *mockJournalTx) GetAccountForUpdate(ctx context.Context, tenantID uuid.UUID, accountID int64) (ledger.Account, error) {
	account, ok := tx.store.accounts[accountID]
	if !ok {
		return ledger.Account{}, journal.ErrUnknownLedger
	}
	return account, nil
}

func (tx *mockJournalTx) ApplyAccountDelta(ctx context.Context, tenantID uuid.UUID, accountID int64, delta float64) error {
	account := tx.store.accounts[accountID]
	account.Balance += delta
	tx.store.accounts[accountID] = account
	return nil
}

func (tx *mockJournalTx) GetEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (journal.Entry, error) {
	for i := len(tx.store.entries) - 1; i >= 0; i-- {
		entry := tx.store.entries[i]
		if entry.SourceType == sourceType && entry.SourceID == sourceID {
			entry.Lines = tx.store.entryLines[entry.ID]
			return entry, nil
		}
	}
	return journal.Entry{}, journal.ErrEntryNotFound
}

var billingNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type billingFixture struct {
	store *mockStore
	svc   *Service
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	store := newMockStore(t)
	gate := security.NewService(store, security.NewThrottle(nil), nil, nil, nil)
	journals := journal.NewService(nil, nil, nil)
	svc := NewService(store, gate, store, journals, store, DefaultAccountCodes(), nil)
	svc.WithNow(func() time.Time { return billingNow })
	return &billingFixture{store: store, svc: svc}
}

func billingContext(role shared.Role) context.Context {
	ctx := shared.ContextWithTenant(context.Background(), uuid.New())
	return shared.ContextWithActor(ctx, shared.Actor{ID: 9, Name: "Ravi", Role: role})
}

func saleItems(productID uuid.UUID) []ItemInput {
	return []ItemInput{{
		ProductID: productID, Name: "Paracetamol 500mg",
		Quantity: 2, Price: 100, Discount: 10, Tax: 18,
	}}
}

func TestFinalizeSalePostsEntryAndDecrementsStock(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)

	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate:   billingNow,
		Items:      saleItems(productID),
		PaidAmount: 208,
	})
	require.NoError(t, err)

	bill := outcome.Bill
	assert.Equal(t, 200.0, bill.Subtotal)
	assert.Equal(t, 10.0, bill.DiscountTotal)
	assert.Equal(t, 18.0, bill.GSTAmount)
	assert.Equal(t, 208.0, bill.Total)
	assert.Equal(t, StatusPaid, bill.Status)

	assert.Equal(t, 8.0, fx.store.batches[1].RemainingStock)

	sales := fx.store.entriesBySource("SALE")
	require.Len(t, sales, 1)
	assert.Equal(t, journal.VoucherSale, sales[0].VoucherType)
	assert.Equal(t, 208.0, sales[0].TotalDebit)
	assert.Equal(t, 208.0, sales[0].TotalCredit)

	lines := fx.store.entryLines[sales[0].ID]
	require.Len(t, lines, 3)
	assert.Equal(t, 208.0, lines[0].Debit)  // cash
	assert.Equal(t, 190.0, lines[1].Credit) // net sales
	assert.Equal(t, 18.0, lines[2].Credit)  // gst output

	// Cash up, income up.
	assert.Equal(t, 208.0, fx.store.accounts[1].Balance)
	assert.Equal(t, 190.0, fx.store.accounts[3].Balance)
}

func TestFinalizeSalePartialPaymentSplitsDebit(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)

	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate:   billingNow,
		Items:      saleItems(productID),
		PaidAmount: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, outcome.Bill.Status)

	sales := fx.store.entriesBySource("SALE")
	require.Len(t, sales, 1)
	lines := fx.store.entryLines[sales[0].ID]
	require.Len(t, lines, 4)
	assert.Equal(t, 100.0, lines[0].Debit) // cash
	assert.Equal(t, 108.0, lines[1].Debit) // debtors
}

func TestFinalizeSaleDraftSkipsStockAndJournal(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)

	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate: billingNow,
		Draft:    true,
		Items:    saleItems(productID),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, outcome.Bill.Status)
	assert.Empty(t, outcome.Allocations)
	assert.Equal(t, 10.0, fx.store.batches[1].RemainingStock)
	assert.Empty(t, fx.store.entries)
}

func TestFinalizeSaleDiscountOverLimitNeedsPin(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)

	items := saleItems(productID)
	items[0].Discount = 50 // 25% of the 200 subtotal, limit is 10%

	_, err := fx.svc.FinalizeSale(ctx, CreateBillInput{BillDate: billingNow, Items: items})
	assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)

	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{BillDate: billingNow, Items: items, Pin: "4321"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, outcome.Bill.DiscountTotal)
}

func TestFinalizeSaleShortfallIsDegradedSuccess(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 1)
	ctx := billingContext(shared.RoleStaff)

	items := []ItemInput{{ProductID: productID, Name: "Syrup", Quantity: 3, Price: 50}}
	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{BillDate: billingNow, Items: items})
	require.NoError(t, err)

	require.Len(t, outcome.Allocations, 1)
	assert.Equal(t, 2.0, outcome.Allocations[0].Short())
	assert.Zero(t, fx.store.batches[1].RemainingStock)

	chunks := fx.store.allocs[outcome.Bill.ID]
	require.Len(t, chunks, 2)
	assert.Nil(t, chunks[1].BatchID)
}

func TestFinalizeSaleRejectsPaidAboveTotal(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	ctx := billingContext(shared.RoleStaff)

	_, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate:   billingNow,
		Items:      saleItems(productID),
		PaidAmount: 500,
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func finalizeUnpaid(t *testing.T, fx *billingFixture, ctx context.Context, productID uuid.UUID) Bill {
	t.Helper()
	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate: billingNow.Add(-35 * time.Minute),
		Items:    saleItems(productID),
	})
	require.NoError(t, err)
	return outcome.Bill
}

func TestEditBillInsideWindowNoPin(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)

	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate: billingNow.Add(-25 * time.Minute),
		Items:    saleItems(productID),
	})
	require.NoError(t, err)

	newItems := []ItemInput{{ProductID: productID, Name: "Paracetamol 500mg", Quantity: 1, Price: 100, Tax: 9}}
	edited, err := fx.svc.EditBill(ctx, EditBillInput{BillID: outcome.Bill.ID, Items: newItems})
	require.NoError(t, err)
	assert.Equal(t, 109.0, edited.Bill.Total)

	// Restocked 2, reallocated 1.
	assert.Equal(t, 9.0, fx.store.batches[1].RemainingStock)

	// The original entry is reversed, not mutated, and a fresh one posts.
	assert.Len(t, fx.store.entriesBySource("SALE"), 2)
	assert.Len(t, fx.store.entriesBySource("SALE:REVERSAL"), 1)
}

func TestEditBillAfterWindowRequiresPin(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleManager)
	bill := finalizeUnpaid(t, fx, ctx, productID)

	newItems := []ItemInput{{ProductID: productID, Name: "Paracetamol 500mg", Quantity: 1, Price: 100}}

	_, err := fx.svc.EditBill(ctx, EditBillInput{BillID: bill.ID, Items: newItems})
	assert.ErrorIs(t, err, shared.ErrImmutabilityViolation)

	_, err = fx.svc.EditBill(ctx, EditBillInput{BillID: bill.ID, Items: newItems, Pin: "0000"})
	assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)

	_, err = fx.svc.EditBill(ctx, EditBillInput{BillID: bill.ID, Items: newItems, Pin: "4321"})
	assert.NoError(t, err)
}

func TestEditBillGSTFiledNoPinPathExists(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleOwner)
	bill := finalizeUnpaid(t, fx, ctx, productID)
	fx.store.bills[bill.ID].IsGSTFiled = true
	fx.store.attempts = nil

	newItems := []ItemInput{{ProductID: productID, Name: "Paracetamol 500mg", Quantity: 1, Price: 100}}
	_, err := fx.svc.EditBill(ctx, EditBillInput{BillID: bill.ID, Items: newItems, Pin: "4321"})
	assert.ErrorIs(t, err, shared.ErrImmutabilityViolation)
	// The gate was never consulted: no attempt was recorded.
	assert.Empty(t, fx.store.attempts)
}

func TestDeleteBillNeedsOwnerRole(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)

	managerCtx := billingContext(shared.RoleManager)
	bill := finalizeUnpaid(t, fx, managerCtx, productID)

	// A correct PIN with an insufficient role still denies.
	err := fx.svc.DeleteBill(managerCtx, bill.ID, "4321")
	assert.ErrorIs(t, err, shared.ErrAuthorizationDenied)

	ownerCtx := shared.ContextWithActor(managerCtx, shared.Actor{ID: 1, Name: "Asha", Role: shared.RoleOwner})
	err = fx.svc.DeleteBill(ownerCtx, bill.ID, "4321")
	require.NoError(t, err)

	_, _, err = fx.svc.GetBill(ownerCtx, bill.ID)
	assert.ErrorIs(t, err, ErrBillNotFound)

	// Stock returned and the sale entry reversed.
	assert.Equal(t, 10.0, fx.store.batches[1].RemainingStock)
	assert.Len(t, fx.store.entriesBySource("SALE:REVERSAL"), 1)
}

func TestDeleteBillPrintedDeniedEvenWithPin(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleOwner)
	bill := finalizeUnpaid(t, fx, ctx, productID)

	_, err := fx.svc.RecordPrint(ctx, bill.ID)
	require.NoError(t, err)
	fx.store.attempts = nil

	err = fx.svc.DeleteBill(ctx, bill.ID, "4321")
	assert.ErrorIs(t, err, shared.ErrImmutabilityViolation)
	assert.Empty(t, fx.store.attempts)
}

func TestRecordPaymentTransitionsStatus(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)
	bill := finalizeUnpaid(t, fx, ctx, productID)

	updated, err := fx.svc.RecordPayment(ctx, bill.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, updated.Status)
	assert.Equal(t, 100.0, updated.PaidAmount)

	updated, err = fx.svc.RecordPayment(ctx, bill.ID, 108)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status)

	receipts := fx.store.entriesBySource("PAYMENT")
	require.Len(t, receipts, 2)
	assert.Equal(t, journal.VoucherReceipt, receipts[0].VoucherType)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)
	bill := finalizeUnpaid(t, fx, ctx, productID)

	_, err := fx.svc.RecordPayment(ctx, bill.ID, 300)
	assert.ErrorIs(t, err, ErrOverpayment)

	_, err = fx.svc.RecordPayment(ctx, bill.ID, -5)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestMarkGSTFiledIsOneWay(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleOwner)
	bill := finalizeUnpaid(t, fx, ctx, productID)

	require.NoError(t, fx.svc.MarkGSTFiled(ctx, bill.ID))

	_, state, err := fx.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, StateGSTFiled, state)

	check, err := fx.svc.CheckEdit(ctx, bill.ID)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.False(t, check.PinCanOverride)
}

func TestCheckEditReportsOverridability(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)
	bill := finalizeUnpaid(t, fx, ctx, productID)

	check, err := fx.svc.CheckEdit(ctx, bill.ID)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.True(t, check.PinCanOverride)

	check, err = fx.svc.CheckDelete(ctx, bill.ID)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.True(t, check.PinCanOverride)
}

func TestFinalizeSaleRetriesSerializationConflict(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	fx.store.conflicts = 2
	ctx := billingContext(shared.RoleStaff)

	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate:   billingNow,
		Items:      saleItems(productID),
		PaidAmount: 208,
	})
	require.NoError(t, err)
	assert.Equal(t, 208.0, outcome.Bill.Total)
	assert.Equal(t, 8.0, fx.store.batches[1].RemainingStock)
	assert.Len(t, fx.store.entriesBySource("SALE"), 1)
}

func TestFinalizeSaleConflictRetryIsBounded(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	fx.store.conflicts = 3
	ctx := billingContext(shared.RoleStaff)

	_, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate: billingNow,
		Items:    saleItems(productID),
	})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Empty(t, fx.store.bills)
	assert.Equal(t, 10.0, fx.store.batches[1].RemainingStock)
}

func TestFinalizeSaleDiscountAboveLineValueRejected(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleStaff)

	_, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate: billingNow,
		Items: []ItemInput{{
			ProductID: productID, Name: "Paracetamol 500mg",
			Quantity: 1, Price: 50, Discount: 120,
		}},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, fx.store.bills)
	assert.Equal(t, 10.0, fx.store.batches[1].RemainingStock)
}

func TestEditBillTotalBelowPaidRejected(t *testing.T) {
	fx := newBillingFixture(t)
	productID := uuid.New()
	fx.store.addBatch(1, productID, billingNow.AddDate(0, 6, 0), 10)
	ctx := billingContext(shared.RoleManager)

	outcome, err := fx.svc.FinalizeSale(ctx, CreateBillInput{
		BillDate:   billingNow,
		Items:      saleItems(productID),
		PaidAmount: 100,
	})
	require.NoError(t, err)

	// Shrinking the bill below the amount already received must be a
	// validation failure, not an unbalanced-entry error.
	_, err = fx.svc.EditBill(ctx, EditBillInput{
		BillID: outcome.Bill.ID,
		Pin:    "4321",
		Items: []ItemInput{{
			ProductID: productID, Name: "Paracetamol 500mg",
			Quantity: 0.5, Price: 100, Tax: 9,
		}},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.NotErrorIs(t, err, journal.ErrUnbalanced)
}
