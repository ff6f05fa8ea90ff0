package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lekha-erp/lekha-erp/internal/ledger"
	"github.com/lekha-erp/lekha-erp/internal/periods"
	"github.com/lekha-erp/lekha-erp/internal/platform/db"
)

const entryColumns = `id, tenant_id, voucher_type, voucher_no, entry_date, narration,
source_type, source_id, entry_class, total_debit, total_credit, locked, posted_by, posted_at`

// Repository persists journal entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the posting operations bound to one transaction.
type TxRepository interface {
	GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, date time.Time) (periods.Period, error)
	NextVoucherNumber(ctx context.Context, tenantID uuid.UUID, voucher VoucherType) (int64, error)
	InsertEntry(ctx context.Context, tenantID uuid.UUID, in PostingInput, voucherNo string, class EntryClass, postedBy int64) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]Line, error)
	GetAccountForUpdate(ctx context.Context, tenantID uuid.UUID, accountID int64) (ledger.Account, error)
	ApplyAccountDelta(ctx context.Context, tenantID uuid.UUID, accountID int64, delta float64) error
	GetEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (Entry, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the posting operations to an existing transaction, so
// a caller can post an entry inside its own atomic unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("journal repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, date time.Time) (periods.Period, error) {
	return periods.FindByDateForUpdate(ctx, r.tx, tenantID, date)
}

// NextVoucherNumber advances the per-tenant, per-type sequence. The upsert
// locks the sequence row for the remainder of the transaction, so a failed
// posting rolls the increment back and the sequence stays gap-free.
func (r *txRepository) NextVoucherNumber(ctx context.Context, tenantID uuid.UUID, voucher VoucherType) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO voucher_sequences (tenant_id, voucher_type, next_no)
VALUES ($1, $2, 1)
ON CONFLICT (tenant_id, voucher_type) DO UPDATE SET next_no = voucher_sequences.next_no + 1
RETURNING next_no`, tenantID, voucher).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.TenantID, &e.VoucherType, &e.VoucherNo, &e.EntryDate, &e.Narration,
		&e.SourceType, &e.SourceID, &e.Class, &e.TotalDebit, &e.TotalCredit, &e.Locked, &e.PostedBy, &e.PostedAt)
	return e, err
}

func (r *txRepository) InsertEntry(ctx context.Context, tenantID uuid.UUID, in PostingInput, voucherNo string, class EntryClass, postedBy int64) (Entry, error) {
	debit, credit := in.Totals()
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(tenant_id, voucher_type, voucher_no, entry_date, narration, source_type, source_id, entry_class, total_debit, total_credit, locked, posted_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false,$11)
RETURNING `+entryColumns,
		tenantID, in.VoucherType, voucherNo, in.EntryDate, in.Narration, in.SourceType, in.SourceID, class, debit, credit, postedBy)
	return scanEntry(row)
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		var inserted Line
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit)
VALUES ($1,$2,$3,$4) RETURNING id, entry_id, account_id, debit, credit`,
			entryID, line.AccountID, line.Debit, line.Credit).
			Scan(&inserted.ID, &inserted.EntryID, &inserted.AccountID, &inserted.Debit, &inserted.Credit)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, tenantID uuid.UUID, accountID int64) (ledger.Account, error) {
	var a ledger.Account
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, code, name, account_group, normal_balance, balance, is_system
FROM ledger_accounts WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, accountID).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Group, &a.Normal, &a.Balance, &a.IsSystem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, ErrUnknownLedger
		}
		return ledger.Account{}, err
	}
	return a, nil
}

func (r *txRepository) ApplyAccountDelta(ctx context.Context, tenantID uuid.UUID, accountID int64, delta float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_accounts SET balance = balance + $3, updated_at = NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUnknownLedger
	}
	return nil
}

func (r *txRepository) GetEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (Entry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE tenant_id=$1 AND source_type=$2 AND source_id=$3 ORDER BY id DESC LIMIT 1`, tenantID, sourceType, sourceID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	entry.Lines, err = r.linesFor(ctx, entry.ID)
	return entry, err
}

func (r *txRepository) linesFor(ctx context.Context, entryID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, debit, credit
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// DayBookFilter narrows the read-only journal listing.
type DayBookFilter struct {
	From  time.Time
	To    time.Time
	Class EntryClass
	Limit int
}

// ListEntries returns posted entries for day-book and export consumers.
func (r *Repository) ListEntries(ctx context.Context, tenantID uuid.UUID, filter DayBookFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE tenant_id=$1
  AND ($2::timestamptz IS NULL OR entry_date >= $2)
  AND ($3::timestamptz IS NULL OR entry_date <= $3)
  AND ($4::text IS NULL OR entry_class = $4)
ORDER BY entry_date DESC, id DESC LIMIT $5`,
		tenantID, nullTime(filter.From), nullTime(filter.To), nullClass(filter.Class), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetBySource fetches the latest entry for a source outside a transaction.
func (r *Repository) GetBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE tenant_id=$1 AND source_type=$2 AND source_id=$3 ORDER BY id DESC LIMIT 1`, tenantID, sourceType, sourceID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullClass(c EntryClass) any {
	if c == "" {
		return nil
	}
	return string(c)
}
