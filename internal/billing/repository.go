package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lekha-erp/lekha-erp/internal/allocation"
	"github.com/lekha-erp/lekha-erp/internal/journal"
	"github.com/lekha-erp/lekha-erp/internal/platform/db"
)

const billColumns = `id, tenant_id, customer_id, status, subtotal, discount_total, gst_amount, total,
paid_amount, print_count, is_gst_filed, bill_date, created_at, updated_at`

// Repository persists bills, their items, and their batch allocations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes bill operations bound to one transaction, together
// with the batch and journal operations that must commit with them.
type TxRepository interface {
	InsertBill(ctx context.Context, bill Bill) (Bill, error)
	GetBillForUpdate(ctx context.Context, tenantID, billID uuid.UUID) (Bill, error)
	ReplaceItems(ctx context.Context, tenantID, billID uuid.UUID, items []Item) error
	UpdateTotals(ctx context.Context, bill Bill) error
	UpdatePayment(ctx context.Context, tenantID, billID uuid.UUID, paid float64, status Status) error
	IncrementPrintCount(ctx context.Context, tenantID, billID uuid.UUID) (int, error)
	SetGSTFiled(ctx context.Context, tenantID, billID uuid.UUID) error
	DeleteBill(ctx context.Context, tenantID, billID uuid.UUID) error
	SaveAllocations(ctx context.Context, tenantID, billID uuid.UUID, chunks []allocation.AllocatedLine) error
	ListAllocations(ctx context.Context, tenantID, billID uuid.UUID) ([]allocation.AllocatedLine, error)
	ClearAllocations(ctx context.Context, tenantID, billID uuid.UUID) error
	Batches() allocation.TxRepository
	Journal() journal.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("billing repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) Batches() allocation.TxRepository {
	return allocation.NewTxRepository(r.tx)
}

func (r *txRepository) Journal() journal.TxRepository {
	return journal.NewTxRepository(r.tx)
}

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.TenantID, &b.CustomerID, &b.Status, &b.Subtotal, &b.DiscountTotal,
		&b.GSTAmount, &b.Total, &b.PaidAmount, &b.PrintCount, &b.IsGSTFiled, &b.BillDate, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *txRepository) InsertBill(ctx context.Context, bill Bill) (Bill, error) {
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO bills
(id, tenant_id, customer_id, status, subtotal, discount_total, gst_amount, total, paid_amount, print_count, is_gst_filed, bill_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,false,$10)
RETURNING `+billColumns,
		bill.ID, bill.TenantID, bill.CustomerID, bill.Status, bill.Subtotal, bill.DiscountTotal,
		bill.GSTAmount, bill.Total, bill.PaidAmount, bill.BillDate)
	inserted, err := scanBill(row)
	if err != nil {
		return Bill{}, err
	}
	if err := r.insertItems(ctx, inserted.ID, bill.Items); err != nil {
		return Bill{}, err
	}
	inserted.Items = bill.Items
	return inserted, nil
}

func (r *txRepository) insertItems(ctx context.Context, billID uuid.UUID, items []Item) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO bill_items
(bill_id, product_id, name, quantity, price, discount, tax, total, batch_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			billID, item.ProductID, item.Name, item.Quantity, item.Price, item.Discount, item.Tax, item.Total, item.BatchID); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetBillForUpdate(ctx context.Context, tenantID, billID uuid.UUID) (Bill, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, billID)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	bill.Items, err = r.itemsFor(ctx, billID)
	return bill, err
}

func (r *txRepository) itemsFor(ctx context.Context, billID uuid.UUID) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, bill_id, product_id, name, quantity, price, discount, tax, total, batch_id
FROM bill_items WHERE bill_id=$1 ORDER BY id ASC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.BillID, &item.ProductID, &item.Name, &item.Quantity,
			&item.Price, &item.Discount, &item.Tax, &item.Total, &item.BatchID); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) ReplaceItems(ctx context.Context, tenantID, billID uuid.UUID, items []Item) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM bill_items WHERE bill_id=$1`, billID); err != nil {
		return err
	}
	return r.insertItems(ctx, billID, items)
}

func (r *txRepository) UpdateTotals(ctx context.Context, bill Bill) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bills SET subtotal=$3, discount_total=$4, gst_amount=$5, total=$6, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, bill.TenantID, bill.ID, bill.Subtotal, bill.DiscountTotal, bill.GSTAmount, bill.Total)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *txRepository) UpdatePayment(ctx context.Context, tenantID, billID uuid.UUID, paid float64, status Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bills SET paid_amount=$3, status=$4, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, billID, paid, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *txRepository) IncrementPrintCount(ctx context.Context, tenantID, billID uuid.UUID) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `UPDATE bills SET print_count = print_count + 1, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 RETURNING print_count`, tenantID, billID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrBillNotFound
		}
		return 0, err
	}
	return count, nil
}

func (r *txRepository) SetGSTFiled(ctx context.Context, tenantID, billID uuid.UUID) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bills SET is_gst_filed=true, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 AND NOT is_gst_filed`, tenantID, billID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyFiled
	}
	return nil
}

func (r *txRepository) DeleteBill(ctx context.Context, tenantID, billID uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM bill_allocations WHERE bill_id=$1`, billID); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM bill_items WHERE bill_id=$1`, billID); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM bills WHERE tenant_id=$1 AND id=$2`, tenantID, billID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

// SaveAllocations stores the chunks produced for a bill. Allocations are
// never persisted independently of their document.
func (r *txRepository) SaveAllocations(ctx context.Context, tenantID, billID uuid.UUID, chunks []allocation.AllocatedLine) error {
	for _, chunk := range chunks {
		if _, err := r.tx.Exec(ctx, `INSERT INTO bill_allocations
(tenant_id, bill_id, product_id, batch_id, quantity, discount, tax)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			tenantID, billID, chunk.ProductID, chunk.BatchID, chunk.Quantity, chunk.Discount, chunk.Tax); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ListAllocations(ctx context.Context, tenantID, billID uuid.UUID) ([]allocation.AllocatedLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT product_id, batch_id, quantity, discount, tax
FROM bill_allocations WHERE tenant_id=$1 AND bill_id=$2 ORDER BY id ASC`, tenantID, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []allocation.AllocatedLine
	for rows.Next() {
		var chunk allocation.AllocatedLine
		if err := rows.Scan(&chunk.ProductID, &chunk.BatchID, &chunk.Quantity, &chunk.Discount, &chunk.Tax); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (r *txRepository) ClearAllocations(ctx context.Context, tenantID, billID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM bill_allocations WHERE tenant_id=$1 AND bill_id=$2`, tenantID, billID)
	return err
}

// GetBill fetches one bill with items outside a transaction.
func (r *Repository) GetBill(ctx context.Context, tenantID, billID uuid.UUID) (Bill, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE tenant_id=$1 AND id=$2`, tenantID, billID)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, bill_id, product_id, name, quantity, price, discount, tax, total, batch_id
FROM bill_items WHERE bill_id=$1 ORDER BY id ASC`, billID)
	if err != nil {
		return Bill{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.BillID, &item.ProductID, &item.Name, &item.Quantity,
			&item.Price, &item.Discount, &item.Tax, &item.Total, &item.BatchID); err != nil {
			return Bill{}, err
		}
		bill.Items = append(bill.Items, item)
	}
	return bill, rows.Err()
}
