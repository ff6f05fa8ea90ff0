package allocation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lekha-erp/lekha-erp/internal/platform/db"
)

const batchColumns = `id, tenant_id, product_id, batch_number, expiry_date, remaining_stock,
purchase_price, sale_price, mrp, status, created_at`

// Repository persists product batches.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes batch operations bound to one transaction.
type TxRepository interface {
	ListBatchesForUpdate(ctx context.Context, tenantID, productID uuid.UUID) ([]Batch, error)
	DecrementBatch(ctx context.Context, tenantID uuid.UUID, batchID int64, qty float64) error
	IncrementBatch(ctx context.Context, tenantID uuid.UUID, batchID int64, qty float64) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds batch operations to an existing transaction, so the
// stock decrement can commit together with bill finalization.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("allocation repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.TenantID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.RemainingStock,
		&b.PurchasePrice, &b.SalePrice, &b.MRP, &b.Status, &b.CreatedAt)
	return b, err
}

// ListBatchesForUpdate locks the product's active batches in expiry order so
// concurrent sales serialize their read-then-decrement and cannot double-book
// the same units.
func (r *txRepository) ListBatchesForUpdate(ctx context.Context, tenantID, productID uuid.UUID) ([]Batch, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+batchColumns+` FROM product_batches
WHERE tenant_id=$1 AND product_id=$2 AND status='ACTIVE' AND remaining_stock > 0
ORDER BY expiry_date ASC, id ASC
FOR UPDATE`, tenantID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// DecrementBatch reduces remaining stock, refusing to go negative.
func (r *txRepository) DecrementBatch(ctx context.Context, tenantID uuid.UUID, batchID int64, qty float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE product_batches SET remaining_stock = remaining_stock - $3
WHERE tenant_id=$1 AND id=$2 AND remaining_stock >= $3`, tenantID, batchID, qty)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBatchStock
	}
	return nil
}

// IncrementBatch restores stock when an allocated document is edited or
// removed before it locks.
func (r *txRepository) IncrementBatch(ctx context.Context, tenantID uuid.UUID, batchID int64, qty float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE product_batches SET remaining_stock = remaining_stock + $3
WHERE tenant_id=$1 AND id=$2`, tenantID, batchID, qty)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// ListBatches returns the expiry-ordered batch snapshot without locking, for
// preview allocations that never commit stock.
func (r *Repository) ListBatches(ctx context.Context, tenantID, productID uuid.UUID) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM product_batches
WHERE tenant_id=$1 AND product_id=$2 AND status='ACTIVE' AND remaining_stock > 0
ORDER BY expiry_date ASC, id ASC`, tenantID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GetBatch fetches a single batch.
func (r *Repository) GetBatch(ctx context.Context, tenantID uuid.UUID, batchID int64) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM product_batches
WHERE tenant_id=$1 AND id=$2`, tenantID, batchID)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	return b, nil
}
