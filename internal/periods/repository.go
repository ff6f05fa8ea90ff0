package periods

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lekha-erp/lekha-erp/internal/platform/db"
)

const periodColumns = `id, tenant_id, code, start_date, end_date, status, locked_by, locked_at, created_at, updated_at`

// Repository persists accounting periods.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.Code, &p.StartDate, &p.EndDate, &p.Status,
		&p.LockedBy, &p.LockedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Insert stores a new open period, rejecting overlapping windows.
func (r *Repository) Insert(ctx context.Context, tenantID uuid.UUID, in CreateInput) (Period, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounting_periods
WHERE tenant_id=$1 AND start_date <= $3 AND end_date >= $2)`, tenantID, in.StartDate, in.EndDate).Scan(&exists)
	if err != nil {
		return Period{}, err
	}
	if exists {
		return Period{}, ErrOverlap
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO accounting_periods (tenant_id, code, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'OPEN') RETURNING `+periodColumns, tenantID, in.Code, in.StartDate, in.EndDate)
	return scanPeriod(row)
}

// FindByDate returns the period covering the supplied date.
func (r *Repository) FindByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, tenantID, date)
	period, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return period, nil
}

// FindByDateForUpdate locks and returns the covering period inside tx.
func FindByDateForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, date time.Time) (Period, error) {
	row := tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR UPDATE`, tenantID, date)
	period, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return period, nil
}

// UpdateStatus transitions a period and, when locking, stamps the actor and
// flips the locked flag on every journal entry dated inside the window.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID uuid.UUID, periodID int64, target Status, actorID int64) (Period, error) {
	var period Period
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, periodID)
		current, err := scanPeriod(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPeriodNotFound
			}
			return err
		}
		switch target {
		case StatusLocked:
			row = tx.QueryRow(ctx, `UPDATE accounting_periods
SET status=$3, locked_by=$4, locked_at=NOW(), updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 RETURNING `+periodColumns, tenantID, periodID, target, actorID)
			if _, err := tx.Exec(ctx, `UPDATE journal_entries SET locked=true
WHERE tenant_id=$1 AND entry_date BETWEEN $2 AND $3`, tenantID, current.StartDate, current.EndDate); err != nil {
				return err
			}
		default:
			row = tx.QueryRow(ctx, `UPDATE accounting_periods
SET status=$3, locked_by=NULL, locked_at=NULL, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 RETURNING `+periodColumns, tenantID, periodID, target)
			if current.Status == StatusLocked {
				if _, err := tx.Exec(ctx, `UPDATE journal_entries SET locked=false
WHERE tenant_id=$1 AND entry_date BETWEEN $2 AND $3`, tenantID, current.StartDate, current.EndDate); err != nil {
					return err
				}
			}
		}
		period, err = scanPeriod(row)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// GetByID fetches one period.
func (r *Repository) GetByID(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 AND id=$2`, tenantID, periodID)
	period, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return period, nil
}

// List returns periods newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit int) ([]Period, error) {
	if limit <= 0 {
		limit = 24
	}
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 ORDER BY start_date DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
