package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository reads the audit timeline from Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs the Postgres-backed audit repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const timelineQuery = `
SELECT occurred_at, actor_id, action, entity, entity_id, outcome, meta
FROM audit_logs
WHERE tenant_id = $1
  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
  AND ($3::timestamptz IS NULL OR occurred_at <= $3)
  AND ($4::bigint IS NULL OR actor_id = $4)
  AND ($5::text IS NULL OR entity = $5)
  AND ($6::text IS NULL OR action = $6)
ORDER BY occurred_at DESC`

// TimelineWindow returns one page of audit rows, newest first.
func (r *PgRepository) TimelineWindow(ctx context.Context, tenantID uuid.UUID, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	query := timelineQuery + ` OFFSET $7 LIMIT $8`
	rows, err := r.pool.Query(ctx, query, timelineArgs(tenantID, filters, offset, limit)...)
	if err != nil {
		return nil, err
	}
	return scanTimeline(rows)
}

// TimelineAll returns the full filtered timeline for export.
func (r *PgRepository) TimelineAll(ctx context.Context, tenantID uuid.UUID, filters TimelineFilters) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery, timelineArgs(tenantID, filters, -1, -1)...)
	if err != nil {
		return nil, err
	}
	return scanTimeline(rows)
}

func timelineArgs(tenantID uuid.UUID, filters TimelineFilters, offset, limit int) []any {
	args := []any{tenantID, nullTime(filters.From), nullTime(filters.To), nullInt(filters.Actor), nullText(filters.Entity), nullText(filters.Action)}
	if offset >= 0 {
		args = append(args, offset, limit)
	}
	return args
}

func scanTimeline(rows pgx.Rows) ([]TimelineRow, error) {
	defer rows.Close()
	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &row.Outcome, &row.Meta); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullText(v string) any {
	if v == "" {
		return nil
	}
	return v
}
