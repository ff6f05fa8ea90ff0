package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/lekha-erp/lekha-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiryScanJob sweeps product batches for stock that expires soon, so FEFO
// shortfalls surface before the shelf does.
type ExpiryScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewExpiryScanJob initialises the expiry sweep handler.
func NewExpiryScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryScanJob {
	return &ExpiryScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type expiringBatch struct {
	TenantID  string
	BatchID   int64
	ProductID string
	Stock     float64
	ExpiresAt time.Time
}

// Handle executes the expiry sweep.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.HorizonDays <= 0 {
		payload.HorizonDays = 30
	}

	start := j.now()
	tracker := j.metrics().Track(TaskTypeExpiryScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("horizon_days", payload.HorizonDays))
	logger.Info("starting expiry scan")

	batches, err := j.scan(ctx, payload, start)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, b := range batches {
		logger.Warn("batch expiring with stock on hand",
			slog.String("tenant_id", b.TenantID),
			slog.Int64("batch_id", b.BatchID),
			slog.String("product_id", b.ProductID),
			slog.Float64("remaining_stock", b.Stock),
			slog.Time("expiry_date", b.ExpiresAt),
		)
	}

	logger.Info("completed expiry scan",
		slog.Int("expiring_batches", len(batches)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ExpiryScanJob) scan(ctx context.Context, payload ExpiryScanPayload, now time.Time) ([]expiringBatch, error) {
	if j.Pool == nil {
		return nil, errors.New("expiry scan: pool not configured")
	}
	horizon := now.AddDate(0, 0, payload.HorizonDays)
	rows, err := j.Pool.Query(ctx, `
		SELECT tenant_id, id, product_id, remaining_stock, expiry_date
		FROM product_batches
		WHERE status = 'ACTIVE' AND remaining_stock > 0 AND expiry_date <= $1
		ORDER BY tenant_id, expiry_date, id`, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []expiringBatch
	for rows.Next() {
		var b expiringBatch
		if err := rows.Scan(&b.TenantID, &b.BatchID, &b.ProductID, &b.Stock, &b.ExpiresAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskTypeExpiryScan))
}

func (j *ExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
