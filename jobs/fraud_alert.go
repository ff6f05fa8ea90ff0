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

// FraudAlertJob records critical PIN-gated actions on the tenant's fraud
// timeline. Delivery is asynchronous on purpose: the gate never waits for it.
type FraudAlertJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewFraudAlertJob initialises the fraud alert handler.
func NewFraudAlertJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *FraudAlertJob {
	return &FraudAlertJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle persists the alert and logs it at warning level.
func (j *FraudAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("fraud alert: handler not configured")
	}
	var payload FraudAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.At.IsZero() {
		payload.At = j.now()
	}

	tracker := j.metrics().Track(TaskTypeFraudAlert)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("tenant_id", payload.TenantID.String()),
		slog.Int64("actor_id", payload.ActorID),
		slog.String("action", payload.Action),
		slog.String("severity", payload.Severity),
	)
	logger.Warn("critical action authorized via PIN")

	if j.Pool != nil {
		_, err := j.Pool.Exec(ctx, `
			INSERT INTO fraud_alerts (tenant_id, actor_id, actor_role, action, severity, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			payload.TenantID, payload.ActorID, payload.ActorRole, payload.Action, payload.Severity, payload.At,
		)
		if err != nil {
			resultErr = err
			logger.Error("persist fraud alert", slog.Any("error", err))
			return resultErr
		}
	}

	j.metrics().AddFraudAlert(payload.Severity)
	return resultErr
}

func (j *FraudAlertJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeFraudAlert))
	}
	return slog.Default().With(slog.String("job", TaskTypeFraudAlert))
}

func (j *FraudAlertJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *FraudAlertJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
