package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries security-sensitive jobs ahead of the default queue.
	QueueCritical = "critical"

	// TaskTypeFraudAlert is the task type for critical authorization alerts.
	TaskTypeFraudAlert = "security:fraud_alert"
	// TaskTypeExpiryScan is the task type for the batch expiry sweep.
	TaskTypeExpiryScan = "inventory:expiry_scan"
)

// FraudAlertPayload records a critical action that passed the PIN gate.
type FraudAlertPayload struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	ActorID   int64     `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Action    string    `json:"action"`
	Severity  string    `json:"severity"`
	At        time.Time `json:"at"`
}

// NewFraudAlertTask constructs an Asynq task.
func NewFraudAlertTask(payload FraudAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeFraudAlert, data), nil
}

// ExpiryScanPayload configures the batch expiry sweep.
type ExpiryScanPayload struct {
	// HorizonDays is how far ahead to look for expiring stock.
	HorizonDays int `json:"horizon_days"`
}

// NewExpiryScanTask constructs an Asynq task.
func NewExpiryScanTask(payload ExpiryScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExpiryScan, data), nil
}
