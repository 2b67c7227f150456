// Package jobs holds the background task types and the Asynq worker that
// runs them against the remote store. The worker is just another client of
// the authoritative store; it never touches a profile's local cache.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockRescan re-derives stock statuses from the remote inventory
	// and emits a digest notification when the picture changed.
	TaskStockRescan = "stock:rescan"
	// TaskAnalyticsWarmup pre-populates the Redis read-model cache.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskSyncNudge announces collections on the change feed so idle
	// clients pull instead of waiting for their fallback timer.
	TaskSyncNudge = "sync:nudge"
)

// StockRescanPayload configures a stock rescan run.
type StockRescanPayload struct {
	Threshold int `json:"threshold"`
}

// AnalyticsWarmupPayload configures a warmup run.
type AnalyticsWarmupPayload struct {
	TopN int `json:"topN"`
}

// SyncNudgePayload lists the collections to announce; empty means all.
type SyncNudgePayload struct {
	Collections []string `json:"collections"`
}

// NewStockRescanTask constructs a stock rescan task.
func NewStockRescanTask(payload StockRescanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockRescan, data), nil
}

// NewAnalyticsWarmupTask constructs a warmup task.
func NewAnalyticsWarmupTask(payload AnalyticsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}

// NewSyncNudgeTask constructs a nudge task.
func NewSyncNudgeTask(payload SyncNudgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncNudge, data), nil
}
