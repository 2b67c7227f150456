package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/remote"
)

// syncedCollections lists every collection the engine reconciles.
var syncedCollections = []string{
	localcache.NSInventory,
	localcache.NSOrders,
	localcache.NSPreparedOrders,
	localcache.NSNotifications,
	localcache.NSExpenses,
}

// SyncNudgeJob announces collections on the change feed so idle clients
// pull without waiting for their fallback timer.
type SyncNudgeJob struct {
	Feed   *remote.Feed
	Logger *slog.Logger
}

// NewSyncNudgeJob wires dependencies for the nudge handler.
func NewSyncNudgeJob(feed *remote.Feed, logger *slog.Logger) *SyncNudgeJob {
	return &SyncNudgeJob{Feed: feed, Logger: logger}
}

// Handle publishes one announcement per collection.
func (j *SyncNudgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Feed == nil {
		return errors.New("sync nudge: handler not configured")
	}
	var payload SyncNudgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	collections := payload.Collections
	if len(collections) == 0 {
		collections = syncedCollections
	}
	for _, collection := range collections {
		if err := j.Feed.Announce(ctx, collection); err != nil {
			return err
		}
	}
	j.Logger.Info("sync nudge announced", "collections", len(collections))
	return nil
}
