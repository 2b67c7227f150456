package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sarisync/sarisync/internal/inventory"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/notifications"
	"github.com/sarisync/sarisync/internal/remote"
)

// rescanDigestKey remembers the last observed stock picture so repeated
// scans of an unchanged inventory emit nothing.
const rescanDigestKey = "jobs:stock-rescan:digest"

// StockRescanJob re-derives statuses from the remote inventory collection
// and appends one digest notification document when low or out-of-stock
// items changed since the previous run.
type StockRescanJob struct {
	Remote *remote.Client
	Feed   *remote.Feed
	Redis  *redis.Client
	Logger *slog.Logger
	clock  func() time.Time
}

// NewStockRescanJob wires dependencies for the rescan handler.
func NewStockRescanJob(client *remote.Client, feed *remote.Feed, rds *redis.Client, logger *slog.Logger) *StockRescanJob {
	return &StockRescanJob{
		Remote: client,
		Feed:   feed,
		Redis:  rds,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the rescan.
func (j *StockRescanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Remote == nil {
		return errors.New("stock rescan: handler not configured")
	}
	var payload StockRescanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Threshold <= 0 {
		payload.Threshold = inventory.DefaultLowStockThreshold
	}

	docs, err := j.Remote.List(ctx, localcache.NSInventory)
	if err != nil {
		return fmt.Errorf("stock rescan: list inventory: %w", err)
	}

	var low, out []string
	for _, doc := range docs {
		var item inventory.Item
		if err := json.Unmarshal(doc.Payload, &item); err != nil {
			j.Logger.Warn("skipping undecodable inventory document", "id", doc.ID, "err", err)
			continue
		}
		switch inventory.StatusFor(item.Stock, payload.Threshold) {
		case inventory.StatusOutOfStock:
			out = append(out, item.Name)
		case inventory.StatusLowStock:
			low = append(low, item.Name)
		}
	}
	if len(low) == 0 && len(out) == 0 {
		return j.rememberDigest(ctx, "")
	}

	digest := digestOf(low, out)
	prev, err := j.Redis.Get(ctx, rescanDigestKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("stock rescan: read digest: %w", err)
	}
	if prev == digest {
		return nil
	}

	now := j.clock()
	n := notifications.Notification{
		ID:        uuid.NewString(),
		Type:      notifications.TypeInventory,
		Title:     "Stock check",
		Message:   fmt.Sprintf("%d low-stock and %d out-of-stock items", len(low), len(out)),
		At:        now,
		Priority:  notifications.PriorityMedium,
		UpdatedAt: now,
	}
	if len(out) > 0 {
		n.Priority = notifications.PriorityHigh
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("stock rescan: marshal notification: %w", err)
	}
	err = j.Remote.PutMany(ctx, []remote.Document{{
		Collection: localcache.NSNotifications,
		ID:         n.ID,
		Payload:    body,
		UpdatedAt:  now,
	}})
	if err != nil {
		return fmt.Errorf("stock rescan: push notification: %w", err)
	}
	if j.Feed != nil {
		if err := j.Feed.Announce(ctx, localcache.NSNotifications); err != nil {
			j.Logger.Warn("stock rescan announce failed", "err", err)
		}
	}
	j.Logger.Info("stock rescan emitted digest", "low", len(low), "out", len(out))
	return j.rememberDigest(ctx, digest)
}

func (j *StockRescanJob) rememberDigest(ctx context.Context, digest string) error {
	if digest == "" {
		err := j.Redis.Del(ctx, rescanDigestKey).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("stock rescan: clear digest: %w", err)
		}
		return nil
	}
	if err := j.Redis.Set(ctx, rescanDigestKey, digest, 0).Err(); err != nil {
		return fmt.Errorf("stock rescan: store digest: %w", err)
	}
	return nil
}

func digestOf(low, out []string) string {
	h := sha256.New()
	for _, name := range low {
		h.Write([]byte("low:" + name + "\n"))
	}
	for _, name := range out {
		h.Write([]byte("out:" + name + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
