// Package cache keeps a best-effort record of finished swaps in Redis.
// Recording never fails a swap; durable history is the provider's job.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lnbridge/swap-gateway/internal/models"
)

const (
	recentKey     = "swaps:recent"
	eventsChannel = "swaps:events"
	maxRecent     = 100
)

// History is the Redis-backed recent-swap store plus a pub/sub feed of
// lifecycle events for downstream consumers.
type History struct {
	client redis.Cmdable
	pub    *redis.Client
	logger *logrus.Logger
}

// NewHistory wraps an existing client. The caller owns the connection.
func NewHistory(client *redis.Client, logger *logrus.Logger) (*History, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &History{client: client, pub: client, logger: logger}, nil
}

// Record stores a finished swap and publishes it. Best effort: failures
// are logged and swallowed.
func (h *History) Record(ctx context.Context, rec *models.SwapRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		h.logger.WithError(err).Warn("failed to encode swap record")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, recentKey, b)
	pipe.LTrim(ctx, recentKey, 0, maxRecent-1)
	if _, err := pipe.Exec(ctx); err != nil {
		h.logger.WithError(err).Warn("failed to record swap history")
	}

	if err := h.pub.Publish(ctx, eventsChannel, b).Err(); err != nil {
		h.logger.WithError(err).Debug("failed to publish swap event")
	}
}

// Recent returns up to limit finished swaps, newest first.
func (h *History) Recent(ctx context.Context, limit int64) ([]models.SwapRecord, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	vals, err := h.client.LRange(ctx, recentKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read swap history: %w", err)
	}

	out := make([]models.SwapRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.SwapRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
