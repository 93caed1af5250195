package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

// Deduper suppresses repeated alerts of the same type for the same node
// within a trailing window. State lives in Redis so every pipeline instance
// shares the same suppression view; keys expire on their own, so a crash
// never leaves an alert type muted forever.
type Deduper struct {
	redis  *redis.Client
	window time.Duration
}

// NewDeduper creates a deduper with the given suppression window.
func NewDeduper(redisClient *redis.Client, window time.Duration) *Deduper {
	if window <= 0 {
		window = 20 * time.Minute
	}
	return &Deduper{redis: redisClient, window: window}
}

// ShouldEmit reports whether an alert of this type for this node is the first
// within the suppression window, and records it if so. SETNX makes the
// check-and-record atomic across concurrent pipelines.
func (d *Deduper) ShouldEmit(ctx context.Context, nodeID string, alertType protocol.AlertType) (bool, error) {
	key := fmt.Sprintf("alert_dedup:%s:%s", nodeID, alertType)

	created, err := d.redis.SetNX(ctx, key, time.Now().Unix(), d.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check alert dedup state: %w", err)
	}
	return created, nil
}

// Clear removes the suppression entry for a node and alert type, re-arming
// the alert immediately (used when an operator acknowledges an alert).
func (d *Deduper) Clear(ctx context.Context, nodeID string, alertType protocol.AlertType) error {
	key := fmt.Sprintf("alert_dedup:%s:%s", nodeID, alertType)
	return d.redis.Del(ctx, key).Err()
}

// ActiveSuppressions returns the currently muted (node, type) pairs with the
// time each suppression was recorded (for monitoring).
func (d *Deduper) ActiveSuppressions(ctx context.Context) (map[string]time.Time, error) {
	keys, err := d.redis.Keys(ctx, "alert_dedup:*").Result()
	if err != nil {
		return nil, err
	}

	suppressions := make(map[string]time.Time)
	for _, key := range keys {
		value, err := d.redis.Get(ctx, key).Int64()
		if err != nil {
			continue
		}
		suppressions[key] = time.Unix(value, 0)
	}

	return suppressions, nil
}
