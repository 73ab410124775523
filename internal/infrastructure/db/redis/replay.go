package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qrstock/inventory-api/internal/core/ports"
)

const (
	replayKeyPrefix = "scan:idem:"
	replayTTL       = 24 * time.Hour
)

// ReplayCache stores the outcome of scan requests that carried an
// Idempotency-Key so retries get the original answer.
// Key format: scan:idem:<idempotency_key>
type ReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayCache creates a ReplayCache wrapping the given Redis client.
func NewReplayCache(client *redis.Client) *ReplayCache {
	return &ReplayCache{client: client, ttl: replayTTL}
}

// Get returns the stored result for key, if any.
func (c *ReplayCache) Get(ctx context.Context, key string) (*ports.ScanResult, bool, error) {
	raw, err := c.client.Get(ctx, replayKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("replay get: %w", err)
	}

	var res ports.ScanResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, fmt.Errorf("replay decode: %w", err)
	}
	return &res, true, nil
}

// Put records result under key. The first writer wins.
func (c *ReplayCache) Put(ctx context.Context, key string, result *ports.ScanResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("replay encode: %w", err)
	}
	return c.client.SetNX(ctx, replayKeyPrefix+key, raw, c.ttl).Err()
}
