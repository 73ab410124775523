package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix   = "scan:lock:"
	defaultLockTTL  = 10 * time.Second
	lockRetryPeriod = 25 * time.Millisecond
)

var ErrLockNotReleased = errors.New("lock expired or taken over before release")

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// KeyLocker is a per-key mutual exclusion lock shared by every process that
// points at the same Redis instance.
// Key format: scan:lock:<reference>|<serial>
type KeyLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewKeyLocker creates a KeyLocker. Locks expire after ttl so a crashed
// holder cannot block a key forever.
func NewKeyLocker(client *redis.Client, ttl time.Duration) *KeyLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &KeyLocker{client: client, ttl: ttl}
}

// Acquire blocks until the lock for key is held or ctx ends.
func (l *KeyLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lockKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryPeriod)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Int()
		if err != nil {
			return fmt.Errorf("unlock %s: %w", key, err)
		}
		if n == 0 {
			return ErrLockNotReleased
		}
		return nil
	}
	return release, nil
}
