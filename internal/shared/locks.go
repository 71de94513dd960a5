package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BatchLockKey builds redis keys for batch run critical sections.
func BatchLockKey(batchID int64) string {
	return fmt.Sprintf("batch:%d:run", batchID)
}

// releaseScript deletes the lock only when still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RunLock serialises processing runs per batch. A second trigger for
// the same batch fails to acquire and is expected to retry later
// rather than interleave writes with the running instance.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunLock constructs a RunLock with the given hold TTL.
func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl}
}

// Acquire attempts to take the lock for batchID. The token identifies
// the owning run so Release cannot drop a lock taken over after expiry.
func (l *RunLock) Acquire(ctx context.Context, batchID int64, token string) (bool, error) {
	ok, err := l.client.SetNX(ctx, BatchLockKey(batchID), token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("shared: acquire batch lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock if this run still owns it.
func (l *RunLock) Release(ctx context.Context, batchID int64, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{BatchLockKey(batchID)}, token).Err(); err != nil {
		return fmt.Errorf("shared: release batch lock: %w", err)
	}
	return nil
}
