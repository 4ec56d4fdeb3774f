package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireMeterLock attempts to acquire the lock for the given meter.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireMeterLock(ctx context.Context, meterID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, meterLockKey(meterID), "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseMeterLock releases the lock for the given meter.
func (s *LockStore) ReleaseMeterLock(ctx context.Context, meterID string) error {
	return s.client.Del(ctx, meterLockKey(meterID)).Err()
}

func meterLockKey(meterID string) string {
	return fmt.Sprintf("lock:meter:%s", meterID)
}
