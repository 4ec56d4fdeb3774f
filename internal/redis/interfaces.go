package redis

import (
	"context"
	"time"
)

// MeterLockInterface defines the interface for per-meter session locking.
type MeterLockInterface interface {
	AcquireMeterLock(ctx context.Context, meterID string, ttl time.Duration) (bool, error)
	ReleaseMeterLock(ctx context.Context, meterID string) error
}

// SettingsCacheInterface defines the interface for meter settings caching.
type SettingsCacheInterface interface {
	GetSettings(ctx context.Context, meterID string) (*CachedSettings, error)
	SetSettings(ctx context.Context, settings *CachedSettings) error
	InvalidateSettings(ctx context.Context, meterID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ MeterLockInterface     = (*LockStore)(nil)
	_ SettingsCacheInterface = (*CacheStore)(nil)
)
