package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taximeter/internal/domain"
)

// SettingsCacheTTL bounds how stale a cached settings entry may get if an
// invalidation is lost.
const SettingsCacheTTL = 5 * time.Minute

const settingsCachePrefix = "cache:settings:"

// CacheStore handles settings caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// CachedSettings represents cached meter settings.
type CachedSettings struct {
	MeterID    string              `json:"meter_id"`
	City       string              `json:"city"`
	CustomRate *domain.RateProfile `json:"custom_rate,omitempty"`
	PaymentQR  string              `json:"payment_qr,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// GetSettings retrieves meter settings from cache. A miss returns nil, nil.
func (s *CacheStore) GetSettings(ctx context.Context, meterID string) (*CachedSettings, error) {
	data, err := s.client.Get(ctx, settingsCachePrefix+meterID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var settings CachedSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SetSettings stores meter settings in cache.
func (s *CacheStore) SetSettings(ctx context.Context, settings *CachedSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, settingsCachePrefix+settings.MeterID, data, SettingsCacheTTL).Err()
}

// InvalidateSettings removes meter settings from cache.
func (s *CacheStore) InvalidateSettings(ctx context.Context, meterID string) error {
	return s.client.Del(ctx, settingsCachePrefix+meterID).Err()
}
