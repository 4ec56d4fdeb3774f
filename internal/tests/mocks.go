package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"taximeter/internal/domain"
	"taximeter/internal/redis"
	"taximeter/internal/repository"
	"taximeter/internal/service"
)

// ──────────────────────────────────────────────
// MOCK SETTINGS REPOSITORY
// ──────────────────────────────────────────────

// MockSettingsRepository is a mock implementation of SettingsRepository.
type MockSettingsRepository struct {
	mu       sync.RWMutex
	settings map[string]*domain.MeterSettings

	// Counters for verification
	GetCallCount    int32
	UpsertCallCount int32

	// Error injection
	GetError    error
	UpsertError error
}

// NewMockSettingsRepository creates a new mock settings repository.
func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		settings: make(map[string]*domain.MeterSettings),
	}
}

// AddSettings stores settings for a meter.
func (m *MockSettingsRepository) AddSettings(s *domain.MeterSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *s
	m.settings[s.MeterID] = &copy
}

func (m *MockSettingsRepository) Get(ctx context.Context, meterID string) (*domain.MeterSettings, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[meterID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *s
	return &copy, nil
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, s *domain.MeterSettings) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.AddSettings(s)
	return nil
}

// GetSettings returns the stored settings (for test assertions).
func (m *MockSettingsRepository) GetSettings(meterID string) *domain.MeterSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[meterID]
}

// ──────────────────────────────────────────────
// MOCK SETTINGS CACHE
// ──────────────────────────────────────────────

// MockSettingsCache is a mock implementation of SettingsCacheInterface.
type MockSettingsCache struct {
	mu      sync.Mutex
	entries map[string]*redis.CachedSettings

	// Counters
	HitCount        int32
	MissCount       int32
	InvalidateCount int32

	// Error injection
	GetError error
	SetError error
}

// NewMockSettingsCache creates a new mock settings cache.
func NewMockSettingsCache() *MockSettingsCache {
	return &MockSettingsCache{
		entries: make(map[string]*redis.CachedSettings),
	}
}

func (m *MockSettingsCache) GetSettings(ctx context.Context, meterID string) (*redis.CachedSettings, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[meterID]
	if !ok {
		atomic.AddInt32(&m.MissCount, 1)
		return nil, nil
	}
	atomic.AddInt32(&m.HitCount, 1)
	copy := *entry
	return &copy, nil
}

func (m *MockSettingsCache) SetSettings(ctx context.Context, s *redis.CachedSettings) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *s
	m.entries[s.MeterID] = &copy
	return nil
}

func (m *MockSettingsCache) InvalidateSettings(ctx context.Context, meterID string) error {
	atomic.AddInt32(&m.InvalidateCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, meterID)
	return nil
}

// IsCached reports whether a meter has a cache entry.
func (m *MockSettingsCache) IsCached(meterID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[meterID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of MeterLockInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
	ReleaseError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireMeterLock(ctx context.Context, meterID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:meter:" + meterID
	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseMeterLock(ctx context.Context, meterID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if m.ReleaseError != nil {
		return m.ReleaseError
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:meter:"+meterID)
	return nil
}

// IsLocked checks if a meter is locked (for test assertions).
func (m *MockLockStore) IsLocked(meterID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:meter:"+meterID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MANUAL CLOCK
// ──────────────────────────────────────────────

// ManualClock is a TickSource driven by the test. Ticks are buffered so a
// test can queue several before the session loop reads them.
type ManualClock struct {
	mu      sync.Mutex
	ch      chan time.Time
	started int32
	stopped int32
}

// NewManualClock creates a clock that holds up to buffer pending ticks.
func NewManualClock(buffer int) *ManualClock {
	return &ManualClock{ch: make(chan time.Time, buffer)}
}

// Source returns the TickSource to pass in SessionOptions.
func (c *ManualClock) Source() service.TickSource {
	return func() (<-chan time.Time, func()) {
		atomic.AddInt32(&c.started, 1)
		return c.ch, func() { atomic.AddInt32(&c.stopped, 1) }
	}
}

// Advance queues n ticks.
func (c *ManualClock) Advance(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.ch <- time.Now()
	}
}

// Starts returns how many times the clock was started.
func (c *ManualClock) Starts() int {
	return int(atomic.LoadInt32(&c.started))
}

// Stops returns how many times the clock was stopped.
func (c *ManualClock) Stops() int {
	return int(atomic.LoadInt32(&c.stopped))
}

// ──────────────────────────────────────────────
// RECORDING EVENT SINK
// ──────────────────────────────────────────────

// RecordingEvents is a TripEventRecorder that keeps every event.
type RecordingEvents struct {
	mu     sync.Mutex
	events []service.TripEvent
}

// NewRecordingEvents creates an empty recorder.
func NewRecordingEvents() *RecordingEvents {
	return &RecordingEvents{}
}

func (r *RecordingEvents) Record(ctx context.Context, event service.TripEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Types returns the recorded event types in order.
func (r *RecordingEvents) Types() []service.TripEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]service.TripEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Last returns the most recent event.
func (r *RecordingEvents) Last() (service.TripEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return service.TripEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

// kmPerDegreeLat is the length of one degree of latitude on the haversine
// sphere used by the fare engine.
const kmPerDegreeLat = 111.19492664455873

// NorthSteps returns n fixes stepping north from lat, lon by stepKm each.
// The first element is the starting point.
func NorthSteps(lat, lon, stepKm float64, n int) []domain.LocationSample {
	samples := make([]domain.LocationSample, 0, n+1)
	for i := 0; i <= n; i++ {
		samples = append(samples, domain.LocationSample{
			Latitude:       lat + float64(i)*stepKm/kmPerDegreeLat,
			Longitude:      lon,
			AccuracyMeters: 5,
		})
	}
	return samples
}

// ShanghaiRate returns the built-in Shanghai profile.
func ShanghaiRate() domain.RateProfile {
	return service.BuiltinRates()[domain.CityShanghai]
}

// Ensure mocks implement interfaces.
var (
	_ repository.SettingsRepository = (*MockSettingsRepository)(nil)
	_ redis.SettingsCacheInterface  = (*MockSettingsCache)(nil)
	_ redis.MeterLockInterface      = (*MockLockStore)(nil)
	_ service.TripEventRecorder     = (*RecordingEvents)(nil)
)
