package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taximeter/internal/domain"
	"taximeter/internal/redis"
)

const (
	defaultMeterLockTTL = 12 * time.Hour
	lockReleaseTimeout  = 2 * time.Second
)

// RateSource supplies the rate selector currently configured for a meter.
type RateSource interface {
	Selector(ctx context.Context, meterID string) (domain.RateSelector, error)
}

type managedSession struct {
	session *Session
	cancel  context.CancelFunc
}

// SessionManager owns the live sessions, one per meter.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*managedSession

	catalog *RateCatalog
	rates   RateSource
	locks   redis.MeterLockInterface
	lockTTL time.Duration
	opts    SessionOptions
	logger  *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(
	catalog *RateCatalog,
	rates RateSource,
	locks redis.MeterLockInterface,
	lockTTL time.Duration,
	opts SessionOptions,
	logger *zap.Logger,
) *SessionManager {
	if lockTTL <= 0 {
		lockTTL = defaultMeterLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = logger

	return &SessionManager{
		sessions: make(map[string]*managedSession),
		catalog:  catalog,
		rates:    rates,
		locks:    locks,
		lockTTL:  lockTTL,
		opts:     opts,
		logger:   logger,
	}
}

// Create opens a session for meterID. Only one session per meter may be
// live at a time.
func (m *SessionManager) Create(ctx context.Context, meterID string) (*Session, error) {
	if meterID == "" {
		return nil, ErrInvalidMeterID
	}

	ok, err := m.locks.AcquireMeterLock(ctx, meterID, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire meter lock: %w", err)
	}
	if !ok {
		return nil, ErrMeterBusy
	}

	sess := NewSession(uuid.New().String(), meterID, m.catalog, m.opts)

	// The loop outlives the request that created it.
	loopCtx, cancel := context.WithCancel(context.Background())
	go sess.Run(loopCtx)

	m.mu.Lock()
	m.sessions[sess.ID] = &managedSession{session: sess, cancel: cancel}
	m.mu.Unlock()

	m.logger.Info("session opened", zap.String("session_id", sess.ID), zap.String("meter_id", meterID))
	return sess, nil
}

// Get returns a live session.
func (m *SessionManager) Get(id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidSessionID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ms, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ms.session, nil
}

// Begin starts a trip with the rate currently configured for the meter.
func (m *SessionManager) Begin(ctx context.Context, id string) (domain.RateProfile, error) {
	sess, err := m.Get(id)
	if err != nil {
		return domain.RateProfile{}, err
	}

	// Settings are read before the command enters the loop so the loop
	// itself never waits on storage.
	sel, err := m.rates.Selector(ctx, sess.MeterID)
	if err != nil {
		return domain.RateProfile{}, err
	}

	return sess.Begin(ctx, sel)
}

// Reset discards the session's trip and re-seeds it from the meter settings.
func (m *SessionManager) Reset(ctx context.Context, id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}

	sel, err := m.rates.Selector(ctx, sess.MeterID)
	if err != nil {
		return err
	}

	return sess.Reset(ctx, sel)
}

// Close stops a session's loop and releases its meter. The meter lock is
// released even when ctx ends before the loop has exited, since the session
// is no longer reachable once it leaves the map.
func (m *SessionManager) Close(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidSessionID
	}

	m.mu.Lock()
	ms, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	ms.cancel()
	var waitErr error
	select {
	case <-ms.session.Done():
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := m.locks.ReleaseMeterLock(releaseCtx, ms.session.MeterID); err != nil {
		m.logger.Warn("failed to release meter lock",
			zap.String("meter_id", ms.session.MeterID),
			zap.Error(err),
		)
		return fmt.Errorf("release meter lock: %w", err)
	}
	if waitErr != nil {
		return waitErr
	}

	m.logger.Info("session closed", zap.String("session_id", id), zap.String("meter_id", ms.session.MeterID))
	return nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every live session.
func (m *SessionManager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil {
			m.logger.Warn("failed to close session", zap.String("session_id", id), zap.Error(err))
		}
	}
}
