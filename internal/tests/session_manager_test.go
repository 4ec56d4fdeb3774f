package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taximeter/internal/domain"
	"taximeter/internal/service"
)

// ──────────────────────────────────────────────
// SESSION MANAGER
// ──────────────────────────────────────────────

type managerFixture struct {
	manager  *service.SessionManager
	locks    *MockLockStore
	repo     *MockSettingsRepository
	cache    *MockSettingsCache
	settings *service.SettingsService
	clock    *ManualClock
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	catalog, err := service.NewRateCatalog(nil)
	require.NoError(t, err)

	f := &managerFixture{
		locks: NewMockLockStore(),
		repo:  NewMockSettingsRepository(),
		cache: NewMockSettingsCache(),
		clock: NewManualClock(64),
	}
	f.settings = service.NewSettingsService(f.repo, f.cache, catalog, domain.CityShanghai, nil)
	f.manager = service.NewSessionManager(catalog, f.settings, f.locks, time.Hour, service.SessionOptions{
		TickSource: f.clock.Source(),
	}, nil)

	t.Cleanup(func() {
		f.manager.Shutdown(context.Background())
	})
	return f
}

func TestSessionManager_OneSessionPerMeter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newManagerFixture(t)

	sess, err := f.manager.Create(ctx, "meter-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, f.locks.IsLocked("meter-1"))

	_, err = f.manager.Create(ctx, "meter-1")
	assert.ErrorIs(t, err, service.ErrMeterBusy)

	other, err := f.manager.Create(ctx, "meter-2")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, other.ID)
	assert.Equal(t, 2, f.manager.Count())

	require.NoError(t, f.manager.Close(ctx, sess.ID))
	assert.False(t, f.locks.IsLocked("meter-1"))
	assert.Equal(t, 1, f.manager.Count())

	_, err = f.manager.Get(sess.ID)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	again, err := f.manager.Create(ctx, "meter-1")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, again.ID)
}

func TestSessionManager_CreateValidatesInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newManagerFixture(t)

	_, err := f.manager.Create(ctx, "")
	assert.ErrorIs(t, err, service.ErrInvalidMeterID)

	_, err = f.manager.Get("")
	assert.ErrorIs(t, err, service.ErrInvalidSessionID)

	err = f.manager.Close(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestSessionManager_LockStoreFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newManagerFixture(t)

	lockErr := errors.New("redis down")
	f.locks.AcquireError = lockErr

	_, err := f.manager.Create(ctx, "meter-1")
	assert.ErrorIs(t, err, lockErr)
	assert.Equal(t, 0, f.manager.Count())
}

func TestSessionManager_BeginUsesMeterSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newManagerFixture(t)

	f.repo.AddSettings(&domain.MeterSettings{
		MeterID: "meter-1",
		City:    domain.CityCustom,
		CustomRate: &domain.RateProfile{
			Name: "Night", Base: 20, BaseKm: 2, PerKm: 4, EmptyKm: 12, EmptyRate: 1.5,
		},
	})

	sess, err := f.manager.Create(ctx, "meter-1")
	require.NoError(t, err)

	rate, err := f.manager.Begin(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Night", rate.Name)

	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20.00", snap.Reading.Fare)
	assert.Equal(t, "Night", snap.Reading.RateName)
}

func TestSessionManager_BeginFallsBackToDefaultCity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newManagerFixture(t)

	sess, err := f.manager.Create(ctx, "meter-new")
	require.NoError(t, err)

	rate, err := f.manager.Begin(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shanghai", rate.Name)
}

func TestSessionManager_BeginWithIncompleteCustomSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newManagerFixture(t)

	f.repo.AddSettings(&domain.MeterSettings{MeterID: "meter-1", City: domain.CityCustom})

	sess, err := f.manager.Create(ctx, "meter-1")
	require.NoError(t, err)

	_, err = f.manager.Begin(ctx, sess.ID)
	assert.ErrorIs(t, err, service.ErrCustomRateNotSet)
}

func TestSessionManager_ResetSeedsFromSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newManagerFixture(t)

	sess, err := f.manager.Create(ctx, "meter-1")
	require.NoError(t, err)

	_, err = f.manager.Begin(ctx, sess.ID)
	require.NoError(t, err)

	_, err = f.settings.Update(ctx, "meter-1", service.UpdateSettingsRequest{City: domain.CityGuangzhou})
	require.NoError(t, err)

	require.NoError(t, f.manager.Reset(ctx, sess.ID))

	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StageIdle, snap.Reading.Stage)
	assert.Equal(t, "12.00", snap.Reading.Fare)
}

func TestSessionManager_CloseWithCancelledContextReleasesMeter(t *testing.T) {
	t.Parallel()
	f := newManagerFixture(t)

	sess, err := f.manager.Create(context.Background(), "meter-x")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either the loop exits first or the wait is cut short; the meter is
	// released in both cases.
	err = f.manager.Close(ctx, sess.ID)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.False(t, f.locks.IsLocked("meter-x"))

	_, err = f.manager.Get(sess.ID)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	again, err := f.manager.Create(context.Background(), "meter-x")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, again.ID)

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("closed session loop still running")
	}
}

func TestSessionManager_ShutdownClosesEverySession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newManagerFixture(t)

	a, err := f.manager.Create(ctx, "meter-a")
	require.NoError(t, err)
	b, err := f.manager.Create(ctx, "meter-b")
	require.NoError(t, err)

	f.manager.Shutdown(ctx)

	assert.Equal(t, 0, f.manager.Count())
	assert.False(t, f.locks.IsLocked("meter-a"))
	assert.False(t, f.locks.IsLocked("meter-b"))

	for _, sess := range []*service.Session{a, b} {
		select {
		case <-sess.Done():
		default:
			t.Errorf("session %s still running", sess.ID)
		}
	}
}
