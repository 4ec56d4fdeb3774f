package tests

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taximeter/internal/domain"
	"taximeter/internal/service"
)

// ──────────────────────────────────────────────
// METER SETTINGS
// ──────────────────────────────────────────────

func newSettingsService(t *testing.T) (*service.SettingsService, *MockSettingsRepository, *MockSettingsCache) {
	t.Helper()

	catalog, err := service.NewRateCatalog(nil)
	require.NoError(t, err)

	repo := NewMockSettingsRepository()
	cache := NewMockSettingsCache()
	return service.NewSettingsService(repo, cache, catalog, domain.CityNanjing, nil), repo, cache
}

func TestSettings_DefaultsForUnknownMeter(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newSettingsService(t)

	settings, err := svc.Get(context.Background(), "meter-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CityNanjing, settings.City)
	assert.Nil(t, settings.CustomRate)

	// Defaults are not written back.
	assert.Nil(t, repo.GetSettings("meter-1"))
}

func TestSettings_CacheServesRepeatReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo, cache := newSettingsService(t)

	repo.AddSettings(&domain.MeterSettings{MeterID: "meter-1", City: domain.CityGuangzhou})

	_, err := svc.Get(ctx, "meter-1")
	require.NoError(t, err)
	settings, err := svc.Get(ctx, "meter-1")
	require.NoError(t, err)

	assert.Equal(t, domain.CityGuangzhou, settings.City)
	assert.Equal(t, int32(1), repo.GetCallCount)
	assert.Equal(t, int32(1), cache.HitCount)
}

func TestSettings_CacheFailureFallsThrough(t *testing.T) {
	t.Parallel()
	svc, repo, cache := newSettingsService(t)

	cache.GetError = errors.New("redis down")
	cache.SetError = errors.New("redis down")
	repo.AddSettings(&domain.MeterSettings{MeterID: "meter-1", City: domain.CityShanghai})

	settings, err := svc.Get(context.Background(), "meter-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CityShanghai, settings.City)
}

func TestSettings_UpdateValidatesRate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo, _ := newSettingsService(t)

	_, err := svc.Update(ctx, "meter-1", service.UpdateSettingsRequest{City: "beijing"})
	assert.ErrorIs(t, err, service.ErrUnknownCity)

	_, err = svc.Update(ctx, "meter-1", service.UpdateSettingsRequest{City: domain.CityCustom})
	assert.ErrorIs(t, err, service.ErrCustomRateNotSet)

	_, err = svc.Update(ctx, "meter-1", service.UpdateSettingsRequest{
		City:       domain.CityCustom,
		CustomRate: &domain.RateProfile{Base: 10, BaseKm: 20, PerKm: 2, EmptyKm: 15, EmptyRate: 1.5},
	})
	assert.ErrorIs(t, err, service.ErrInvalidRate)

	_, err = svc.Update(ctx, "meter-1", service.UpdateSettingsRequest{
		City:       domain.CityCustom,
		CustomRate: &domain.RateProfile{Base: -1, BaseKm: 3, PerKm: 2},
	})
	assert.ErrorIs(t, err, service.ErrInvalidRate)

	assert.Equal(t, int32(0), repo.UpsertCallCount)
}

func TestSettings_UpdateSavesAndInvalidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo, cache := newSettingsService(t)

	repo.AddSettings(&domain.MeterSettings{MeterID: "meter-1", City: domain.CityShanghai})
	_, err := svc.Get(ctx, "meter-1")
	require.NoError(t, err)
	require.True(t, cache.IsCached("meter-1"))

	custom := &domain.RateProfile{Name: "Airport", Base: 30, BaseKm: 5, PerKm: 3}
	settings, err := svc.Update(ctx, "meter-1", service.UpdateSettingsRequest{
		City:       domain.CityCustom,
		CustomRate: custom,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CityCustom, settings.City)
	assert.False(t, settings.UpdatedAt.IsZero())
	assert.False(t, cache.IsCached("meter-1"))

	stored := repo.GetSettings("meter-1")
	require.NotNil(t, stored)
	require.NotNil(t, stored.CustomRate)
	assert.Equal(t, "Airport", stored.CustomRate.Name)

	sel, err := svc.Selector(ctx, "meter-1")
	require.NoError(t, err)
	customSel, ok := sel.(domain.CustomRate)
	require.True(t, ok)
	assert.Equal(t, 30.0, customSel.Profile.Base)

	// Switching back to a city keeps the custom profile for later.
	settings, err = svc.Update(ctx, "meter-1", service.UpdateSettingsRequest{City: domain.CityNanjing})
	require.NoError(t, err)
	assert.Equal(t, domain.CityNanjing, settings.City)
	require.NotNil(t, settings.CustomRate)
	assert.Equal(t, "Airport", settings.CustomRate.Name)
}

func TestSettings_PaymentQR(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo, _ := newSettingsService(t)

	_, err := svc.SetPaymentQR(ctx, "meter-1", "not a data url")
	assert.ErrorIs(t, err, service.ErrInvalidPaymentQR)

	_, err = svc.SetPaymentQR(ctx, "meter-1", "data:text/plain;base64,aGVsbG8=")
	assert.ErrorIs(t, err, service.ErrInvalidPaymentQR)

	_, err = svc.SetPaymentQR(ctx, "meter-1", "data:image/png;base64,***")
	assert.ErrorIs(t, err, service.ErrInvalidPaymentQR)

	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))
	settings, err := svc.SetPaymentQR(ctx, "meter-1", image)
	require.NoError(t, err)
	assert.Equal(t, image, settings.PaymentQR)
	assert.Equal(t, domain.CityNanjing, settings.City)

	stored := repo.GetSettings("meter-1")
	require.NotNil(t, stored)
	assert.Equal(t, image, stored.PaymentQR)
}

func TestSettings_RepositoryErrorIsReturned(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newSettingsService(t)

	repoErr := errors.New("connection refused")
	repo.GetError = repoErr

	_, err := svc.Get(context.Background(), "meter-1")
	assert.ErrorIs(t, err, repoErr)

	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrInvalidMeterID)
}
