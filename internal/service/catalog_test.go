package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taximeter/internal/domain"
)

func TestRateCatalog_ResolveBuiltin(t *testing.T) {
	catalog, err := NewRateCatalog(nil)
	require.NoError(t, err)

	rate, err := catalog.Resolve(domain.BuiltinRate{City: domain.CityGuangzhou})
	require.NoError(t, err)
	assert.Equal(t, domain.RateProfile{Name: "Guangzhou", Base: 12, BaseKm: 3, PerKm: 2.6, EmptyKm: 25, EmptyRate: 1.5}, rate)

	_, err = catalog.Resolve(domain.BuiltinRate{City: "beijing"})
	assert.ErrorIs(t, err, ErrUnknownCity)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = catalog.Resolve(nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRateCatalog_ResolveCustom(t *testing.T) {
	catalog, err := NewRateCatalog(nil)
	require.NoError(t, err)

	_, err = catalog.Resolve(domain.CustomRate{})
	assert.ErrorIs(t, err, ErrCustomRateNotSet)

	rate, err := catalog.Resolve(domain.CustomRate{Profile: &domain.RateProfile{Base: 10, BaseKm: 2, PerKm: 3}})
	require.NoError(t, err)
	assert.Equal(t, "Custom", rate.Name)
	assert.Equal(t, 15.0, rate.EmptyKm)
	assert.Equal(t, 1.5, rate.EmptyRate)

	_, err = catalog.Resolve(domain.CustomRate{Profile: &domain.RateProfile{Base: math.NaN(), BaseKm: 2, PerKm: 3}})
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = catalog.Resolve(domain.CustomRate{Profile: &domain.RateProfile{Base: 10, BaseKm: 18, PerKm: 3}})
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestRateCatalog_Overrides(t *testing.T) {
	catalog, err := NewRateCatalog(map[domain.CityKey]domain.RateProfile{
		domain.CityNanjing: {Name: "Nanjing", Base: 13, BaseKm: 3, PerKm: 2.8, EmptyKm: 20, EmptyRate: 1.5},
		"suzhou":           {Base: 10, BaseKm: 3, PerKm: 1.8},
	})
	require.NoError(t, err)

	nanjing, err := catalog.Resolve(domain.BuiltinRate{City: domain.CityNanjing})
	require.NoError(t, err)
	assert.Equal(t, 13.0, nanjing.Base)

	suzhou, err := catalog.Resolve(domain.BuiltinRate{City: "suzhou"})
	require.NoError(t, err)
	assert.Equal(t, "suzhou", suzhou.Name)
	assert.Equal(t, 15.0, suzhou.EmptyKm)

	assert.True(t, catalog.Has("suzhou"))
	assert.False(t, catalog.Has(domain.CityCustom))

	cities := catalog.Cities()
	require.Len(t, cities, 4)
	assert.Equal(t, domain.CityGuangzhou, cities[0].City)
	assert.Equal(t, domain.CityKey("suzhou"), cities[3].City)
}

func TestRateCatalog_RejectsBadOverrides(t *testing.T) {
	_, err := NewRateCatalog(map[domain.CityKey]domain.RateProfile{
		domain.CityCustom: {Base: 10, BaseKm: 3, PerKm: 2},
	})
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = NewRateCatalog(map[domain.CityKey]domain.RateProfile{
		"xian": {Base: 10, BaseKm: 3, PerKm: -2},
	})
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestBuiltinRates_ReturnsFreshCopy(t *testing.T) {
	rates := BuiltinRates()
	rates[domain.CityShanghai] = domain.RateProfile{}

	assert.Equal(t, 16.0, BuiltinRates()[domain.CityShanghai].Base)
}
