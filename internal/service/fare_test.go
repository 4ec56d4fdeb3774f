package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taximeter/internal/domain"
)

func shanghai() domain.RateProfile {
	return BuiltinRates()[domain.CityShanghai]
}

func TestCalculateFare_Tiers(t *testing.T) {
	rate := shanghai()

	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"zero distance", 0, 16},
		{"inside base distance", 2.5, 16},
		{"exactly base distance", 3, 16},
		{"standard tier", 10, 16 + 7*2.7},
		{"exactly empty-taxi threshold", 15, 16 + 12*2.7},
		{"empty-taxi tier", 20, 68.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateFare(tt.distance, rate), 1e-9)
		})
	}
}

func TestCalculateFare_ContinuousAtBoundaries(t *testing.T) {
	for city, rate := range BuiltinRates() {
		const eps = 1e-9
		assert.InDelta(t, CalculateFare(rate.BaseKm, rate), CalculateFare(rate.BaseKm+eps, rate), 1e-6, city)
		assert.InDelta(t, CalculateFare(rate.EmptyKm, rate), CalculateFare(rate.EmptyKm+eps, rate), 1e-6, city)
	}
}

func TestCalculateFare_Monotonic(t *testing.T) {
	for city, rate := range BuiltinRates() {
		prev := CalculateFare(0, rate)
		for d := 0.1; d <= 40; d += 0.1 {
			fare := CalculateFare(d, rate)
			assert.GreaterOrEqual(t, fare, prev, "%s at %.1f km", city, d)
			prev = fare
		}
	}
}

func TestHaversineKm(t *testing.T) {
	// One degree of latitude along a meridian.
	assert.InDelta(t, 111.19492664455873, haversineKm(0, 0, 1, 0), 1e-9)

	// Same point.
	assert.Zero(t, haversineKm(31.23, 121.47, 31.23, 121.47))

	// Symmetric.
	a := haversineKm(31.23, 121.47, 32.06, 118.79)
	b := haversineKm(32.06, 118.79, 31.23, 121.47)
	assert.InDelta(t, a, b, 1e-9)

	// Shanghai to Nanjing is roughly 270 km as the crow flies.
	assert.InDelta(t, 270, a, 10)
}
