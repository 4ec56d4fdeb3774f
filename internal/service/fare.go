package service

import (
	"math"

	"taximeter/internal/domain"
)

const (
	earthRadiusKm = 6371.0

	// noiseThresholdKm is the smallest hop counted as travel. Anything
	// shorter is GPS jitter while standing still.
	noiseThresholdKm = 0.010
)

// CalculateFare applies the tiered tariff to a travelled distance.
//
//	d <= BaseKm           Base
//	BaseKm < d <= EmptyKm Base + (d-BaseKm)*PerKm
//	d > EmptyKm           Base + (EmptyKm-BaseKm)*PerKm + (d-EmptyKm)*PerKm*EmptyRate
func CalculateFare(distanceKm float64, rate domain.RateProfile) float64 {
	fare := rate.Base
	if distanceKm <= rate.BaseKm {
		return fare
	}

	if distanceKm <= rate.EmptyKm {
		return fare + (distanceKm-rate.BaseKm)*rate.PerKm
	}

	fare += (rate.EmptyKm - rate.BaseKm) * rate.PerKm
	fare += (distanceKm - rate.EmptyKm) * rate.PerKm * rate.EmptyRate
	return fare
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
