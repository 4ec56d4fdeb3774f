package domain

import "time"

// Receipt represents the printed bill for a finished trip.
type Receipt struct {
	ID             string
	SessionID      string
	MeterID        string
	RateName       string
	DistanceKm     float64
	ElapsedSeconds int
	Bill           BillBreakdown
	PaymentQR      string
	StartedAt      time.Time
	CreatedAt      time.Time
}
