package domain

import "time"

// MeterState represents the lifecycle of the fare engine.
type MeterState string

const (
	MeterNotStarted MeterState = "NOT_STARTED"
	MeterRunning    MeterState = "RUNNING"
	MeterStopped    MeterState = "STOPPED"
)

// Position is a WGS84 coordinate in decimal degrees.
type Position struct {
	Lat float64
	Lon float64
}

// LocationSample is one fix delivered by the positioning source.
type LocationSample struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
}

// TripState is the mutable state of one trip. It is owned by a single
// session and only changed from that session's event loop.
type TripState struct {
	Running        bool
	StartedAt      time.Time
	ElapsedSeconds int
	DistanceKm     float64
	Fare           float64
	LastPosition   *Position
	TollFee        float64
	OtherFee       float64
	TipFee         float64
}
