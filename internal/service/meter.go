package service

import (
	"fmt"
	"math"
	"time"

	"taximeter/internal/domain"
)

const (
	gpsConnecting = "GPS: Connecting..."
	gpsStopped    = "GPS: Stopped"
)

// FareEngine accumulates time and distance for one trip and keeps the fare
// current. It is not safe for concurrent use; a Session serializes access.
type FareEngine struct {
	state     domain.MeterState
	rate      domain.RateProfile
	trip      domain.TripState
	gpsStatus string
	now       func() time.Time
}

// NewFareEngine creates an engine in the NotStarted state.
func NewFareEngine() *FareEngine {
	return &FareEngine{
		state: domain.MeterNotStarted,
		now:   time.Now,
	}
}

// Start begins a new trip billed with rate. The rate is snapshotted so later
// settings edits only affect the next trip.
func (e *FareEngine) Start(rate domain.RateProfile) error {
	if e.state == domain.MeterRunning {
		return ErrMeterRunning
	}

	e.rate = rate
	e.trip = domain.TripState{
		Running:   true,
		StartedAt: e.now(),
		Fare:      rate.Base,
	}
	e.state = domain.MeterRunning
	e.gpsStatus = gpsConnecting

	return nil
}

// Tick advances the elapsed time by one second. It reports false when the
// meter is not running and the tick was dropped.
func (e *FareEngine) Tick() bool {
	if e.state != domain.MeterRunning {
		return false
	}
	e.trip.ElapsedSeconds++
	return true
}

// OnLocation feeds one position fix into the distance integrator. It reports
// whether the fix added distance.
func (e *FareEngine) OnLocation(sample domain.LocationSample) bool {
	if e.state != domain.MeterRunning {
		return false
	}

	e.gpsStatus = fmt.Sprintf("GPS: OK (±%dm)", int(math.Round(sample.AccuracyMeters)))

	// The first fix only anchors the trip; acquisition jitter is not travel.
	if e.trip.LastPosition == nil {
		e.trip.LastPosition = &domain.Position{Lat: sample.Latitude, Lon: sample.Longitude}
		return false
	}

	last := e.trip.LastPosition
	dist := haversineKm(last.Lat, last.Lon, sample.Latitude, sample.Longitude)
	if dist < noiseThresholdKm {
		// Keep the old anchor so slow creeping still adds up.
		return false
	}

	e.trip.DistanceKm += dist
	e.trip.LastPosition = &domain.Position{Lat: sample.Latitude, Lon: sample.Longitude}
	e.Recalculate(e.rate)

	return true
}

// OnLocationError records a positioning failure for the display. Metering
// continues from the last good fix.
func (e *FareEngine) OnLocationError(message string) {
	if e.state != domain.MeterRunning {
		return
	}
	e.gpsStatus = "GPS Error: " + message
}

// Recalculate sets the fare from the accumulated distance.
func (e *FareEngine) Recalculate(rate domain.RateProfile) {
	e.trip.Fare = CalculateFare(e.trip.DistanceKm, rate)
}

// Stop freezes distance, fare and elapsed time.
func (e *FareEngine) Stop() error {
	if e.state != domain.MeterRunning {
		return ErrMeterNotRunning
	}

	e.trip.Running = false
	e.state = domain.MeterStopped
	e.gpsStatus = gpsStopped

	return nil
}

// State returns the meter state.
func (e *FareEngine) State() domain.MeterState {
	return e.state
}

// Rate returns the profile snapshotted at Start.
func (e *FareEngine) Rate() domain.RateProfile {
	return e.rate
}

// GPSStatus returns the last positioning status line.
func (e *FareEngine) GPSStatus() string {
	return e.gpsStatus
}

// Trip returns a copy of the trip state.
func (e *FareEngine) Trip() domain.TripState {
	trip := e.trip
	if trip.LastPosition != nil {
		pos := *trip.LastPosition
		trip.LastPosition = &pos
	}
	return trip
}

// reset discards the trip and seeds the idle display with rate's base fare.
func (e *FareEngine) reset(rate domain.RateProfile) {
	e.state = domain.MeterNotStarted
	e.rate = rate
	e.trip = domain.TripState{Fare: rate.Base}
	e.gpsStatus = ""
}

func (e *FareEngine) setExtras(toll, other float64) {
	e.trip.TollFee = toll
	e.trip.OtherFee = other
}

func (e *FareEngine) setTip(tip float64) {
	e.trip.TipFee = tip
}
