package service

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"
)

// TripEventType represents the type of trip lifecycle event.
type TripEventType string

const (
	EventTripStarted   TripEventType = "TRIP_STARTED"
	EventTripStopped   TripEventType = "TRIP_STOPPED"
	EventBillFinalized TripEventType = "BILL_FINALIZED"
	EventTripReset     TripEventType = "TRIP_RESET"
)

const nrTripEventCategory = "TaxiTripEvent"

// TripEvent is emitted on each billing milestone of a session.
type TripEvent struct {
	Type           TripEventType
	SessionID      string
	MeterID        string
	RateName       string
	DistanceKm     float64
	ElapsedSeconds int
	Fare           float64
	Total          float64
	OccurredAt     time.Time
}

// TripEventRecorder receives trip lifecycle events.
type TripEventRecorder interface {
	Record(ctx context.Context, event TripEvent)
}

// EventLogger writes trip events to the log and, when an application is
// configured, to New Relic as custom events.
type EventLogger struct {
	logger *zap.Logger
	nrApp  *newrelic.Application
}

// NewEventLogger creates a new EventLogger. nrApp may be nil.
func NewEventLogger(logger *zap.Logger, nrApp *newrelic.Application) *EventLogger {
	return &EventLogger{logger: logger, nrApp: nrApp}
}

// Record logs the event and forwards it to New Relic.
func (r *EventLogger) Record(ctx context.Context, event TripEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	r.logger.Info("trip event",
		zap.String("type", string(event.Type)),
		zap.String("session_id", event.SessionID),
		zap.String("meter_id", event.MeterID),
		zap.String("rate", event.RateName),
		zap.Float64("distance_km", event.DistanceKm),
		zap.Int("elapsed_seconds", event.ElapsedSeconds),
		zap.Float64("fare", event.Fare),
		zap.Float64("total", event.Total),
	)

	if txn := newrelic.FromContext(ctx); txn != nil {
		txn.AddAttribute("session_id", event.SessionID)
		txn.AddAttribute("meter_id", event.MeterID)
	}

	if r.nrApp == nil {
		return
	}
	r.nrApp.RecordCustomEvent(nrTripEventCategory, map[string]interface{}{
		"type":           string(event.Type),
		"sessionId":      event.SessionID,
		"meterId":        event.MeterID,
		"rate":           event.RateName,
		"distanceKm":     event.DistanceKm,
		"elapsedSeconds": event.ElapsedSeconds,
		"fare":           event.Fare,
		"total":          event.Total,
	})
}

var _ TripEventRecorder = (*EventLogger)(nil)
