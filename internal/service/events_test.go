package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventLogger_Record(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	recorder := NewEventLogger(zap.New(core), nil)

	recorder.Record(context.Background(), TripEvent{
		Type:       EventBillFinalized,
		SessionID:  "s-1",
		MeterID:    "meter-1",
		RateName:   "Shanghai",
		DistanceKm: 20,
		Fare:       68.65,
		Total:      82.38,
	})

	entries := logs.FilterMessage("trip event").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "BILL_FINALIZED", fields["type"])
	assert.Equal(t, "meter-1", fields["meter_id"])
	assert.Equal(t, 82.38, fields["total"])
}
