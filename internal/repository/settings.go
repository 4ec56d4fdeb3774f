package repository

import (
	"context"

	"taximeter/internal/domain"
)

// SettingsRepository defines the persistence operations for meter settings.
type SettingsRepository interface {
	// Get retrieves the settings of a meter.
	// Returns ErrNotFound if the meter has never saved settings.
	Get(ctx context.Context, meterID string) (*domain.MeterSettings, error)

	// Upsert creates or replaces the settings of a meter.
	Upsert(ctx context.Context, settings *domain.MeterSettings) error
}
