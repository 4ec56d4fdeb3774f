package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taximeter/internal/domain"
	"taximeter/internal/repository"
)

// SettingsRepository is a database/sql implementation of
// repository.SettingsRepository.
type SettingsRepository struct {
	q       Querier
	dialect Dialect
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *sql.DB, dialect Dialect) *SettingsRepository {
	return &SettingsRepository{q: db, dialect: dialect}
}

// NewSettingsRepositoryWithTx creates a settings repository using a transaction.
func NewSettingsRepositoryWithTx(tx *sql.Tx, dialect Dialect) *SettingsRepository {
	return &SettingsRepository{q: tx, dialect: dialect}
}

// Get retrieves the settings of a meter.
func (r *SettingsRepository) Get(ctx context.Context, meterID string) (*domain.MeterSettings, error) {
	query := `
		SELECT meter_id, city, custom_rate, payment_qr, updated_at
		FROM meter_settings WHERE meter_id = $1
	`

	var settings domain.MeterSettings
	var city string
	var customRate sql.NullString
	var paymentQR sql.NullString
	var updatedAt int64

	err := r.q.QueryRowContext(ctx, r.dialect.rebind(query), meterID).Scan(
		&settings.MeterID,
		&city,
		&customRate,
		&paymentQR,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	settings.City = domain.CityKey(city)
	if customRate.Valid && customRate.String != "" {
		var rate domain.RateProfile
		if err := json.Unmarshal([]byte(customRate.String), &rate); err != nil {
			return nil, fmt.Errorf("decode custom rate: %w", err)
		}
		settings.CustomRate = &rate
	}
	if paymentQR.Valid {
		settings.PaymentQR = paymentQR.String
	}
	settings.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &settings, nil
}

// Upsert creates or replaces the settings of a meter.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *domain.MeterSettings) error {
	query := `
		INSERT INTO meter_settings (meter_id, city, custom_rate, payment_qr, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (meter_id) DO UPDATE
		SET city = EXCLUDED.city,
			custom_rate = EXCLUDED.custom_rate,
			payment_qr = EXCLUDED.payment_qr,
			updated_at = EXCLUDED.updated_at
	`

	var customRate sql.NullString
	if settings.CustomRate != nil {
		data, err := json.Marshal(settings.CustomRate)
		if err != nil {
			return fmt.Errorf("encode custom rate: %w", err)
		}
		customRate = sql.NullString{String: string(data), Valid: true}
	}

	var paymentQR sql.NullString
	if settings.PaymentQR != "" {
		paymentQR = sql.NullString{String: settings.PaymentQR, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, r.dialect.rebind(query),
		settings.MeterID,
		string(settings.City),
		customRate,
		paymentQR,
		settings.UpdatedAt.Unix(),
	)

	return err
}

// Ensure SettingsRepository implements repository.SettingsRepository.
var _ repository.SettingsRepository = (*SettingsRepository)(nil)
