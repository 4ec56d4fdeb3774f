package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"taximeter/internal/domain"
	"taximeter/internal/redis"
	"taximeter/internal/repository"
)

const maxPaymentQRBytes = 1 << 20

// SettingsService handles per-meter rate and payment preferences.
type SettingsService struct {
	repo        repository.SettingsRepository
	cache       redis.SettingsCacheInterface
	catalog     *RateCatalog
	defaultCity domain.CityKey
	logger      *zap.Logger
	now         func() time.Time
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(
	repo repository.SettingsRepository,
	cache redis.SettingsCacheInterface,
	catalog *RateCatalog,
	defaultCity domain.CityKey,
	logger *zap.Logger,
) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{
		repo:        repo,
		cache:       cache,
		catalog:     catalog,
		defaultCity: defaultCity,
		logger:      logger,
		now:         time.Now,
	}
}

// Get returns a meter's settings, falling back to the default city for a
// meter that never saved any.
func (s *SettingsService) Get(ctx context.Context, meterID string) (*domain.MeterSettings, error) {
	if meterID == "" {
		return nil, ErrInvalidMeterID
	}

	cached, err := s.cache.GetSettings(ctx, meterID)
	if err != nil {
		// Cache failures fall through to the database.
		s.logger.Warn("settings cache read failed", zap.String("meter_id", meterID), zap.Error(err))
	}
	if cached != nil {
		return fromCached(cached), nil
	}

	settings, err := s.repo.Get(ctx, meterID)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.MeterSettings{MeterID: meterID, City: s.defaultCity}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetSettings(ctx, toCached(settings)); err != nil {
		s.logger.Warn("settings cache write failed", zap.String("meter_id", meterID), zap.Error(err))
	}

	return settings, nil
}

// UpdateSettingsRequest contains the fields edited on the settings form.
type UpdateSettingsRequest struct {
	City       domain.CityKey
	CustomRate *domain.RateProfile
}

// Update validates and saves the rate selection of a meter.
func (s *SettingsService) Update(ctx context.Context, meterID string, req UpdateSettingsRequest) (*domain.MeterSettings, error) {
	current, err := s.Get(ctx, meterID)
	if err != nil {
		return nil, err
	}

	customRate := current.CustomRate
	if req.CustomRate != nil {
		rate := *req.CustomRate
		customRate = &rate
	}

	if req.City == domain.CityCustom {
		if _, err := s.catalog.Resolve(domain.CustomRate{Profile: customRate}); err != nil {
			return nil, err
		}
	} else if !s.catalog.Has(req.City) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCity, req.City)
	}

	current.City = req.City
	current.CustomRate = customRate

	if err := s.save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// SetPaymentQR stores the payment QR image shown on the final bill. The
// image must be a base64 data URL.
func (s *SettingsService) SetPaymentQR(ctx context.Context, meterID, dataURL string) (*domain.MeterSettings, error) {
	if err := validatePaymentQR(dataURL); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, meterID)
	if err != nil {
		return nil, err
	}

	current.PaymentQR = dataURL
	if err := s.save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Selector returns the rate selector configured for a meter.
func (s *SettingsService) Selector(ctx context.Context, meterID string) (domain.RateSelector, error) {
	settings, err := s.Get(ctx, meterID)
	if err != nil {
		return nil, err
	}
	return settings.Selector(), nil
}

func (s *SettingsService) save(ctx context.Context, settings *domain.MeterSettings) error {
	settings.UpdatedAt = s.now().UTC().Truncate(time.Second)

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return err
	}

	if err := s.cache.InvalidateSettings(ctx, settings.MeterID); err != nil {
		s.logger.Warn("settings cache invalidation failed", zap.String("meter_id", settings.MeterID), zap.Error(err))
	}
	return nil
}

func validatePaymentQR(dataURL string) error {
	if len(dataURL) > maxPaymentQRBytes {
		return fmt.Errorf("%w: image too large", ErrInvalidPaymentQR)
	}

	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return fmt.Errorf("%w: expected base64 image data url", ErrInvalidPaymentQR)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPaymentQR, err)
	}
	return nil
}

func toCached(s *domain.MeterSettings) *redis.CachedSettings {
	return &redis.CachedSettings{
		MeterID:    s.MeterID,
		City:       string(s.City),
		CustomRate: s.CustomRate,
		PaymentQR:  s.PaymentQR,
		UpdatedAt:  s.UpdatedAt,
	}
}

func fromCached(c *redis.CachedSettings) *domain.MeterSettings {
	return &domain.MeterSettings{
		MeterID:    c.MeterID,
		City:       domain.CityKey(c.City),
		CustomRate: c.CustomRate,
		PaymentQR:  c.PaymentQR,
		UpdatedAt:  c.UpdatedAt,
	}
}

var _ RateSource = (*SettingsService)(nil)
