package service

import (
	"fmt"
	"math"
	"sort"

	"taximeter/internal/domain"
)

const (
	defaultEmptyKm   = 15.0
	defaultEmptyRate = 1.5
)

// BuiltinRates returns the tariffs shipped with the meter.
func BuiltinRates() map[domain.CityKey]domain.RateProfile {
	return map[domain.CityKey]domain.RateProfile{
		domain.CityShanghai:  {Name: "Shanghai", Base: 16, BaseKm: 3, PerKm: 2.7, EmptyKm: 15, EmptyRate: 1.5},
		domain.CityGuangzhou: {Name: "Guangzhou", Base: 12, BaseKm: 3, PerKm: 2.6, EmptyKm: 25, EmptyRate: 1.5},
		domain.CityNanjing:   {Name: "Nanjing", Base: 11, BaseKm: 3, PerKm: 2.5, EmptyKm: 20, EmptyRate: 1.5},
	}
}

// RateCatalog resolves rate selectors into profiles. It is read-only after
// construction and safe for concurrent use.
type RateCatalog struct {
	builtin map[domain.CityKey]domain.RateProfile
}

// NewRateCatalog creates a catalog from the built-in tariffs, with overrides
// replacing or adding cities.
func NewRateCatalog(overrides map[domain.CityKey]domain.RateProfile) (*RateCatalog, error) {
	builtin := BuiltinRates()
	for city, profile := range overrides {
		if city == "" || city == domain.CityCustom {
			return nil, fmt.Errorf("%w: reserved city key %q", ErrInvalidRate, city)
		}
		if profile.Name == "" {
			profile.Name = string(city)
		}
		profile = withDefaults(profile)
		if err := ValidateRate(profile); err != nil {
			return nil, fmt.Errorf("city %s: %w", city, err)
		}
		builtin[city] = profile
	}
	return &RateCatalog{builtin: builtin}, nil
}

// Resolve returns the profile a selector points at.
func (c *RateCatalog) Resolve(sel domain.RateSelector) (domain.RateProfile, error) {
	switch s := sel.(type) {
	case domain.BuiltinRate:
		profile, ok := c.builtin[s.City]
		if !ok {
			return domain.RateProfile{}, fmt.Errorf("%w: %q", ErrUnknownCity, s.City)
		}
		return profile, nil
	case domain.CustomRate:
		if s.Profile == nil {
			return domain.RateProfile{}, ErrCustomRateNotSet
		}
		profile := withDefaults(*s.Profile)
		if profile.Name == "" {
			profile.Name = "Custom"
		}
		if err := ValidateRate(profile); err != nil {
			return domain.RateProfile{}, err
		}
		return profile, nil
	default:
		return domain.RateProfile{}, fmt.Errorf("%w: no rate selected", ErrConfig)
	}
}

// Has reports whether city is a built-in key.
func (c *RateCatalog) Has(city domain.CityKey) bool {
	_, ok := c.builtin[city]
	return ok
}

// CityRate pairs a city key with its profile.
type CityRate struct {
	City    domain.CityKey
	Profile domain.RateProfile
}

// Cities lists the built-in profiles ordered by key.
func (c *RateCatalog) Cities() []CityRate {
	out := make([]CityRate, 0, len(c.builtin))
	for city, profile := range c.builtin {
		out = append(out, CityRate{City: city, Profile: profile})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}

// ValidateRate checks the tariff invariants: finite, non-negative values and
// BaseKm <= EmptyKm so the tiers stay ordered.
func ValidateRate(p domain.RateProfile) error {
	for _, v := range []float64{p.Base, p.BaseKm, p.PerKm, p.EmptyKm, p.EmptyRate} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: values must be finite and non-negative", ErrInvalidRate)
		}
	}
	if p.BaseKm > p.EmptyKm {
		return fmt.Errorf("%w: base distance %.2f exceeds empty-taxi threshold %.2f", ErrInvalidRate, p.BaseKm, p.EmptyKm)
	}
	return nil
}

// withDefaults fills the empty-taxi tier when a profile leaves it unset.
func withDefaults(p domain.RateProfile) domain.RateProfile {
	if p.EmptyKm == 0 {
		p.EmptyKm = defaultEmptyKm
	}
	if p.EmptyRate == 0 {
		p.EmptyRate = defaultEmptyRate
	}
	return p
}
