package domain

// CityKey identifies a built-in fare profile.
type CityKey string

const (
	CityShanghai  CityKey = "shanghai"
	CityGuangzhou CityKey = "guangzhou"
	CityNanjing   CityKey = "nanjing"

	// CityCustom is the settings value that selects the meter's own profile.
	CityCustom CityKey = "custom"
)

// RateProfile describes a tiered taxi tariff.
type RateProfile struct {
	Name      string  `json:"name" mapstructure:"name"`
	Base      float64 `json:"base" mapstructure:"base"`             // flat fare covering BaseKm
	BaseKm    float64 `json:"base_km" mapstructure:"base_km"`       // distance included in Base
	PerKm     float64 `json:"per_km" mapstructure:"per_km"`         // charge per km past BaseKm
	EmptyKm   float64 `json:"empty_km" mapstructure:"empty_km"`     // start of the empty-taxi tier
	EmptyRate float64 `json:"empty_rate" mapstructure:"empty_rate"` // PerKm multiplier past EmptyKm
}

// RateSelector picks the profile a trip is billed with. It is either
// BuiltinRate or CustomRate.
type RateSelector interface {
	isRateSelector()
}

// BuiltinRate selects one of the catalog's city profiles.
type BuiltinRate struct {
	City CityKey
}

// CustomRate selects a caller supplied profile. A nil Profile means the meter
// has no custom profile configured.
type CustomRate struct {
	Profile *RateProfile
}

func (BuiltinRate) isRateSelector() {}
func (CustomRate) isRateSelector()  {}
