package domain

import "time"

// MeterSettings are the per-meter preferences edited on the settings form.
type MeterSettings struct {
	MeterID    string
	City       CityKey
	CustomRate *RateProfile
	PaymentQR  string // data URL of the uploaded payment QR image
	UpdatedAt  time.Time
}

// Selector converts the settings into the rate selector used for a trip.
func (s *MeterSettings) Selector() RateSelector {
	if s.City == CityCustom {
		return CustomRate{Profile: s.CustomRate}
	}
	return BuiltinRate{City: s.City}
}
