package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taximeter/internal/domain"
	"taximeter/internal/service"
)

// RateHandler serves the built-in tariff table.
type RateHandler struct {
	catalog *service.RateCatalog
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(catalog *service.RateCatalog) *RateHandler {
	return &RateHandler{catalog: catalog}
}

// RateProfileBody is the JSON shape of a rate profile.
type RateProfileBody struct {
	City      string  `json:"city,omitempty"`
	Name      string  `json:"name"`
	Base      float64 `json:"base"`
	BaseKm    float64 `json:"base_km"`
	PerKm     float64 `json:"per_km"`
	EmptyKm   float64 `json:"empty_km"`
	EmptyRate float64 `json:"empty_rate"`
}

func toRateProfileBody(city domain.CityKey, p domain.RateProfile) RateProfileBody {
	return RateProfileBody{
		City:      string(city),
		Name:      p.Name,
		Base:      p.Base,
		BaseKm:    p.BaseKm,
		PerKm:     p.PerKm,
		EmptyKm:   p.EmptyKm,
		EmptyRate: p.EmptyRate,
	}
}

func (b RateProfileBody) toDomain() domain.RateProfile {
	return domain.RateProfile{
		Name:      b.Name,
		Base:      b.Base,
		BaseKm:    b.BaseKm,
		PerKm:     b.PerKm,
		EmptyKm:   b.EmptyKm,
		EmptyRate: b.EmptyRate,
	}
}

// List handles GET /v1/rates
func (h *RateHandler) List(c *gin.Context) {
	cities := h.catalog.Cities()

	response := make([]RateProfileBody, 0, len(cities))
	for _, cr := range cities {
		response = append(response, toRateProfileBody(cr.City, cr.Profile))
	}

	respondJSON(c, http.StatusOK, response)
}
