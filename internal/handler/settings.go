package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taximeter/internal/domain"
	"taximeter/internal/service"
)

// SettingsHandler handles HTTP requests for meter settings.
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// UpdateSettingsRequest is the HTTP request body for saving settings.
type UpdateSettingsRequest struct {
	City       string           `json:"city"`
	CustomRate *RateProfileBody `json:"custom_rate"`
}

// SetPaymentQRRequest is the HTTP request body for uploading the payment QR.
type SetPaymentQRRequest struct {
	Image string `json:"image"`
}

// SettingsResponse is the HTTP response for settings operations.
type SettingsResponse struct {
	MeterID      string           `json:"meter_id"`
	City         string           `json:"city"`
	CustomRate   *RateProfileBody `json:"custom_rate,omitempty"`
	HasPaymentQR bool             `json:"has_payment_qr"`
	UpdatedAt    string           `json:"updated_at,omitempty"`
}

func toSettingsResponse(s *domain.MeterSettings) SettingsResponse {
	response := SettingsResponse{
		MeterID:      s.MeterID,
		City:         string(s.City),
		HasPaymentQR: s.PaymentQR != "",
	}
	if s.CustomRate != nil {
		body := toRateProfileBody("", *s.CustomRate)
		response.CustomRate = &body
	}
	if !s.UpdatedAt.IsZero() {
		response.UpdatedAt = s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return response
}

// Get handles GET /v1/meters/:meter_id/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context(), c.Param("meter_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSettingsResponse(settings))
}

// Update handles PUT /v1/meters/:meter_id/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.City == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "city is required"})
		return
	}

	update := service.UpdateSettingsRequest{City: domain.CityKey(req.City)}
	if req.CustomRate != nil {
		rate := req.CustomRate.toDomain()
		update.CustomRate = &rate
	}

	settings, err := h.settingsService.Update(c.Request.Context(), c.Param("meter_id"), update)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSettingsResponse(settings))
}

// SetPaymentQR handles PUT /v1/meters/:meter_id/settings/payment-qr
func (h *SettingsHandler) SetPaymentQR(c *gin.Context) {
	var req SetPaymentQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	settings, err := h.settingsService.SetPaymentQR(c.Request.Context(), c.Param("meter_id"), req.Image)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSettingsResponse(settings))
}
