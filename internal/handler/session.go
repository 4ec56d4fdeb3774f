package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taximeter/internal/domain"
	"taximeter/internal/service"
)

// SessionHandler handles HTTP requests for meter sessions.
type SessionHandler struct {
	sessions        *service.SessionManager
	settingsService *service.SettingsService
	receiptService  *service.ReceiptService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessions *service.SessionManager,
	settingsService *service.SettingsService,
	receiptService *service.ReceiptService,
) *SessionHandler {
	return &SessionHandler{
		sessions:        sessions,
		settingsService: settingsService,
		receiptService:  receiptService,
	}
}

// CreateSessionRequest is the HTTP request body for opening a session.
type CreateSessionRequest struct {
	MeterID string `json:"meter_id" binding:"required"`
}

// LocationRequest carries either a fix or a positioning error.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Error     string   `json:"error"`
}

// FeeInput accepts a JSON number or string. Anything that does not parse
// as a non-negative amount reads as zero.
type FeeInput float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FeeInput) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	*f = FeeInput(service.ParseFee(raw))
	return nil
}

// ExtrasRequest is the HTTP request body for the extras screen.
type ExtrasRequest struct {
	TollFee  FeeInput `json:"toll_fee"`
	OtherFee FeeInput `json:"other_fee"`
}

// TipRequest is the HTTP request body for picking a tip.
type TipRequest struct {
	Choice string `json:"choice" binding:"required"`
}

// CustomTipRequest is the HTTP request body for a custom tip amount.
type CustomTipRequest struct {
	Amount FeeInput `json:"amount"`
}

// BillResponse is the itemized final bill.
type BillResponse struct {
	MeterFare string `json:"meter_fare"`
	Extras    string `json:"extras"`
	Tip       string `json:"tip"`
	Total     string `json:"total"`
}

// SessionResponse is the HTTP response for session operations.
type SessionResponse struct {
	SessionID  string        `json:"session_id"`
	MeterID    string        `json:"meter_id"`
	Stage      string        `json:"stage"`
	MeterState string        `json:"meter_state"`
	Fare       string        `json:"fare"`
	DistanceKm string        `json:"distance_km"`
	Elapsed    string        `json:"elapsed"`
	GPSStatus  string        `json:"gps_status"`
	RateName   string        `json:"rate_name"`
	TollFee    string        `json:"toll_fee"`
	OtherFee   string        `json:"other_fee"`
	TipFee     string        `json:"tip_fee"`
	TipChoice  string        `json:"tip_choice,omitempty"`
	Bill       *BillResponse `json:"bill,omitempty"`
}

// TipQuoteResponse is one entry of the tip screen.
type TipQuoteResponse struct {
	Choice string `json:"choice"`
	Amount string `json:"amount"`
}

// ReceiptResponse is the printable receipt shown with the final bill.
type ReceiptResponse struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	PaymentQR string `json:"payment_qr,omitempty"`
}

// FinalizeResponse is the HTTP response for the final bill.
type FinalizeResponse struct {
	SessionResponse
	Receipt ReceiptResponse `json:"receipt"`
}

func toBillResponse(b domain.BillBreakdown) *BillResponse {
	return &BillResponse{
		MeterFare: service.FormatMoney(b.MeterFare),
		Extras:    service.FormatMoney(b.Extras),
		Tip:       service.FormatMoney(b.Tip),
		Total:     service.FormatMoney(b.Total),
	}
}

func toSessionResponse(snap service.SessionSnapshot) SessionResponse {
	r := snap.Reading
	response := SessionResponse{
		SessionID:  snap.ID,
		MeterID:    snap.MeterID,
		Stage:      string(r.Stage),
		MeterState: string(r.State),
		Fare:       r.Fare,
		DistanceKm: r.Distance,
		Elapsed:    r.Elapsed,
		GPSStatus:  r.GPSStatus,
		RateName:   r.RateName,
		TollFee:    service.FormatMoney(r.TollFee),
		OtherFee:   service.FormatMoney(r.OtherFee),
		TipFee:     service.FormatMoney(r.TipFee),
		TipChoice:  formatTipChoice(r.TipChoice),
	}
	if snap.Bill != nil {
		response.Bill = toBillResponse(*snap.Bill)
	}
	return response
}

func formatTipChoice(choice domain.TipChoice) string {
	switch choice {
	case domain.TipFifteen:
		return "15"
	case domain.TipTwenty:
		return "20"
	case domain.TipTwentyFive:
		return "25"
	case domain.TipCustom:
		return "custom"
	default:
		return ""
	}
}

func parseTipChoice(raw string) (domain.TipChoice, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "%") {
	case "15":
		return domain.TipFifteen, nil
	case "20":
		return domain.TipTwenty, nil
	case "25":
		return domain.TipTwentyFive, nil
	case "custom":
		return domain.TipCustom, nil
	default:
		return 0, service.ErrInvalidTipChoice
	}
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), req.MeterID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, sess, http.StatusCreated)
}

// Get handles GET /v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, sess, http.StatusOK)
}

// Close handles DELETE /v1/sessions/:id
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.sessions.Close(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Begin handles POST /v1/sessions/:id/begin
func (h *SessionHandler) Begin(c *gin.Context) {
	if _, err := h.sessions.Begin(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	h.respondCurrent(c)
}

// Stop handles POST /v1/sessions/:id/stop
func (h *SessionHandler) Stop(c *gin.Context) {
	h.runAndRespond(c, func(sess *service.Session) error {
		return sess.Stop(c.Request.Context())
	})
}

// PushLocation handles POST /v1/sessions/:id/location
func (h *SessionHandler) PushLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.Error != "" {
		err = sess.PushLocationError(ctx, req.Error)
	} else {
		if !validCoordinates(req.Latitude, req.Longitude) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "latitude and longitude are required and must be in range"})
			return
		}
		err = sess.PushLocation(ctx, domain.LocationSample{
			Latitude:       *req.Latitude,
			Longitude:      *req.Longitude,
			AccuracyMeters: math.Max(req.Accuracy, 0),
		})
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// AdvanceToExtras handles POST /v1/sessions/:id/advance
func (h *SessionHandler) AdvanceToExtras(c *gin.Context) {
	h.runAndRespond(c, func(sess *service.Session) error {
		return sess.AdvanceToExtras(c.Request.Context())
	})
}

// SubmitExtras handles POST /v1/sessions/:id/extras
func (h *SessionHandler) SubmitExtras(c *gin.Context) {
	var req ExtrasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	h.runAndRespond(c, func(sess *service.Session) error {
		return sess.SubmitExtras(c.Request.Context(), float64(req.TollFee), float64(req.OtherFee))
	})
}

// TipQuotes handles GET /v1/sessions/:id/tips
func (h *SessionHandler) TipQuotes(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	quotes, err := sess.TipQuotes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TipQuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		response = append(response, TipQuoteResponse{
			Choice: formatTipChoice(q.Choice),
			Amount: service.FormatTipQuote(q.Amount),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// SelectTip handles POST /v1/sessions/:id/tip
func (h *SessionHandler) SelectTip(c *gin.Context) {
	var req TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	choice, err := parseTipChoice(req.Choice)
	if err != nil {
		respondError(c, err)
		return
	}

	h.runAndRespond(c, func(sess *service.Session) error {
		return sess.SelectTip(c.Request.Context(), choice)
	})
}

// SubmitCustomTip handles POST /v1/sessions/:id/tip/custom
func (h *SessionHandler) SubmitCustomTip(c *gin.Context) {
	var req CustomTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	h.runAndRespond(c, func(sess *service.Session) error {
		return sess.SubmitCustomTip(c.Request.Context(), float64(req.Amount))
	})
}

// Finalize handles POST /v1/sessions/:id/finalize
func (h *SessionHandler) Finalize(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	snap, err := sess.Finalize(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	settings, err := h.settingsService.Get(ctx, sess.MeterID)
	if err != nil {
		respondError(c, err)
		return
	}

	receipt, err := h.receiptService.GenerateReceipt(service.GenerateReceiptRequest{
		Snapshot:  snap,
		PaymentQR: settings.PaymentQR,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, FinalizeResponse{
		SessionResponse: toSessionResponse(snap),
		Receipt: ReceiptResponse{
			ID:        receipt.ID,
			Text:      h.receiptService.FormatReceipt(receipt),
			PaymentQR: receipt.PaymentQR,
		},
	})
}

// Reset handles POST /v1/sessions/:id/reset
func (h *SessionHandler) Reset(c *gin.Context) {
	// On a rate configuration error the session is still back in Idle; the
	// error is reported so the driver can fix the settings.
	if err := h.sessions.Reset(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	h.respondCurrent(c)
}

func (h *SessionHandler) runAndRespond(c *gin.Context, fn func(sess *service.Session) error) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := fn(sess); err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, sess, http.StatusOK)
}

func (h *SessionHandler) respondCurrent(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, sess, http.StatusOK)
}

func (h *SessionHandler) respondSnapshot(c *gin.Context, sess *service.Session, code int) {
	snap, err := sess.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, code, toSessionResponse(snap))
}

func validCoordinates(lat, lon *float64) bool {
	if lat == nil || lon == nil {
		return false
	}
	if math.IsNaN(*lat) || math.IsNaN(*lon) {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lon >= -180 && *lon <= 180
}
