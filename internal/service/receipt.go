package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taximeter/internal/domain"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	now func() time.Time
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService() *ReceiptService {
	return &ReceiptService{now: time.Now}
}

// GenerateReceiptRequest contains the parameters for generating a receipt.
type GenerateReceiptRequest struct {
	Snapshot  SessionSnapshot
	PaymentQR string
}

// GenerateReceipt builds the receipt for a session on its final bill.
// Receipts are not persisted.
func (s *ReceiptService) GenerateReceipt(req GenerateReceiptRequest) (*domain.Receipt, error) {
	if req.Snapshot.Bill == nil {
		return nil, ErrWrongStage
	}

	return &domain.Receipt{
		ID:             uuid.New().String(),
		SessionID:      req.Snapshot.ID,
		MeterID:        req.Snapshot.MeterID,
		RateName:       req.Snapshot.Rate.Name,
		DistanceKm:     req.Snapshot.Trip.DistanceKm,
		ElapsedSeconds: req.Snapshot.Trip.ElapsedSeconds,
		Bill:           *req.Snapshot.Bill,
		PaymentQR:      req.PaymentQR,
		StartedAt:      req.Snapshot.Trip.StartedAt,
		CreatedAt:      s.now(),
	}, nil
}

// FormatReceipt formats the receipt as plain text for printing.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder

	line := strings.Repeat("-", 37)
	rule := strings.Repeat("=", 37)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "            TAXI RECEIPT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Receipt ID: %s\n", receipt.ID)
	fmt.Fprintf(&b, "Meter:      %s\n", receipt.MeterID)
	fmt.Fprintf(&b, "Date:       %s\n", receipt.CreatedAt.Format("Jan 02, 2006 3:04 PM"))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "TRIP")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Tariff:     %s\n", receipt.RateName)
	fmt.Fprintf(&b, "Distance:   %s km\n", FormatDistance(receipt.DistanceKm))
	fmt.Fprintf(&b, "Time:       %s\n", FormatElapsed(receipt.ElapsedSeconds))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "FARE BREAKDOWN")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Meter:      %s\n", FormatMoney(receipt.Bill.MeterFare))
	fmt.Fprintf(&b, "Extras:     %s\n", FormatMoney(receipt.Bill.Extras))
	fmt.Fprintf(&b, "Tip:        %s\n", FormatMoney(receipt.Bill.Tip))
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "TOTAL:      %s\n", FormatMoney(receipt.Bill.Total))
	fmt.Fprintln(&b, rule)

	return b.String()
}
