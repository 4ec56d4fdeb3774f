package service

import (
	"github.com/shopspring/decimal"

	"taximeter/internal/domain"
)

// Billing walks one trip through meter, extras, tip and final bill. Like
// FareEngine it is driven from a single goroutine.
type Billing struct {
	catalog *RateCatalog
	engine  *FareEngine
	stage   domain.BillingStage
	tip     domain.TipChoice
}

// NewBilling creates an idle billing session.
func NewBilling(catalog *RateCatalog) *Billing {
	return &Billing{
		catalog: catalog,
		engine:  NewFareEngine(),
		stage:   domain.StageIdle,
	}
}

// Engine exposes the fare engine the session feeds ticks and fixes into.
func (b *Billing) Engine() *FareEngine {
	return b.engine
}

// Stage returns the active billing stage.
func (b *Billing) Stage() domain.BillingStage {
	return b.stage
}

// Begin resolves the rate and starts the meter.
func (b *Billing) Begin(sel domain.RateSelector) (domain.RateProfile, error) {
	if b.stage != domain.StageIdle {
		return domain.RateProfile{}, ErrWrongStage
	}

	rate, err := b.catalog.Resolve(sel)
	if err != nil {
		return domain.RateProfile{}, err
	}

	if err := b.engine.Start(rate); err != nil {
		return domain.RateProfile{}, err
	}
	b.stage = domain.StageMetering

	return rate, nil
}

// Stop ends metering. The bill stays on the meter screen until
// AdvanceToExtras.
func (b *Billing) Stop() error {
	if b.stage != domain.StageMetering {
		return ErrWrongStage
	}
	return b.engine.Stop()
}

// AdvanceToExtras moves from the meter screen to toll/other fee entry.
func (b *Billing) AdvanceToExtras() error {
	if b.stage != domain.StageMetering {
		return ErrWrongStage
	}
	if b.engine.State() != domain.MeterStopped {
		return ErrTripNotStopped
	}

	b.stage = domain.StageExtrasEntry
	return nil
}

// SubmitExtras records the accessory fees and opens tip selection with the
// 20% tip preselected.
func (b *Billing) SubmitExtras(tollFee, otherFee float64) error {
	if b.stage != domain.StageExtrasEntry {
		return ErrWrongStage
	}

	b.engine.setExtras(sanitizeFee(tollFee), sanitizeFee(otherFee))
	b.stage = domain.StageTipSelection

	return b.SelectTip(domain.TipTwenty)
}

// SelectTip applies a fixed tip percentage, or clears the tip and waits for
// SubmitCustomTip when choice is TipCustom.
func (b *Billing) SelectTip(choice domain.TipChoice) error {
	if b.stage != domain.StageTipSelection {
		return ErrWrongStage
	}

	if choice == domain.TipCustom {
		b.tip = choice
		b.engine.setTip(0)
		return nil
	}

	if !validTip(choice) {
		return ErrInvalidTipChoice
	}

	b.tip = choice
	b.engine.setTip(b.tipFor(choice))
	return nil
}

// SubmitCustomTip sets the custom tip amount. It is also accepted on the
// final bill so the amount can be corrected before paying.
func (b *Billing) SubmitCustomTip(amount float64) error {
	if b.stage != domain.StageTipSelection && b.stage != domain.StageFinalBill {
		return ErrWrongStage
	}
	if b.tip != domain.TipCustom {
		return ErrCustomTipNotSelected
	}

	b.engine.setTip(sanitizeFee(amount))
	return nil
}

// Finalize moves to the final bill and returns the breakdown. Calling it
// again on the final bill recomputes the breakdown.
func (b *Billing) Finalize() (domain.BillBreakdown, error) {
	if b.stage != domain.StageTipSelection && b.stage != domain.StageFinalBill {
		return domain.BillBreakdown{}, ErrWrongStage
	}

	b.stage = domain.StageFinalBill
	return b.Bill(), nil
}

// Bill computes the breakdown from the current trip state.
func (b *Billing) Bill() domain.BillBreakdown {
	trip := b.engine.Trip()
	total := sum(trip.Fare, trip.TollFee, trip.OtherFee, trip.TipFee)

	return domain.BillBreakdown{
		MeterFare: trip.Fare,
		Extras:    sum(trip.TollFee, trip.OtherFee).InexactFloat64(),
		Tip:       trip.TipFee,
		Total:     total.InexactFloat64(),
	}
}

// TipQuotes returns what each fixed tip choice would add to the bill.
func (b *Billing) TipQuotes() []domain.TipQuote {
	quotes := make([]domain.TipQuote, 0, len(domain.TipChoices))
	for _, choice := range domain.TipChoices {
		quotes = append(quotes, domain.TipQuote{Choice: choice, Amount: b.tipFor(choice)})
	}
	return quotes
}

// Reset returns to Idle from any stage, discarding the trip. The idle fare
// is seeded from sel; if sel cannot be resolved the state is still reset
// and the resolution error is returned.
func (b *Billing) Reset(sel domain.RateSelector) error {
	b.stage = domain.StageIdle
	b.tip = 0

	rate, err := b.catalog.Resolve(sel)
	if err != nil {
		b.engine.reset(domain.RateProfile{})
		return err
	}

	b.engine.reset(rate)
	return nil
}

// Reading returns the values the display renders.
func (b *Billing) Reading() domain.MeterReading {
	trip := b.engine.Trip()
	return domain.MeterReading{
		Stage:     b.stage,
		State:     b.engine.State(),
		Fare:      FormatMoney(trip.Fare),
		Distance:  FormatDistance(trip.DistanceKm),
		Elapsed:   FormatElapsed(trip.ElapsedSeconds),
		GPSStatus: b.engine.GPSStatus(),
		RateName:  b.engine.Rate().Name,
		TipChoice: b.tip,
		TollFee:   trip.TollFee,
		OtherFee:  trip.OtherFee,
		TipFee:    trip.TipFee,
	}
}

// tipFor computes percent of fare plus extras.
func (b *Billing) tipFor(choice domain.TipChoice) float64 {
	trip := b.engine.Trip()
	subtotal := sum(trip.Fare, trip.TollFee, trip.OtherFee)
	return subtotal.Mul(decimal.NewFromFloat(float64(choice))).InexactFloat64()
}

func validTip(choice domain.TipChoice) bool {
	for _, c := range domain.TipChoices {
		if c == choice {
			return true
		}
	}
	return false
}
