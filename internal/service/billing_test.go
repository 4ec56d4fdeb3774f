package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taximeter/internal/domain"
)

func newTestBilling(t *testing.T) *Billing {
	t.Helper()
	catalog, err := NewRateCatalog(nil)
	require.NoError(t, err)
	return NewBilling(catalog)
}

// toTipSelection drives b to the tip screen after a trip of km kilometres.
func toTipSelection(t *testing.T, b *Billing, km float64, toll, other float64) {
	t.Helper()
	_, err := b.Begin(domain.BuiltinRate{City: domain.CityShanghai})
	require.NoError(t, err)

	e := b.Engine()
	e.OnLocation(fix(31, 121))
	if km > 0 {
		e.OnLocation(fix(31+km*degPerKm, 121))
	}

	require.NoError(t, b.Stop())
	require.NoError(t, b.AdvanceToExtras())
	require.NoError(t, b.SubmitExtras(toll, other))
}

func TestBilling_Scenario(t *testing.T) {
	b := newTestBilling(t)
	assert.Equal(t, domain.StageIdle, b.Stage())

	toTipSelection(t, b, 0, 3, 2)
	assert.Equal(t, domain.StageTipSelection, b.Stage())

	// 20% of 16 + 3 + 2 is preselected.
	reading := b.Reading()
	assert.Equal(t, domain.TipTwenty, reading.TipChoice)
	assert.InDelta(t, 4.2, reading.TipFee, 1e-9)

	bill, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, domain.StageFinalBill, b.Stage())
	assert.InDelta(t, 16.0, bill.MeterFare, 1e-9)
	assert.InDelta(t, 5.0, bill.Extras, 1e-9)
	assert.InDelta(t, 4.2, bill.Tip, 1e-9)
	assert.InDelta(t, 25.2, bill.Total, 1e-9)
}

func TestBilling_TotalIsSumOfParts(t *testing.T) {
	b := newTestBilling(t)
	toTipSelection(t, b, 7.3, 12.5, 0.35)
	require.NoError(t, b.SelectTip(domain.TipFifteen))

	bill, err := b.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, bill.MeterFare+bill.Extras+bill.Tip, bill.Total, 1e-9)
	assert.InDelta(t, 0.15*(bill.MeterFare+bill.Extras), bill.Tip, 1e-9)
}

func TestBilling_StageGuards(t *testing.T) {
	b := newTestBilling(t)

	assert.ErrorIs(t, b.Stop(), ErrWrongStage)
	assert.ErrorIs(t, b.AdvanceToExtras(), ErrWrongStage)
	assert.ErrorIs(t, b.SubmitExtras(1, 1), ErrWrongStage)
	assert.ErrorIs(t, b.SelectTip(domain.TipFifteen), ErrWrongStage)
	assert.ErrorIs(t, b.SubmitCustomTip(1), ErrWrongStage)
	_, err := b.Finalize()
	assert.ErrorIs(t, err, ErrWrongStage)

	_, err = b.Begin(domain.BuiltinRate{City: domain.CityShanghai})
	require.NoError(t, err)

	assert.ErrorIs(t, b.AdvanceToExtras(), ErrTripNotStopped)
	_, err = b.Begin(domain.BuiltinRate{City: domain.CityShanghai})
	assert.ErrorIs(t, err, ErrWrongStage)

	require.NoError(t, b.Stop())
	assert.ErrorIs(t, b.Stop(), ErrMeterNotRunning)
	require.NoError(t, b.AdvanceToExtras())
	assert.ErrorIs(t, b.AdvanceToExtras(), ErrWrongStage)
}

func TestBilling_ExtrasAreSanitized(t *testing.T) {
	b := newTestBilling(t)
	toTipSelection(t, b, 0, -5, 2.5)

	reading := b.Reading()
	assert.Zero(t, reading.TollFee)
	assert.Equal(t, 2.5, reading.OtherFee)
}

func TestBilling_InvalidTipChoice(t *testing.T) {
	b := newTestBilling(t)
	toTipSelection(t, b, 0, 0, 0)

	assert.ErrorIs(t, b.SelectTip(domain.TipChoice(0.5)), ErrInvalidTipChoice)
	assert.Equal(t, domain.TipTwenty, b.Reading().TipChoice)
}

func TestBilling_CustomTip(t *testing.T) {
	b := newTestBilling(t)
	toTipSelection(t, b, 0, 0, 0)

	assert.ErrorIs(t, b.SubmitCustomTip(5), ErrCustomTipNotSelected)

	require.NoError(t, b.SelectTip(domain.TipCustom))
	assert.Zero(t, b.Reading().TipFee)

	require.NoError(t, b.SubmitCustomTip(-2))
	assert.Zero(t, b.Reading().TipFee)

	require.NoError(t, b.SubmitCustomTip(3.5))
	bill, err := b.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, 19.5, bill.Total, 1e-9)

	// The custom amount can still be corrected on the final bill.
	require.NoError(t, b.SubmitCustomTip(4))
	bill, err = b.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, 20.0, bill.Total, 1e-9)
	assert.Equal(t, domain.StageFinalBill, b.Stage())
}

func TestBilling_TipQuotes(t *testing.T) {
	b := newTestBilling(t)
	toTipSelection(t, b, 0, 4, 0)

	quotes := b.TipQuotes()
	require.Len(t, quotes, 3)
	assert.Equal(t, domain.TipFifteen, quotes[0].Choice)
	assert.InDelta(t, 3.0, quotes[0].Amount, 1e-9)
	assert.InDelta(t, 4.0, quotes[1].Amount, 1e-9)
	assert.InDelta(t, 5.0, quotes[2].Amount, 1e-9)
}

func TestBilling_ResetFromEveryStage(t *testing.T) {
	nanjing := domain.BuiltinRate{City: domain.CityNanjing}

	drive := map[domain.BillingStage]func(t *testing.T, b *Billing){
		domain.StageIdle: func(t *testing.T, b *Billing) {},
		domain.StageMetering: func(t *testing.T, b *Billing) {
			_, err := b.Begin(domain.BuiltinRate{City: domain.CityShanghai})
			require.NoError(t, err)
			b.Engine().Tick()
		},
		domain.StageExtrasEntry: func(t *testing.T, b *Billing) {
			_, err := b.Begin(domain.BuiltinRate{City: domain.CityShanghai})
			require.NoError(t, err)
			require.NoError(t, b.Stop())
			require.NoError(t, b.AdvanceToExtras())
		},
		domain.StageTipSelection: func(t *testing.T, b *Billing) {
			toTipSelection(t, b, 5, 1, 1)
		},
		domain.StageFinalBill: func(t *testing.T, b *Billing) {
			toTipSelection(t, b, 5, 1, 1)
			_, err := b.Finalize()
			require.NoError(t, err)
		},
	}

	for stage, setup := range drive {
		t.Run(string(stage), func(t *testing.T) {
			b := newTestBilling(t)
			setup(t, b)
			assert.Equal(t, stage, b.Stage())

			require.NoError(t, b.Reset(nanjing))
			first := b.Reading()
			require.NoError(t, b.Reset(nanjing))

			assert.Equal(t, first, b.Reading())
			assert.Equal(t, domain.StageIdle, first.Stage)
			assert.Equal(t, domain.MeterNotStarted, first.State)
			assert.Equal(t, "11.00", first.Fare)
			assert.Equal(t, "0.0", first.Distance)
			assert.Equal(t, "00:00", first.Elapsed)
			assert.Zero(t, first.TollFee)
			assert.Zero(t, first.OtherFee)
			assert.Zero(t, first.TipFee)
			assert.Zero(t, first.TipChoice)
		})
	}
}
