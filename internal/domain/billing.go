package domain

// BillingStage is the screen the trip is currently on.
type BillingStage string

const (
	StageIdle         BillingStage = "IDLE"
	StageMetering     BillingStage = "METERING"
	StageExtrasEntry  BillingStage = "EXTRAS_ENTRY"
	StageTipSelection BillingStage = "TIP_SELECTION"
	StageFinalBill    BillingStage = "FINAL_BILL"
)

// TipChoice is a fixed tip percentage or TipCustom.
type TipChoice float64

const (
	TipFifteen    TipChoice = 0.15
	TipTwenty     TipChoice = 0.20
	TipTwentyFive TipChoice = 0.25

	// TipCustom defers the tip until a custom amount is submitted.
	TipCustom TipChoice = -1
)

// TipChoices lists the fixed percentages offered on the tip screen.
var TipChoices = []TipChoice{TipFifteen, TipTwenty, TipTwentyFive}

// BillBreakdown is the itemized final bill.
type BillBreakdown struct {
	MeterFare float64
	Extras    float64 // toll + other
	Tip       float64
	Total     float64
}

// TipQuote is the amount a fixed tip choice would add.
type TipQuote struct {
	Choice TipChoice
	Amount float64
}

// MeterReading is what the display shows while the meter is up.
type MeterReading struct {
	Stage     BillingStage
	State     MeterState
	Fare      string // 2 decimals
	Distance  string // 1 decimal, km
	Elapsed   string // MM:SS
	GPSStatus string
	RateName  string
	TipChoice TipChoice
	TollFee   float64
	OtherFee  float64
	TipFee    float64
}
