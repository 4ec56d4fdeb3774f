package service

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// leadingNumber matches the numeric prefix of a typed amount, so "12.5元"
// reads as 12.5.
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseFee reads a fee typed on a form from its leading number. Blank,
// unparsable, negative and non-finite input all read as zero.
func ParseFee(raw string) float64 {
	num := leadingNumber.FindString(strings.TrimSpace(raw))
	if num == "" {
		return 0
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return 0
	}
	return sanitizeFee(d.InexactFloat64())
}

// sanitizeFee coerces an accessory fee to a non-negative finite amount.
func sanitizeFee(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// sum adds money amounts without accumulating binary rounding error.
func sum(amounts ...float64) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total
}

// FormatMoney renders an amount with two decimals.
func FormatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatTipQuote renders a tip screen quote with one decimal.
func FormatTipQuote(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1)
}

// FormatDistance renders kilometres with one decimal.
func FormatDistance(km float64) string {
	return decimal.NewFromFloat(km).StringFixed(1)
}

// FormatElapsed renders seconds as MM:SS. Minutes keep counting past 99.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
