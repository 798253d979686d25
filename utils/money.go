package utils

import (
	"github.com/shopspring/decimal"
)

// Presentation/persistence scales. Intermediate arithmetic is never rounded to these.
const (
	ScaleCurrency   int32 = 2
	ScalePercentage int32 = 1
	ScaleQuantity   int32 = 3

	// DivisionPrecision is the number of fractional digits kept by Divide.
	DivisionPrecision int32 = 16
)

var hundred = decimal.NewFromInt(100)

// SmallestQuantity is one unit at ScaleQuantity.
var SmallestQuantity = decimal.New(1, -ScaleQuantity)

// RoundHalfUp rounds half away from zero at the given scale.
// decimal.Round already rounds half away from zero; this names the policy.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return RoundHalfUp(d, ScaleCurrency)
}

func RoundPercentage(d decimal.Decimal) decimal.Decimal {
	return RoundHalfUp(d, ScalePercentage)
}

func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return RoundHalfUp(d, ScaleQuantity)
}

// FitsScale reports whether d has no significant digits beyond places.
// "1.500" fits scale 2; "1.005" does not.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// Divide returns a / b at DivisionPrecision. b must not be zero.
func Divide(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, DivisionPrecision)
}

// PercentageOf returns part / total * 100, unrounded. Zero when total is zero.
func PercentageOf(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return Divide(part.Mul(hundred), total)
}

// FormatCurrency renders d at currency scale, e.g. "3.44".
func FormatCurrency(d decimal.Decimal) string {
	return d.StringFixed(ScaleCurrency)
}

func FormatPercentage(d decimal.Decimal) string {
	return d.StringFixed(ScalePercentage)
}

func FormatQuantity(d decimal.Decimal) string {
	return d.StringFixed(ScaleQuantity)
}

// SumDecimals adds values without rounding.
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
