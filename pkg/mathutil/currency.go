// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round rounds a value half away from zero to the given number of decimal
// places and returns it as a float64 for presentation.
func Round(val decimal.Decimal, places int32) float64 {
	return val.Round(places).InexactFloat64()
}

// FromPtr converts an optional float into a decimal, reporting whether the
// value was present.
func FromPtr(val *float64) (decimal.Decimal, bool) {
	if val == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*val), true
}

// OnePlus returns 1 + pct, the multiplier for a fractional shock.
func OnePlus(pct float64) decimal.Decimal {
	return decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct))
}

// Percentage returns value / total * 100. The caller guarantees total is non-zero.
func Percentage(value, total decimal.Decimal) decimal.Decimal {
	return value.Div(total).Mul(hundred)
}

// Max returns the larger of two decimals.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Sum adds all values without intermediate rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
