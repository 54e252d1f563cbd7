package mathutil

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		places   int32
		expected float64
	}{
		{"Round up at midpoint", "1.235", 2, 1.24},
		{"Round down below midpoint", "1.234", 2, 1.23},
		{"No rounding needed", "1.23", 2, 1.23},
		{"Large number", "12345.678", 2, 12345.68},
		{"Negative number round up", "-1.235", 2, -1.24},
		{"Zero", "0", 2, 0.0},
		{"Very small positive", "0.001", 2, 0.00},
		{"Zero places", "42.5", 0, 43},
		{"Four places", "26.315789", 4, 26.3158},
		{"Repeating percent", "26.3157894736842105", 2, 26.32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(decimal.RequireFromString(tt.input), tt.places)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("Round(%v, %d) = %v, expected %v", tt.input, tt.places, result, tt.expected)
			}
		})
	}
}

func TestFromPtr(t *testing.T) {
	if _, ok := FromPtr(nil); ok {
		t.Error("FromPtr(nil) reported a value")
	}
	v := 12.5
	d, ok := FromPtr(&v)
	if !ok || !d.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("FromPtr(&12.5) = %v, %v", d, ok)
	}
}

func TestOnePlus(t *testing.T) {
	tests := []struct {
		pct      float64
		expected string
	}{
		{0, "1"},
		{0.1, "1.1"},
		{-0.2, "0.8"},
		{1.0, "2"},
	}
	for _, tt := range tests {
		if got := OnePlus(tt.pct); !got.Equal(decimal.RequireFromString(tt.expected)) {
			t.Errorf("OnePlus(%v) = %v, expected %v", tt.pct, got, tt.expected)
		}
	}
}

func TestPercentage(t *testing.T) {
	got := Percentage(decimal.NewFromInt(51000), decimal.NewFromInt(120000))
	if !got.Equal(decimal.RequireFromString("42.5")) {
		t.Errorf("Percentage(51000, 120000) = %v, expected 42.5", got)
	}
}

func TestMaxAndSum(t *testing.T) {
	a := decimal.RequireFromString("0.03")
	b := decimal.RequireFromString("0.05")
	if !Max(a, b).Equal(b) || !Max(b, a).Equal(b) {
		t.Errorf("Max(%v, %v) did not return %v", a, b, b)
	}

	total := Sum(decimal.NewFromInt(25000), decimal.NewFromInt(12000), decimal.NewFromInt(4000), decimal.NewFromInt(10000))
	if !total.Equal(decimal.NewFromInt(51000)) {
		t.Errorf("Sum = %v, expected 51000", total)
	}
	if !Sum().IsZero() {
		t.Error("Sum() of nothing should be zero")
	}
}
