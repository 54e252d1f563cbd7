package pdn

import (
	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/shopspring/decimal"
)

// ClassifyRisk maps a PDN percentage onto a risk band. LOW is strictly below
// the low threshold, HIGH strictly above the high threshold, and both
// thresholds themselves fall in MID.
func ClassifyRisk(pct decimal.Decimal, snap assumptions.Snapshot) RiskBand {
	switch {
	case pct.LessThan(decimal.NewFromFloat(snap.RiskLowPercent)):
		return RiskLow
	case pct.GreaterThan(decimal.NewFromFloat(snap.RiskHighPercent)):
		return RiskHigh
	default:
		return RiskMid
	}
}
