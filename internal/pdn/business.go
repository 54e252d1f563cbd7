package pdn

import (
	"fmt"
	"time"

	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/iwvelando/pdn-calculator/pkg/mathutil"
	"github.com/shopspring/decimal"
)

var businessAdvice = map[RiskBand]string{
	RiskLow:  "Debt service is comfortably covered by operating cash flow.",
	RiskMid:  "Debt service takes a significant share of cash flow. Monitor liquidity closely.",
	RiskHigh: "Debt service exceeds a safe share of cash flow. Consider restructuring the debt.",
}

// BusinessAdvice returns the fixed advice text for a risk band.
func BusinessAdvice(band RiskBand) string {
	return businessAdvice[band]
}

// CalculateBusiness computes the debt coverage ratio and the business PDN.
// now is recorded as the calculation time.
func CalculateBusiness(in BusinessInput, snap assumptions.Snapshot, now time.Time) (*BusinessResult, error) {
	taxes, _ := mathutil.FromPtr(in.Taxes)

	debtService := decimal.NewFromFloat(in.Interest).Add(decimal.NewFromFloat(in.Principal))
	cashFlow := decimal.NewFromFloat(in.EBITDA).Sub(taxes)

	if !debtService.IsPositive() {
		return nil, fmt.Errorf("%w: monthly debt service must be positive, got %s", ErrInvalidBusinessInput, debtService)
	}
	if !cashFlow.IsPositive() {
		return nil, fmt.Errorf("%w: cash flow proxy must be positive, got %s", ErrInvalidBusinessInput, cashFlow)
	}

	dcr := cashFlow.Div(debtService)
	pct := mathutil.Percentage(debtService, cashFlow).Round(snap.PercentPrecision)
	band := ClassifyRisk(pct, snap)

	return &BusinessResult{
		MonthlyDebtService: mathutil.Round(debtService, snap.MoneyPrecision),
		CashFlowProxy:      mathutil.Round(cashFlow, snap.MoneyPrecision),
		DCR:                mathutil.Round(dcr, snap.PercentPrecision),
		PDNBusinessPercent: pct.InexactFloat64(),
		RiskBand:           band,
		Advice:             BusinessAdvice(band),
		CalculatedAt:       now,
	}, nil
}
