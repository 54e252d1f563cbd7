package pdn

import (
	"fmt"
	"time"

	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/iwvelando/pdn-calculator/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Advice texts for individual calculations.
const (
	AdviceAcceptable = "Acceptable debt load."
	AdviceHigh       = "High debt load."
)

// Calculate runs one individual PDN calculation: normalize obligations,
// apply the scenario, compute the ratio and classify it. Rounding happens
// once, on the final figures. now is recorded as the calculation time so the
// result is fully determined by the arguments.
func Calculate(in Input, snap assumptions.Snapshot, now time.Time) (*CalculationResult, error) {
	entries, err := Normalize(in.Obligations, snap)
	if err != nil {
		return nil, err
	}

	income, adjusted, err := ApplyScenario(decimal.NewFromFloat(in.Income.Amount), entries, in.Scenario, snap)
	if err != nil {
		return nil, err
	}
	if !income.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrZeroOrNegativeIncome, income)
	}

	payments := make([]decimal.Decimal, 0, len(adjusted))
	breakdown := make([]Line, 0, len(adjusted))
	for _, e := range adjusted {
		payments = append(payments, e.Monthly)
		breakdown = append(breakdown, Line{
			ID:      e.ID,
			Name:    e.Label,
			Type:    e.Type,
			Monthly: mathutil.Round(e.Monthly, snap.MoneyPrecision),
		})
	}

	total := mathutil.Sum(payments...)
	pct := mathutil.Percentage(total, income).Round(snap.PercentPrecision)

	mode := in.Scenario.Mode
	if mode == "" {
		mode = ModeBase
	}

	return &CalculationResult{
		MonthlyIncomeUsed:       mathutil.Round(income, snap.MoneyPrecision),
		MonthlyObligationsTotal: mathutil.Round(total, snap.MoneyPrecision),
		PDNPercent:              pct.InexactFloat64(),
		RiskBand:                ClassifyRisk(pct, snap),
		Breakdown:               breakdown,
		ScenarioApplied:         mode,
		Advice:                  advice(pct, snap),
		CalculatedAt:            now,
	}, nil
}

// advice is two-tier: anything up to the HIGH threshold is acceptable.
func advice(pct decimal.Decimal, snap assumptions.Snapshot) string {
	if pct.GreaterThan(decimal.NewFromFloat(snap.RiskHighPercent)) {
		return AdviceHigh
	}
	return AdviceAcceptable
}
