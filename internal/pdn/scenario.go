package pdn

import (
	"fmt"

	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/iwvelando/pdn-calculator/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// ApplyScenario adjusts monthly income and the normalized obligations for
// the scenario. The entries slice is not modified; a new slice in the same
// order is returned. Values stay at full precision.
func ApplyScenario(income decimal.Decimal, entries []Entry, sc Scenario, snap assumptions.Snapshot) (decimal.Decimal, []Entry, error) {
	adjusted := make([]Entry, len(entries))
	copy(adjusted, entries)

	if sc.Mode != ModeTarget && len(sc.Refinance) > 0 {
		return decimal.Zero, nil, fmt.Errorf("%w: mode %q", ErrRefinanceNotAllowed, sc.Mode)
	}

	switch sc.Mode {
	case ModeBase, "":
		return income, adjusted, nil

	case ModeStress:
		shockPayments(adjusted, sc.PaymentShockPct)
		return income.Mul(mathutil.OnePlus(sc.IncomeShockPct)), adjusted, nil

	case ModeTarget:
		shockPayments(adjusted, sc.PaymentShockPct)
		if err := refinance(adjusted, sc.Refinance, snap.StrictRefinance); err != nil {
			return decimal.Zero, nil, err
		}
		return income.Mul(mathutil.OnePlus(sc.IncomeShockPct)), adjusted, nil

	default:
		return decimal.Zero, nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, sc.Mode)
	}
}

func shockPayments(entries []Entry, pct float64) {
	if pct == 0 {
		return
	}
	factor := mathutil.OnePlus(pct)
	for i := range entries {
		entries[i].Monthly = entries[i].Monthly.Mul(factor)
	}
}

// refinance substitutes the payment of every entry matched by a refinance
// entry. An entry that omits monthly_payment keeps the original payment.
func refinance(entries []Entry, refs []Obligation, strict bool) error {
	for i, ref := range refs {
		var replacement decimal.Decimal
		payment, hasPayment := mathutil.FromPtr(ref.MonthlyPayment)
		if hasPayment {
			if payment.IsNegative() {
				return &ObligationError{Index: i, Name: ref.Key(), Type: ref.Type,
					Err: fmt.Errorf("%w: refinance monthly_payment %s", ErrNegativePayment, payment)}
			}
			monthly, err := ref.Period.ToMonthly(payment)
			if err != nil {
				return &ObligationError{Index: i, Name: ref.Key(), Type: ref.Type, Err: err}
			}
			replacement = monthly
		}

		matched := false
		for j := range entries {
			if !matchesRefinance(entries[j], ref) {
				continue
			}
			matched = true
			if hasPayment {
				entries[j].Monthly = replacement
			}
		}

		if !matched && strict {
			return &ObligationError{Index: i, Name: ref.Key(), Type: ref.Type, Err: ErrRefinanceMismatch}
		}
	}
	return nil
}

// matchesRefinance compares ids when both sides carry one and falls back to
// the exact name otherwise.
func matchesRefinance(e Entry, ref Obligation) bool {
	if e.ID != "" && ref.ID != "" {
		return e.ID == ref.ID
	}
	key := ref.Key()
	return key != "" && e.Key == key
}
