package pdn

import (
	"fmt"

	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/iwvelando/pdn-calculator/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// periodFactor converts one payment of the period into its monthly
// equivalent as num/den. Weeks and days per month are the usual 52.14/12 and
// 365.25/12 approximations.
type periodFactor struct {
	num int64
	den int64
}

var periodFactors = map[Period]periodFactor{
	PeriodMonthly:   {1, 1},
	PeriodWeekly:    {4345, 1000},
	PeriodQuarterly: {1, 3},
	PeriodYearly:    {1, 12},
	PeriodDaily:     {3044, 100},
}

// ToMonthly converts amount paid once per period into a monthly amount.
func (p Period) ToMonthly(amount decimal.Decimal) (decimal.Decimal, error) {
	if p == "" {
		p = PeriodMonthly
	}
	f, ok := periodFactors[p]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnsupportedPeriod, p)
	}
	if f.den == 1 {
		return amount.Mul(decimal.NewFromInt(f.num)), nil
	}
	return amount.Mul(decimal.NewFromInt(f.num)).Div(decimal.NewFromInt(f.den)), nil
}

// NormalizeObligation resolves one obligation into a non-negative monthly
// payment. An explicit positive payment wins; otherwise the balance is
// priced with the obligation's rate (for credit cards, the larger of that
// rate and the configured default). The returned label is the display name,
// which for rate-priced credit cards carries the effective rate.
func NormalizeObligation(o Obligation, snap assumptions.Snapshot) (decimal.Decimal, string, error) {
	label := o.Key()

	if payment, ok := mathutil.FromPtr(o.MonthlyPayment); ok {
		if payment.IsNegative() {
			return decimal.Zero, label, fmt.Errorf("%w: monthly_payment %s", ErrNegativePayment, payment)
		}
		if payment.IsPositive() {
			monthly, err := o.Period.ToMonthly(payment)
			return monthly, label, err
		}
	}

	balance, hasBalance := mathutil.FromPtr(o.Balance)
	if !hasBalance {
		return decimal.Zero, label, ErrMissingPaymentInfo
	}

	rate, hasRate := mathutil.FromPtr(o.MinPaymentRate)
	if o.Type == TypeCreditCard {
		defaultRate := decimal.NewFromFloat(snap.CreditCardDefaultMinRate)
		if hasRate {
			rate = mathutil.Max(rate, defaultRate)
		} else {
			rate = defaultRate
		}
		hasRate = true
		label = fmt.Sprintf("%s (min %s%%)", label, rate.Shift(2).String())
	}
	if !hasRate {
		return decimal.Zero, label, fmt.Errorf("%w: balance given without min_payment_rate", ErrMissingPaymentInfo)
	}

	monthly := balance.Mul(rate)
	if monthly.IsNegative() {
		return decimal.Zero, label, fmt.Errorf("%w: balance %s at rate %s", ErrNegativePayment, balance, rate)
	}
	return monthly, label, nil
}

// Normalize resolves every obligation in input order. The first failure is
// returned as an *ObligationError; no partial result is produced.
func Normalize(obligations []Obligation, snap assumptions.Snapshot) ([]Entry, error) {
	entries := make([]Entry, 0, len(obligations))
	for i, o := range obligations {
		monthly, label, err := NormalizeObligation(o, snap)
		if err != nil {
			return nil, &ObligationError{Index: i, Name: o.Key(), Type: o.Type, Err: err}
		}
		entries = append(entries, Entry{
			ID:      o.ID,
			Key:     o.Key(),
			Label:   label,
			Type:    o.Type,
			Monthly: monthly,
		})
	}
	return entries, nil
}
