package pdn

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func compositeInput(mode Mode) Input {
	return Input{
		Income: Income{Amount: 120000, Currency: "RUB", Type: IncomeNet, Source: "salary"},
		Obligations: []Obligation{
			{Type: TypeLoan, MonthlyPayment: ptr(25000), Name: "Mortgage"},
			{Type: TypeLoan, MonthlyPayment: ptr(12000), Name: "Auto loan"},
			{Type: TypeCreditCard, Balance: ptr(80000), MinPaymentRate: ptr(0.05), Name: "Visa"},
			{Type: TypeAlimony, MonthlyPayment: ptr(10000), Name: "Alimony"},
		},
		Scenario: Scenario{Mode: mode},
	}
}

func TestCalculateCompositeBase(t *testing.T) {
	res, err := Calculate(compositeInput(ModeBase), assumptions.Default(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 120000.0, res.MonthlyIncomeUsed)
	assert.Equal(t, 51000.0, res.MonthlyObligationsTotal)
	assert.Equal(t, 42.5, res.PDNPercent)
	assert.Equal(t, RiskLow, res.RiskBand)
	assert.Equal(t, ModeBase, res.ScenarioApplied)
	assert.Equal(t, AdviceAcceptable, res.Advice)
	assert.Equal(t, fixedNow, res.CalculatedAt)

	require.Len(t, res.Breakdown, 4)
	assert.Equal(t, []Line{
		{Name: "Mortgage", Type: TypeLoan, Monthly: 25000},
		{Name: "Auto loan", Type: TypeLoan, Monthly: 12000},
		{Name: "Visa (min 5%)", Type: TypeCreditCard, Monthly: 4000},
		{Name: "Alimony", Type: TypeAlimony, Monthly: 10000},
	}, res.Breakdown)
}

func TestCalculateFormulaWithoutShocks(t *testing.T) {
	tests := []struct {
		name     string
		income   float64
		payments []float64
		expected float64
	}{
		{"no obligations", 50000, nil, 0},
		{"single obligation", 120000, []float64{47000}, 39.17},
		{"exact half", 100000, []float64{20000, 30000}, 50},
		{"above income", 10000, []float64{15000}, 150},
		{"repeating fraction", 30000, []float64{10000}, 33.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Income: Income{Amount: tt.income}, Scenario: Scenario{Mode: ModeBase}}
			for _, p := range tt.payments {
				in.Obligations = append(in.Obligations, Obligation{Type: TypeLoan, MonthlyPayment: ptr(p)})
			}
			res, err := Calculate(in, assumptions.Default(), fixedNow)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.PDNPercent)
			assert.GreaterOrEqual(t, res.PDNPercent, 0.0)
		})
	}
}

func TestCalculateDeterministic(t *testing.T) {
	in := compositeInput(ModeStress)
	in.Scenario.IncomeShockPct = -0.15
	in.Scenario.PaymentShockPct = 0.07
	snap := assumptions.Default()

	first, err := Calculate(in, snap, fixedNow)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := Calculate(in, snap, fixedNow)
			assert.NoError(t, err)
			assert.Equal(t, first, again)
		}()
	}
	wg.Wait()
}

func TestCalculateStress(t *testing.T) {
	in := compositeInput(ModeStress)
	in.Scenario.IncomeShockPct = -0.2
	in.Scenario.PaymentShockPct = 0.1

	res, err := Calculate(in, assumptions.Default(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 96000.0, res.MonthlyIncomeUsed)
	assert.Equal(t, 56100.0, res.MonthlyObligationsTotal)
	assert.Equal(t, 58.44, res.PDNPercent)
	assert.Equal(t, RiskMid, res.RiskBand)
	assert.Equal(t, AdviceAcceptable, res.Advice)
	assert.Equal(t, ModeStress, res.ScenarioApplied)
	assert.Equal(t, 27500.0, res.Breakdown[0].Monthly)
}

func TestCalculateTargetRefinance(t *testing.T) {
	in := compositeInput(ModeTarget)
	in.Scenario.Refinance = []Obligation{{Type: TypeLoan, Name: "Mortgage", MonthlyPayment: ptr(20000)}}

	res, err := Calculate(in, assumptions.Default(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "Mortgage", res.Breakdown[0].Name)
	assert.Equal(t, 20000.0, res.Breakdown[0].Monthly)
	assert.Equal(t, 46000.0, res.MonthlyObligationsTotal)
	assert.Equal(t, 38.33, res.PDNPercent)
	assert.Equal(t, ModeTarget, res.ScenarioApplied)
}

func TestCalculateHighBand(t *testing.T) {
	in := Input{
		Income:      Income{Amount: 10000},
		Obligations: []Obligation{{Type: TypeLoan, MonthlyPayment: ptr(9000)}},
		Scenario:    Scenario{Mode: ModeBase},
	}
	res, err := Calculate(in, assumptions.Default(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 90.0, res.PDNPercent)
	assert.Equal(t, RiskHigh, res.RiskBand)
	assert.Equal(t, AdviceHigh, res.Advice)
	assert.Equal(t, "loan", res.Breakdown[0].Name)
}

func TestCalculateRoundingOnceAtBoundary(t *testing.T) {
	// Each quarterly 100 is 33.333... a month. The rounded lines sum to 99.99
	// but the total must come from the unrounded values.
	in := Input{
		Income: Income{Amount: 1000},
		Obligations: []Obligation{
			{Type: TypeOther, MonthlyPayment: ptr(100), Period: PeriodQuarterly},
			{Type: TypeOther, MonthlyPayment: ptr(100), Period: PeriodQuarterly},
			{Type: TypeOther, MonthlyPayment: ptr(100), Period: PeriodQuarterly},
		},
		Scenario: Scenario{Mode: ModeBase},
	}
	res, err := Calculate(in, assumptions.Default(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 33.33, res.Breakdown[0].Monthly)
	assert.Equal(t, 100.0, res.MonthlyObligationsTotal)
	assert.Equal(t, 10.0, res.PDNPercent)
}

func TestCalculatePrecisionFromSnapshot(t *testing.T) {
	snap, err := assumptions.Default().Merge(map[string]interface{}{"percent_precision": 4, "money_precision": 0})
	require.NoError(t, err)

	in := Input{
		Income:      Income{Amount: 30000},
		Obligations: []Obligation{{Type: TypeLoan, MonthlyPayment: ptr(10000.4)}},
		Scenario:    Scenario{Mode: ModeBase},
	}
	res, err := Calculate(in, snap, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 33.3347, res.PDNPercent)
	assert.Equal(t, 10000.0, res.MonthlyObligationsTotal)
}

func TestCalculateCustomThresholds(t *testing.T) {
	snap, err := assumptions.Default().Merge(map[string]interface{}{"risk_low_percent": 30.0, "risk_high_percent": 40.0})
	require.NoError(t, err)

	res, err := Calculate(compositeInput(ModeBase), snap, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, res.RiskBand)
	assert.Equal(t, AdviceHigh, res.Advice)
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  Input
		target error
	}{
		{
			name:   "zero income",
			input:  Input{Income: Income{Amount: 0}, Scenario: Scenario{Mode: ModeBase}},
			target: ErrZeroOrNegativeIncome,
		},
		{
			name: "income wiped out by stress",
			input: Input{
				Income:   Income{Amount: 1000},
				Scenario: Scenario{Mode: ModeStress, IncomeShockPct: -1},
			},
			target: ErrZeroOrNegativeIncome,
		},
		{
			name: "loan without payment info",
			input: Input{
				Income:      Income{Amount: 1000},
				Obligations: []Obligation{{Type: TypeLoan}},
				Scenario:    Scenario{Mode: ModeBase},
			},
			target: ErrMissingPaymentInfo,
		},
		{
			name: "negative payment",
			input: Input{
				Income:      Income{Amount: 1000},
				Obligations: []Obligation{{Type: TypeLoan, MonthlyPayment: ptr(-500)}},
				Scenario:    Scenario{Mode: ModeBase},
			},
			target: ErrNegativePayment,
		},
		{
			name: "refinance outside target",
			input: Input{
				Income: Income{Amount: 1000},
				Scenario: Scenario{Mode: ModeStress, Refinance: []Obligation{
					{Type: TypeLoan, Name: "x", MonthlyPayment: ptr(1)},
				}},
			},
			target: ErrRefinanceNotAllowed,
		},
		{
			name:   "unknown mode",
			input:  Input{Income: Income{Amount: 1000}, Scenario: Scenario{Mode: "optimistic"}},
			target: ErrUnsupportedMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Calculate(tt.input, assumptions.Default(), fixedNow)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.target), "expected %v, got %v", tt.target, err)
			assert.True(t, IsCalculationError(err))
		})
	}
}

func TestCalculateErrorNamesObligation(t *testing.T) {
	in := Input{
		Income: Income{Amount: 1000},
		Obligations: []Obligation{
			{Type: TypeLoan, MonthlyPayment: ptr(100), Name: "ok"},
			{Type: TypeInstallment, Name: "Phone"},
		},
		Scenario: Scenario{Mode: ModeBase},
	}
	_, err := Calculate(in, assumptions.Default(), fixedNow)

	var oe *ObligationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 1, oe.Index)
	assert.Equal(t, "Phone", oe.Name)
	assert.Equal(t, TypeInstallment, oe.Type)
	assert.Contains(t, err.Error(), `obligation #2 "Phone" (installment)`)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "missing_payment_info", ErrorKind(&ObligationError{Err: ErrMissingPaymentInfo}))
	assert.Equal(t, "zero_or_negative_income", ErrorKind(ErrZeroOrNegativeIncome))
	assert.Equal(t, "refinance_mismatch", ErrorKind(ErrRefinanceMismatch))
	assert.Equal(t, "other", ErrorKind(errors.New("boom")))
	assert.False(t, IsCalculationError(errors.New("boom")))
}
