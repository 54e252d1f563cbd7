// Package pdn computes the debt-to-income ratio (PDN) of an individual and
// the debt coverage metrics of a business. Every function in this package is
// pure: it performs no I/O, keeps no state and is safe for concurrent use.
package pdn

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObligationType classifies a debt obligation.
type ObligationType string

// Supported obligation types.
const (
	TypeLoan        ObligationType = "loan"
	TypeCreditCard  ObligationType = "credit_card"
	TypeAlimony     ObligationType = "alimony"
	TypeInstallment ObligationType = "installment"
	TypeOther       ObligationType = "other"
)

// ObligationTypes lists every accepted obligation type.
var ObligationTypes = []ObligationType{TypeLoan, TypeCreditCard, TypeAlimony, TypeInstallment, TypeOther}

// Period is the frequency at which a supplied payment recurs.
type Period string

// Supported payment periods. An empty Period means monthly.
const (
	PeriodMonthly   Period = "monthly"
	PeriodWeekly    Period = "weekly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
	PeriodDaily     Period = "daily"
)

// Periods lists every accepted payment period.
var Periods = []Period{PeriodMonthly, PeriodWeekly, PeriodQuarterly, PeriodYearly, PeriodDaily}

// IncomeType tells whether income is before or after tax.
type IncomeType string

// Supported income types.
const (
	IncomeNet   IncomeType = "net"
	IncomeGross IncomeType = "gross"
)

// Mode selects the scenario applied to a calculation.
type Mode string

// Supported scenario modes.
const (
	ModeBase   Mode = "base"
	ModeStress Mode = "stress"
	ModeTarget Mode = "target"
)

// Modes lists every accepted scenario mode.
var Modes = []Mode{ModeBase, ModeStress, ModeTarget}

// RiskBand is a coarse classification of affordability risk.
type RiskBand string

// Risk bands in increasing order of risk.
const (
	RiskLow  RiskBand = "LOW"
	RiskMid  RiskBand = "MID"
	RiskHigh RiskBand = "HIGH"
)

// Income is the monthly income of the subject.
type Income struct {
	Amount   float64    `json:"amount" yaml:"amount"`
	Currency string     `json:"currency" yaml:"currency"`
	Type     IncomeType `json:"income_type" yaml:"income_type"`
	Source   string     `json:"source" yaml:"source"`
}

// Obligation is one recurring debt commitment. Optional numeric fields are
// pointers so that an absent value is distinguishable from zero.
type Obligation struct {
	Type           ObligationType `json:"type" yaml:"type"`
	MonthlyPayment *float64       `json:"monthly_payment,omitempty" yaml:"monthly_payment,omitempty"`
	Balance        *float64       `json:"balance,omitempty" yaml:"balance,omitempty"`
	MinPaymentRate *float64       `json:"min_payment_rate,omitempty" yaml:"min_payment_rate,omitempty"`
	Name           string         `json:"name,omitempty" yaml:"name,omitempty"`
	ID             string         `json:"id,omitempty" yaml:"id,omitempty"`
	Currency       string         `json:"currency,omitempty" yaml:"currency,omitempty"`
	Period         Period         `json:"period,omitempty" yaml:"period,omitempty"`
}

// Key is the name used for display and refinance matching: the explicit
// name, else the type.
func (o Obligation) Key() string {
	if o.Name != "" {
		return o.Name
	}
	return string(o.Type)
}

// Scenario describes the adjustment applied on top of the baseline.
// Shocks are fractions: -0.2 is a 20% drop, 0.1 a 10% rise.
type Scenario struct {
	Mode            Mode         `json:"mode" yaml:"mode"`
	IncomeShockPct  float64      `json:"income_shock_pct" yaml:"income_shock_pct"`
	PaymentShockPct float64      `json:"payment_shock_pct" yaml:"payment_shock_pct"`
	Refinance       []Obligation `json:"refinance,omitempty" yaml:"refinance,omitempty"`
}

// Input is everything a single individual calculation consumes besides the
// assumptions snapshot.
type Input struct {
	Income      Income
	Obligations []Obligation
	Scenario    Scenario
}

// Entry is a normalized obligation carried through the scenario engine at
// full precision.
type Entry struct {
	ID      string
	Key     string
	Label   string
	Type    ObligationType
	Monthly decimal.Decimal
}

// Line is one row of the result breakdown.
type Line struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Type    ObligationType `json:"type"`
	Monthly float64        `json:"monthly"`
}

// CalculationResult is the outcome of one individual calculation. It is
// never modified after Calculate returns it.
type CalculationResult struct {
	MonthlyIncomeUsed       float64   `json:"monthly_income_used"`
	MonthlyObligationsTotal float64   `json:"monthly_obligations_total"`
	PDNPercent              float64   `json:"pdn_percent"`
	RiskBand                RiskBand  `json:"risk_band"`
	Breakdown               []Line    `json:"breakdown"`
	ScenarioApplied         Mode      `json:"scenario_applied"`
	Advice                  string    `json:"advice"`
	CalculatedAt            time.Time `json:"calculated_at"`
}

// BusinessInput carries the monthly figures of a business entity.
type BusinessInput struct {
	EBITDA    float64  `json:"ebitda" yaml:"ebitda"`
	Interest  float64  `json:"interest" yaml:"interest"`
	Principal float64  `json:"principal" yaml:"principal"`
	Taxes     *float64 `json:"taxes,omitempty" yaml:"taxes,omitempty"`
}

// BusinessResult is the outcome of one business calculation.
type BusinessResult struct {
	MonthlyDebtService float64   `json:"monthly_debt_service"`
	CashFlowProxy      float64   `json:"cash_flow_proxy"`
	DCR                float64   `json:"dcr"`
	PDNBusinessPercent float64   `json:"pdn_business_percent"`
	RiskBand           RiskBand  `json:"risk_band"`
	Advice             string    `json:"advice"`
	CalculatedAt       time.Time `json:"calculated_at"`
}
