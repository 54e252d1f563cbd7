package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/iwvelando/pdn-calculator/internal/pdn"
	"github.com/iwvelando/pdn-calculator/pkg/constants"
)

// ErrValidation is matched by every *Error.
var ErrValidation = errors.New("validation failed")

// Subject types accepted in a request.
const (
	SubjectIndividual = "individual"
	SubjectBusiness   = "business"
)

// Request defaults
const (
	DefaultPeriodMonths = 6
	DefaultIncomeSource = "salary"
)

// IncomeSources lists the accepted income.source values.
var IncomeSources = []string{"salary", "other"}

// FieldError is one problem with one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects every problem found in a request.
type Error struct {
	Problems []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrValidation) true for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

func (e *Error) add(field, format string, args ...interface{}) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *Error) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Meta identifies the client and the request.
type Meta struct {
	ClientID  string `json:"client_id" yaml:"client_id"`
	RequestID string `json:"request_id" yaml:"request_id"`
}

// ScenarioRequest is the scenario as clients send it. Shock is the legacy
// single-value shock, translated by Normalize into the two explicit fields.
type ScenarioRequest struct {
	pdn.Scenario `yaml:",inline"`
	Shock        *float64 `json:"shock,omitempty" yaml:"shock,omitempty"`
}

// Request is an individual PDN calculation request.
type Request struct {
	SubjectType  string                 `json:"subject_type" yaml:"subject_type"`
	PeriodMonths int                    `json:"period_months" yaml:"period_months"`
	Income       pdn.Income             `json:"income" yaml:"income"`
	Obligations  []pdn.Obligation       `json:"obligations" yaml:"obligations"`
	Scenario     ScenarioRequest        `json:"scenario" yaml:"scenario"`
	Assumptions  map[string]interface{} `json:"assumptions,omitempty" yaml:"assumptions,omitempty"`
	Meta         Meta                   `json:"meta" yaml:"meta"`
}

// Input returns the engine input described by a normalized request.
func (r *Request) Input() pdn.Input {
	return pdn.Input{
		Income:      r.Income,
		Obligations: r.Obligations,
		Scenario:    r.Scenario.Scenario,
	}
}

// BusinessRequest is a business PDN calculation request.
type BusinessRequest struct {
	pdn.BusinessInput `yaml:",inline"`
	Meta              Meta `json:"meta" yaml:"meta"`
}

// Rules holds the configurable limits applied by Normalize.
type Rules struct {
	AllowedCurrencies []string
	MinShockPct       float64
	MaxShockPct       float64
}

// DefaultRules returns the built-in limits.
func DefaultRules() Rules {
	return Rules{
		AllowedCurrencies: []string{"RUB", "USD", "EUR"},
		MinShockPct:       constants.MinShockPct,
		MaxShockPct:       constants.MaxShockPct,
	}
}

func (r Rules) currencyAllowed(c string) bool {
	for _, allowed := range r.AllowedCurrencies {
		if c == allowed {
			return true
		}
	}
	return false
}

// Normalize fills defaults into req and checks every field. On failure it
// returns an *Error listing all problems found.
func Normalize(req *Request, rules Rules) error {
	verr := &Error{}

	if req.SubjectType == "" {
		req.SubjectType = SubjectIndividual
	}
	if req.PeriodMonths == 0 {
		req.PeriodMonths = DefaultPeriodMonths
	}
	if req.Income.Currency == "" && len(rules.AllowedCurrencies) > 0 {
		req.Income.Currency = rules.AllowedCurrencies[0]
	}
	if req.Income.Type == "" {
		req.Income.Type = pdn.IncomeNet
	}
	if req.Income.Source == "" {
		req.Income.Source = DefaultIncomeSource
	}
	normalizeMeta(&req.Meta, verr)
	applyLegacyShock(&req.Scenario, verr)

	if req.SubjectType != SubjectIndividual && req.SubjectType != SubjectBusiness {
		verr.add("subject_type", "must be %s or %s, got %q", SubjectIndividual, SubjectBusiness, req.SubjectType)
	}
	if req.PeriodMonths < 1 {
		verr.add("period_months", "must be >= 1, got %d", req.PeriodMonths)
	}

	validateIncome(req.Income, rules, verr)
	for i, o := range req.Obligations {
		validateObligation(fmt.Sprintf("obligations[%d]", i), o, req.Income.Currency, true, verr)
	}
	validateScenario(req.Scenario.Scenario, req.Income.Currency, rules, verr)

	return verr.orNil()
}

// NormalizeBusiness fills defaults into req and checks every field.
func NormalizeBusiness(req *BusinessRequest) error {
	verr := &Error{}
	if req.Meta.RequestID == "" {
		req.Meta.RequestID = uuid.NewString()
	}

	checkFinite("ebitda", req.EBITDA, verr)
	checkNonNegative("interest", req.Interest, verr)
	checkNonNegative("principal", req.Principal, verr)
	if req.Taxes != nil {
		checkNonNegative("taxes", *req.Taxes, verr)
	}
	return verr.orNil()
}

func normalizeMeta(m *Meta, verr *Error) {
	m.ClientID = strings.TrimSpace(m.ClientID)
	if m.ClientID == "" {
		verr.add("meta.client_id", "is required")
	}
	if m.RequestID == "" {
		m.RequestID = uuid.NewString()
	}
}

// applyLegacyShock maps a single generic shock onto the explicit fields:
// income falls and payments rise by its magnitude.
func applyLegacyShock(sc *ScenarioRequest, verr *Error) {
	if sc.Shock == nil {
		return
	}
	shock := math.Abs(*sc.Shock)
	sc.Shock = nil
	if sc.IncomeShockPct != 0 || sc.PaymentShockPct != 0 {
		verr.add("scenario.shock", "cannot be combined with income_shock_pct or payment_shock_pct")
		return
	}
	sc.IncomeShockPct = -shock
	sc.PaymentShockPct = shock
}

func validSource(source string) bool {
	for _, s := range IncomeSources {
		if s == source {
			return true
		}
	}
	return false
}

func validateIncome(in pdn.Income, rules Rules, verr *Error) {
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount <= 0 {
		verr.add("income.amount", "must be > 0")
	}
	if !rules.currencyAllowed(in.Currency) {
		verr.add("income.currency", "unsupported currency %q", in.Currency)
	}
	if in.Type != pdn.IncomeNet && in.Type != pdn.IncomeGross {
		verr.add("income.income_type", "must be %s or %s, got %q", pdn.IncomeNet, pdn.IncomeGross, in.Type)
	}
	if !validSource(in.Source) {
		verr.add("income.source", "must be one of %s, got %q", strings.Join(IncomeSources, ", "), in.Source)
	}
}

func validateObligation(field string, o pdn.Obligation, currency string, requireType bool, verr *Error) {
	if o.Type != "" || requireType {
		if !validType(o.Type) {
			verr.add(field+".type", "unsupported obligation type %q", o.Type)
		}
	}
	if o.MinPaymentRate != nil {
		r := *o.MinPaymentRate
		if math.IsNaN(r) || r < 0 || r > 1 {
			verr.add(field+".min_payment_rate", "must be within [0, 1], got %v", r)
		}
	}
	if o.MonthlyPayment != nil {
		checkFinite(field+".monthly_payment", *o.MonthlyPayment, verr)
	}
	if o.Balance != nil {
		checkFinite(field+".balance", *o.Balance, verr)
	}
	if o.Period != "" && !validPeriod(o.Period) {
		verr.add(field+".period", "unsupported period %q", o.Period)
	}
	if o.Currency != "" && o.Currency != currency {
		verr.add(field+".currency", "must match income currency %s, got %s", currency, o.Currency)
	}
}

func validateScenario(sc pdn.Scenario, currency string, rules Rules, verr *Error) {
	if !validMode(sc.Mode) {
		verr.add("scenario.mode", "must be one of base, stress, target, got %q", sc.Mode)
	}
	checkShock("scenario.income_shock_pct", sc.IncomeShockPct, rules, verr)
	checkShock("scenario.payment_shock_pct", sc.PaymentShockPct, rules, verr)

	if sc.Refinance == nil {
		return
	}
	if sc.Mode != pdn.ModeTarget {
		verr.add("scenario.refinance", "is only allowed for target scenario")
		return
	}
	for i, ref := range sc.Refinance {
		field := fmt.Sprintf("scenario.refinance[%d]", i)
		if ref.Name == "" && ref.ID == "" && ref.Type == "" {
			verr.add(field, "must reference an obligation by id or name")
		}
		validateObligation(field, ref, currency, false, verr)
	}
}

func checkShock(field string, v float64, rules Rules, verr *Error) {
	if math.IsNaN(v) || v < rules.MinShockPct || v > rules.MaxShockPct {
		verr.add(field, "must be within [%v, %v], got %v", rules.MinShockPct, rules.MaxShockPct, v)
	}
}

func checkFinite(field string, v float64, verr *Error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		verr.add(field, "must be a finite number")
	}
}

func checkNonNegative(field string, v float64, verr *Error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		verr.add(field, "must be a finite number >= 0")
	}
}

func validType(t pdn.ObligationType) bool {
	for _, v := range pdn.ObligationTypes {
		if t == v {
			return true
		}
	}
	return false
}

func validPeriod(p pdn.Period) bool {
	for _, v := range pdn.Periods {
		if p == v {
			return true
		}
	}
	return false
}

func validMode(m pdn.Mode) bool {
	for _, v := range pdn.Modes {
		if m == v {
			return true
		}
	}
	return false
}
