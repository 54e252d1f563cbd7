package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/iwvelando/pdn-calculator/internal/pdn"
)

func ptr(v float64) *float64 { return &v }

func validRequest() *Request {
	return &Request{
		Income: pdn.Income{Amount: 120000, Currency: "RUB"},
		Obligations: []pdn.Obligation{
			{Type: pdn.TypeLoan, MonthlyPayment: ptr(25000), Name: "Mortgage"},
			{Type: pdn.TypeCreditCard, Balance: ptr(80000), MinPaymentRate: ptr(0.05), Name: "Visa"},
		},
		Scenario: ScenarioRequest{Scenario: pdn.Scenario{Mode: pdn.ModeBase}},
		Meta:     Meta{ClientID: "abc-123"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	req := validRequest()
	req.Income.Currency = ""

	if err := Normalize(req, DefaultRules()); err != nil {
		t.Fatalf("Normalize() unexpected error = %v", err)
	}

	if req.SubjectType != SubjectIndividual {
		t.Errorf("expected subject_type %s, got %s", SubjectIndividual, req.SubjectType)
	}
	if req.PeriodMonths != DefaultPeriodMonths {
		t.Errorf("expected period_months %d, got %d", DefaultPeriodMonths, req.PeriodMonths)
	}
	if req.Income.Currency != "RUB" {
		t.Errorf("expected default currency RUB, got %s", req.Income.Currency)
	}
	if req.Income.Type != pdn.IncomeNet {
		t.Errorf("expected income_type net, got %s", req.Income.Type)
	}
	if req.Income.Source != DefaultIncomeSource {
		t.Errorf("expected source %s, got %s", DefaultIncomeSource, req.Income.Source)
	}
	if req.Meta.RequestID == "" {
		t.Error("expected generated request_id")
	}
}

func TestNormalizeKeepsRequestID(t *testing.T) {
	req := validRequest()
	req.Meta.RequestID = "req-1"
	if err := Normalize(req, DefaultRules()); err != nil {
		t.Fatalf("Normalize() unexpected error = %v", err)
	}
	if req.Meta.RequestID != "req-1" {
		t.Errorf("request_id overwritten: %s", req.Meta.RequestID)
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Request)
		field  string
	}{
		{"zero income", func(r *Request) { r.Income.Amount = 0 }, "income.amount"},
		{"negative income", func(r *Request) { r.Income.Amount = -1 }, "income.amount"},
		{"unsupported currency", func(r *Request) { r.Income.Currency = "GBP" }, "income.currency"},
		{"bad income type", func(r *Request) { r.Income.Type = "after-tax" }, "income.income_type"},
		{"bad subject type", func(r *Request) { r.SubjectType = "household" }, "subject_type"},
		{"bad period months", func(r *Request) { r.PeriodMonths = -3 }, "period_months"},
		{"missing client id", func(r *Request) { r.Meta.ClientID = "  " }, "meta.client_id"},
		{"bad obligation type", func(r *Request) { r.Obligations[0].Type = "mortgage" }, "obligations[0].type"},
		{"missing obligation type", func(r *Request) { r.Obligations[0].Type = "" }, "obligations[0].type"},
		{"rate above one", func(r *Request) { r.Obligations[1].MinPaymentRate = ptr(1.2) }, "obligations[1].min_payment_rate"},
		{"negative rate", func(r *Request) { r.Obligations[1].MinPaymentRate = ptr(-0.01) }, "obligations[1].min_payment_rate"},
		{"bad period", func(r *Request) { r.Obligations[0].Period = "biweekly" }, "obligations[0].period"},
		{"foreign obligation currency", func(r *Request) { r.Obligations[0].Currency = "USD" }, "obligations[0].currency"},
		{"unknown income source", func(r *Request) { r.Income.Source = "lottery" }, "income.source"},
		{"bad mode", func(r *Request) { r.Scenario.Mode = "worst" }, "scenario.mode"},
		{"missing mode", func(r *Request) { r.Scenario.Mode = "" }, "scenario.mode"},
		{"income shock too low", func(r *Request) { r.Scenario.IncomeShockPct = -0.6 }, "scenario.income_shock_pct"},
		{"payment shock too high", func(r *Request) { r.Scenario.PaymentShockPct = 1.01 }, "scenario.payment_shock_pct"},
		{"refinance outside target", func(r *Request) {
			r.Scenario.Refinance = []pdn.Obligation{{Type: pdn.TypeLoan, Name: "Mortgage", MonthlyPayment: ptr(1)}}
		}, "scenario.refinance"},
		{"empty refinance outside target", func(r *Request) {
			r.Scenario.Mode = pdn.ModeStress
			r.Scenario.Refinance = []pdn.Obligation{}
		}, "scenario.refinance"},
		{"anonymous refinance entry", func(r *Request) {
			r.Scenario.Mode = pdn.ModeTarget
			r.Scenario.Refinance = []pdn.Obligation{{MonthlyPayment: ptr(1)}}
		}, "scenario.refinance[0]"},
		{"legacy shock combined with explicit", func(r *Request) {
			r.Scenario.Mode = pdn.ModeStress
			r.Scenario.IncomeShockPct = -0.1
			r.Scenario.Shock = ptr(0.2)
		}, "scenario.shock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := Normalize(req, DefaultRules())
			if err == nil {
				t.Fatalf("Normalize() expected error for %s", tt.field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}

			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			found := false
			for _, p := range verr.Problems {
				if p.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected problem on %s, got %v", tt.field, verr.Problems)
			}
		})
	}
}

func TestNormalizeCollectsAllProblems(t *testing.T) {
	req := validRequest()
	req.Income.Amount = 0
	req.Scenario.Mode = "nope"
	req.Meta.ClientID = ""

	err := Normalize(req, DefaultRules())
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(verr.Problems) != 3 {
		t.Errorf("expected 3 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
	if !strings.Contains(err.Error(), "income.amount: must be > 0") {
		t.Errorf("error message missing income problem: %s", err.Error())
	}
}

func TestNormalizeAllowsEngineLevelErrorsThrough(t *testing.T) {
	// Sign and completeness of payments are the engine's to judge.
	req := validRequest()
	req.Obligations = append(req.Obligations,
		pdn.Obligation{Type: pdn.TypeLoan, MonthlyPayment: ptr(-500)},
		pdn.Obligation{Type: pdn.TypeLoan},
	)
	if err := Normalize(req, DefaultRules()); err != nil {
		t.Fatalf("Normalize() unexpected error = %v", err)
	}
}

func TestNormalizeTargetRefinance(t *testing.T) {
	req := validRequest()
	req.Scenario.Mode = pdn.ModeTarget
	req.Scenario.Refinance = []pdn.Obligation{{Type: pdn.TypeLoan, Name: "Mortgage", MonthlyPayment: ptr(20000)}}
	if err := Normalize(req, DefaultRules()); err != nil {
		t.Fatalf("Normalize() unexpected error = %v", err)
	}

	in := req.Input()
	if len(in.Scenario.Refinance) != 1 || in.Scenario.Mode != pdn.ModeTarget {
		t.Errorf("Input() lost the scenario: %+v", in.Scenario)
	}
	if len(in.Obligations) != 2 || in.Income.Amount != 120000 {
		t.Errorf("Input() lost income or obligations: %+v", in)
	}
}

func TestLegacyShock(t *testing.T) {
	req := validRequest()
	req.Scenario.Mode = pdn.ModeStress
	req.Scenario.Shock = ptr(-0.2)

	if err := Normalize(req, DefaultRules()); err != nil {
		t.Fatalf("Normalize() unexpected error = %v", err)
	}
	if req.Scenario.IncomeShockPct != -0.2 {
		t.Errorf("expected income shock -0.2, got %v", req.Scenario.IncomeShockPct)
	}
	if req.Scenario.PaymentShockPct != 0.2 {
		t.Errorf("expected payment shock 0.2, got %v", req.Scenario.PaymentShockPct)
	}
	if req.Scenario.Shock != nil {
		t.Error("expected legacy shock to be cleared")
	}
}

func TestCustomRules(t *testing.T) {
	rules := Rules{AllowedCurrencies: []string{"USD"}, MinShockPct: -0.9, MaxShockPct: 2}

	req := validRequest()
	req.Income.Currency = "USD"
	req.Scenario.Mode = pdn.ModeStress
	req.Scenario.IncomeShockPct = -0.8
	req.Scenario.PaymentShockPct = 1.5
	if err := Normalize(req, rules); err != nil {
		t.Fatalf("Normalize() unexpected error = %v", err)
	}

	req = validRequest()
	if err := Normalize(req, rules); err == nil {
		t.Error("expected RUB to be rejected when only USD is allowed")
	}
}

func TestNormalizeBusiness(t *testing.T) {
	tests := []struct {
		name      string
		req       BusinessRequest
		expectErr bool
	}{
		{"valid", BusinessRequest{BusinessInput: pdn.BusinessInput{EBITDA: 200000, Interest: 30000, Principal: 20000, Taxes: ptr(10000)}}, false},
		{"negative ebitda is the engine's call", BusinessRequest{BusinessInput: pdn.BusinessInput{EBITDA: -1, Interest: 1}}, false},
		{"negative interest", BusinessRequest{BusinessInput: pdn.BusinessInput{EBITDA: 1, Interest: -1}}, true},
		{"negative principal", BusinessRequest{BusinessInput: pdn.BusinessInput{EBITDA: 1, Principal: -1}}, true},
		{"negative taxes", BusinessRequest{BusinessInput: pdn.BusinessInput{EBITDA: 1, Interest: 1, Taxes: ptr(-5)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := NormalizeBusiness(&req)
			if tt.expectErr && err == nil {
				t.Error("NormalizeBusiness() expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("NormalizeBusiness() unexpected error = %v", err)
			}
			if req.Meta.RequestID == "" {
				t.Error("expected generated request_id")
			}
		})
	}
}
