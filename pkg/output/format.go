// Package output provides utilities for formatting and displaying PDN results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/iwvelando/pdn-calculator/internal/pdn"
	"github.com/iwvelando/pdn-calculator/pkg/constants"
	"github.com/iwvelando/pdn-calculator/pkg/format"
	"github.com/iwvelando/pdn-calculator/pkg/validation"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ResponseMeta echoes the request identity back to the client.
type ResponseMeta struct {
	ClientID  string    `json:"client_id"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"ts"`
}

// IndividualResponse is the individual calculation result as returned to clients.
type IndividualResponse struct {
	*pdn.CalculationResult
	CalcVersion string       `json:"calc_version"`
	Currency    string       `json:"currency"`
	Meta        ResponseMeta `json:"meta"`
}

// BusinessResponse is the business calculation result as returned to clients.
type BusinessResponse struct {
	*pdn.BusinessResult
	CalcVersion string       `json:"calc_version"`
	Meta        ResponseMeta `json:"meta"`
}

// NewIndividualResponse wraps res with the request's currency and identity.
func NewIndividualResponse(res *pdn.CalculationResult, req *validation.Request) IndividualResponse {
	return IndividualResponse{
		CalculationResult: res,
		CalcVersion:       constants.CalcVersion,
		Currency:          req.Income.Currency,
		Meta: ResponseMeta{
			ClientID:  req.Meta.ClientID,
			RequestID: req.Meta.RequestID,
			Timestamp: res.CalculatedAt,
		},
	}
}

// NewBusinessResponse wraps res with the request identity.
func NewBusinessResponse(res *pdn.BusinessResult, req *validation.BusinessRequest) BusinessResponse {
	return BusinessResponse{
		BusinessResult: res,
		CalcVersion:    constants.CalcVersion,
		Meta: ResponseMeta{
			ClientID:  req.Meta.ClientID,
			RequestID: req.Meta.RequestID,
			Timestamp: res.CalculatedAt,
		},
	}
}

// Precision controls the number of decimals shown by the pretty and CSV formats.
type Precision struct {
	Money   int32
	Percent int32
}

// PrettyFormat writes a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, resp IndividualResponse, prec Precision) {
	p := message.NewPrinter(language.English)
	res := resp.CalculationResult

	_, _ = p.Fprintf(w, "--- PDN for request %s (%s scenario) ---\n", resp.Meta.RequestID, res.ScenarioApplied)
	_, _ = p.Fprintf(w, "Obligation                     | Type         | Monthly\n")
	_, _ = p.Fprintf(w, "______________________________ | ____________ | _______\n")
	for _, line := range res.Breakdown {
		_, _ = p.Fprintf(w, "%-30s | %-12s | %s\n", line.Name, line.Type, format.Currency(line.Monthly, resp.Currency, prec.Money))
	}
	_, _ = p.Fprintf(w, "\n")
	_, _ = p.Fprintf(w, "Monthly income used:  %s\n", format.Currency(res.MonthlyIncomeUsed, resp.Currency, prec.Money))
	_, _ = p.Fprintf(w, "Monthly obligations:  %s\n", format.Currency(res.MonthlyObligationsTotal, resp.Currency, prec.Money))
	_, _ = p.Fprintf(w, "PDN:                  %.*f%% (%s)\n", int(prec.Percent), res.PDNPercent, res.RiskBand)
	_, _ = p.Fprintf(w, "Advice:               %s\n", res.Advice)
	_, _ = p.Fprintf(w, "Calculation version:  %s\n", resp.CalcVersion)
}

// PrettyBusinessFormat writes a human-readable business report.
func PrettyBusinessFormat(w io.Writer, resp BusinessResponse, prec Precision) {
	p := message.NewPrinter(language.English)
	res := resp.BusinessResult

	_, _ = p.Fprintf(w, "--- Business PDN for request %s ---\n", resp.Meta.RequestID)
	_, _ = p.Fprintf(w, "Monthly debt service: %.*f\n", int(prec.Money), res.MonthlyDebtService)
	_, _ = p.Fprintf(w, "Cash flow proxy:      %.*f\n", int(prec.Money), res.CashFlowProxy)
	_, _ = p.Fprintf(w, "DCR:                  %.*f\n", int(prec.Percent), res.DCR)
	_, _ = p.Fprintf(w, "PDN:                  %.*f%% (%s)\n", int(prec.Percent), res.PDNBusinessPercent, res.RiskBand)
	_, _ = p.Fprintf(w, "Advice:               %s\n", res.Advice)
	_, _ = p.Fprintf(w, "Calculation version:  %s\n", resp.CalcVersion)
}

// CsvFormat writes the breakdown followed by the totals in comma-separated
// value format.
func CsvFormat(w io.Writer, resp IndividualResponse, prec Precision) error {
	res := resp.CalculationResult
	cw := csv.NewWriter(w)
	money := func(v float64) string { return strconv.FormatFloat(v, 'f', int(prec.Money), 64) }

	records := [][]string{{"name", "type", "monthly (" + resp.Currency + ")"}}
	for _, line := range res.Breakdown {
		records = append(records, []string{line.Name, string(line.Type), money(line.Monthly)})
	}
	records = append(records,
		[]string{"monthly_income_used", "", money(res.MonthlyIncomeUsed)},
		[]string{"monthly_obligations_total", "", money(res.MonthlyObligationsTotal)},
		[]string{"pdn_percent", string(res.RiskBand), strconv.FormatFloat(res.PDNPercent, 'f', int(prec.Percent), 64)},
	)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// CsvBusinessFormat writes the business metrics as metric,value rows.
func CsvBusinessFormat(w io.Writer, resp BusinessResponse, prec Precision) error {
	res := resp.BusinessResult
	cw := csv.NewWriter(w)
	money := func(v float64) string { return strconv.FormatFloat(v, 'f', int(prec.Money), 64) }
	pct := func(v float64) string { return strconv.FormatFloat(v, 'f', int(prec.Percent), 64) }

	records := [][]string{
		{"metric", "value"},
		{"monthly_debt_service", money(res.MonthlyDebtService)},
		{"cash_flow_proxy", money(res.CashFlowProxy)},
		{"dcr", pct(res.DCR)},
		{"pdn_business_percent", pct(res.PDNBusinessPercent)},
		{"risk_band", string(res.RiskBand)},
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// JSONFormat writes v as indented JSON.
func JSONFormat(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// Write renders resp in the named format.
func Write(w io.Writer, outputFormat string, resp IndividualResponse, prec Precision) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		PrettyFormat(w, resp, prec)
		return nil
	case constants.OutputFormatCSV:
		return CsvFormat(w, resp, prec)
	case constants.OutputFormatJSON:
		return JSONFormat(w, resp)
	default:
		return validation.ValidateOutputFormat(outputFormat)
	}
}

// WriteBusiness renders resp in the named format.
func WriteBusiness(w io.Writer, outputFormat string, resp BusinessResponse, prec Precision) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		PrettyBusinessFormat(w, resp, prec)
		return nil
	case constants.OutputFormatCSV:
		return CsvBusinessFormat(w, resp, prec)
	case constants.OutputFormatJSON:
		return JSONFormat(w, resp)
	default:
		return validation.ValidateOutputFormat(outputFormat)
	}
}
