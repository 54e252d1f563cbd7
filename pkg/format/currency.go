// Package format renders money for people.
package format

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"RUB": "₽",
}

// Currency returns amount with thousands separators and the currency marker,
// e.g. "-$1,234.56", "€10.00" or "51,000.00 ₽". Codes without a known symbol
// are appended as-is ("12.00 CHF"); an empty code yields the bare number.
func Currency(amount float64, code string, places int32) string {
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	if places < 0 {
		places = 0
	}
	p := message.NewPrinter(language.English)
	formatted := p.Sprintf("%.*f", int(places), math.Abs(amount))

	code = strings.ToUpper(code)
	switch code {
	case "USD", "EUR":
		return sign + currencySymbols[code] + formatted
	case "":
		return sign + formatted
	}
	if symbol, ok := currencySymbols[code]; ok {
		return sign + formatted + " " + symbol
	}
	return sign + formatted + " " + code
}
