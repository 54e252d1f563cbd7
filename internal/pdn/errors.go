package pdn

import (
	"errors"
	"fmt"
)

// Calculation errors. All of them are fatal to the calculation that raised
// them; callers match them with errors.Is.
var (
	ErrMissingPaymentInfo   = errors.New("missing payment info")
	ErrNegativePayment      = errors.New("negative payment")
	ErrZeroOrNegativeIncome = errors.New("income after scenario adjustment must be positive")
	ErrInvalidBusinessInput = errors.New("invalid business input")
	ErrRefinanceMismatch    = errors.New("refinance entry matches no obligation")
	ErrRefinanceNotAllowed  = errors.New("refinance is only allowed for target scenario")
	ErrUnsupportedPeriod    = errors.New("unsupported payment period")
	ErrUnsupportedMode      = errors.New("unsupported scenario mode")
)

// ObligationError ties a calculation error to the obligation that caused it.
type ObligationError struct {
	Index int
	Name  string
	Type  ObligationType
	Err   error
}

func (e *ObligationError) Error() string {
	return fmt.Sprintf("obligation #%d %q (%s): %v", e.Index+1, e.Name, e.Type, e.Err)
}

func (e *ObligationError) Unwrap() error {
	return e.Err
}

// IsCalculationError reports whether err is one of the calculation errors
// above, as opposed to a programming or transport failure.
func IsCalculationError(err error) bool {
	for _, target := range []error{
		ErrMissingPaymentInfo,
		ErrNegativePayment,
		ErrZeroOrNegativeIncome,
		ErrInvalidBusinessInput,
		ErrRefinanceMismatch,
		ErrRefinanceNotAllowed,
		ErrUnsupportedPeriod,
		ErrUnsupportedMode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorKind returns a short stable label for a calculation error, suitable
// for metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingPaymentInfo):
		return "missing_payment_info"
	case errors.Is(err, ErrNegativePayment):
		return "negative_payment"
	case errors.Is(err, ErrZeroOrNegativeIncome):
		return "zero_or_negative_income"
	case errors.Is(err, ErrInvalidBusinessInput):
		return "invalid_business_input"
	case errors.Is(err, ErrRefinanceMismatch):
		return "refinance_mismatch"
	case errors.Is(err, ErrRefinanceNotAllowed):
		return "refinance_not_allowed"
	case errors.Is(err, ErrUnsupportedPeriod):
		return "unsupported_period"
	case errors.Is(err, ErrUnsupportedMode):
		return "unsupported_mode"
	default:
		return "other"
	}
}
