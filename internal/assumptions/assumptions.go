// Package assumptions holds the calculation parameters shared by every PDN
// calculation and publishes them as immutable snapshots.
package assumptions

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/iwvelando/pdn-calculator/pkg/constants"
)

// ErrInvalidUpdate is returned when a partial update names an unknown field or
// carries a value of the wrong type or range.
var ErrInvalidUpdate = errors.New("invalid assumptions update")

// Snapshot is one immutable set of calculation parameters. Callers receive it
// by value and never share a pointer to the published copy.
type Snapshot struct {
	CreditCardDefaultMinRate float64 `json:"credit_card_default_min_rate" yaml:"creditCardDefaultMinRate" mapstructure:"creditCardDefaultMinRate"`
	MoneyPrecision           int32   `json:"money_precision" yaml:"moneyPrecision" mapstructure:"moneyPrecision"`
	PercentPrecision         int32   `json:"percent_precision" yaml:"percentPrecision" mapstructure:"percentPrecision"`
	RiskLowPercent           float64 `json:"risk_low_percent" yaml:"riskLowPercent" mapstructure:"riskLowPercent"`
	RiskHighPercent          float64 `json:"risk_high_percent" yaml:"riskHighPercent" mapstructure:"riskHighPercent"`
	StrictRefinance          bool    `json:"strict_refinance" yaml:"strictRefinance" mapstructure:"strictRefinance"`
}

// Default returns the built-in parameters.
func Default() Snapshot {
	return Snapshot{
		CreditCardDefaultMinRate: constants.DefaultCreditCardMinRate,
		MoneyPrecision:           constants.DefaultMoneyPrecision,
		PercentPrecision:         constants.DefaultPercentPrecision,
		RiskLowPercent:           constants.DefaultRiskLowPercent,
		RiskHighPercent:          constants.DefaultRiskHighPercent,
	}
}

// Validate checks every field range and the threshold ordering.
func (s Snapshot) Validate() error {
	if math.IsNaN(s.CreditCardDefaultMinRate) || s.CreditCardDefaultMinRate < 0 || s.CreditCardDefaultMinRate > 1 {
		return fmt.Errorf("%w: credit_card_default_min_rate must be within [0, 1], got %v", ErrInvalidUpdate, s.CreditCardDefaultMinRate)
	}
	if s.MoneyPrecision < 0 || s.MoneyPrecision > constants.MaxPrecision {
		return fmt.Errorf("%w: money_precision must be within [0, %d], got %d", ErrInvalidUpdate, constants.MaxPrecision, s.MoneyPrecision)
	}
	if s.PercentPrecision < 0 || s.PercentPrecision > constants.MaxPrecision {
		return fmt.Errorf("%w: percent_precision must be within [0, %d], got %d", ErrInvalidUpdate, constants.MaxPrecision, s.PercentPrecision)
	}
	if math.IsNaN(s.RiskLowPercent) || s.RiskLowPercent <= 0 {
		return fmt.Errorf("%w: risk_low_percent must be positive, got %v", ErrInvalidUpdate, s.RiskLowPercent)
	}
	if math.IsNaN(s.RiskHighPercent) || math.IsInf(s.RiskHighPercent, 0) || s.RiskHighPercent <= s.RiskLowPercent {
		return fmt.Errorf("%w: risk_high_percent (%v) must be greater than risk_low_percent (%v)",
			ErrInvalidUpdate, s.RiskHighPercent, s.RiskLowPercent)
	}
	return nil
}

type fieldSetter func(s *Snapshot, value interface{}) error

var fields = map[string]fieldSetter{
	"credit_card_default_min_rate": func(s *Snapshot, v interface{}) error {
		f, err := toFloat(v)
		s.CreditCardDefaultMinRate = f
		return err
	},
	"money_precision": func(s *Snapshot, v interface{}) error {
		n, err := toPrecision(v)
		s.MoneyPrecision = n
		return err
	},
	"percent_precision": func(s *Snapshot, v interface{}) error {
		n, err := toPrecision(v)
		s.PercentPrecision = n
		return err
	},
	// rounding is the single-precision knob older clients send.
	"rounding": func(s *Snapshot, v interface{}) error {
		n, err := toPrecision(v)
		s.MoneyPrecision = n
		s.PercentPrecision = n
		return err
	},
	"risk_low_percent": func(s *Snapshot, v interface{}) error {
		f, err := toFloat(v)
		s.RiskLowPercent = f
		return err
	},
	"risk_high_percent": func(s *Snapshot, v interface{}) error {
		f, err := toFloat(v)
		s.RiskHighPercent = f
		return err
	},
	"strict_refinance": func(s *Snapshot, v interface{}) error {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
		s.StrictRefinance = b
		return nil
	},
}

// Fields lists the keys accepted by Merge in sorted order.
func Fields() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge applies a partial update to a copy of s and validates the outcome.
// The receiver is never modified. Keys are applied in sorted order so that
// "rounding" is overridden by an explicit money/percent precision in the same
// patch.
func (s Snapshot) Merge(patch map[string]interface{}) (Snapshot, error) {
	next := s
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == "rounding") != (keys[j] == "rounding") {
			return keys[i] == "rounding"
		}
		return keys[i] < keys[j]
	})

	var unknown []string
	for _, k := range keys {
		setter, ok := fields[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if err := setter(&next, patch[k]); err != nil {
			return s, fmt.Errorf("%w: %s: %v", ErrInvalidUpdate, k, err)
		}
	}
	if len(unknown) > 0 {
		return s, fmt.Errorf("%w: unknown field(s) %s", ErrInvalidUpdate, strings.Join(unknown, ", "))
	}

	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// requestFields are the keys a single calculation request may override. Risk
// thresholds and refinance policy change only through Store.Update.
var requestFields = map[string]struct{}{
	"credit_card_default_min_rate": {},
	"rounding":                     {},
	"money_precision":              {},
	"percent_precision":            {},
}

// RequestFields lists the keys accepted by MergeRequest in sorted order.
func RequestFields() []string {
	keys := make([]string, 0, len(requestFields))
	for k := range requestFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MergeRequest is Merge limited to the keys in RequestFields. Any other key,
// known or not, is rejected with ErrInvalidUpdate.
func (s Snapshot) MergeRequest(patch map[string]interface{}) (Snapshot, error) {
	var denied []string
	for k := range patch {
		if _, ok := requestFields[k]; !ok {
			denied = append(denied, k)
		}
	}
	if len(denied) > 0 {
		sort.Strings(denied)
		return s, fmt.Errorf("%w: field(s) %s cannot be set per request; allowed: %s",
			ErrInvalidUpdate, strings.Join(denied, ", "), strings.Join(RequestFields(), ", "))
	}
	return s.Merge(patch)
}

// Store publishes the current Snapshot. Readers take a copy with Current;
// writers build a new Snapshot and swap the pointer, so no reader ever sees a
// partially applied update.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore validates initial and publishes it.
func NewStore(initial Snapshot) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	s.current.Store(&initial)
	return s, nil
}

// Current returns a copy of the published snapshot.
func (s *Store) Current() Snapshot {
	return *s.current.Load()
}

// Update merges patch into the published snapshot and publishes the result.
// Concurrent updates are serialized by compare-and-swap; a losing writer
// re-merges against the winner's snapshot.
func (s *Store) Update(patch map[string]interface{}) (Snapshot, error) {
	for {
		old := s.current.Load()
		next, err := old.Merge(patch)
		if err != nil {
			return *old, err
		}
		if s.current.CompareAndSwap(old, &next) {
			return next, nil
		}
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toPrecision(v interface{}) (int32, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	if f < 0 || f > constants.MaxPrecision {
		return 0, fmt.Errorf("must be within [0, %d], got %v", constants.MaxPrecision, f)
	}
	return int32(f), nil
}
