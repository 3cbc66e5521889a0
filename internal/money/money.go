// Package money provides a fixed-point amount type for expense splitting.
//
// An amount is an integer count of minor currency units (cents for USD) tagged
// with its currency. Floating-point values never enter the engine: display
// strings are converted with Parse and String at the API boundary only.
//
// Every arithmetic operation is exact. Operations that would overflow int64 or
// combine two currencies return an error instead of a plausible wrong value.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for negative totals or weights and for
	// display strings that cannot be represented exactly.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCurrencyMismatch is returned when two amounts of different currencies are combined.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrOverflow is returned when a result does not fit in int64 minor units.
	ErrOverflow = errors.New("amount overflows minor-unit range")

	// ErrInvalidCurrency is returned for malformed ISO 4217 codes.
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Currency is an ISO 4217 currency code such as "USD".
type Currency string

// USD is the default currency for new groups.
const USD Currency = "USD"

// scales lists the currencies whose minor unit is not 1/100.
var scales = map[Currency]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"JOD": 3,
	"TND": 3,
}

// ParseCurrency normalizes and validates a three-letter currency code.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return Currency(code), nil
}

// Scale returns the number of decimal digits in the currency's minor unit.
func (c Currency) Scale() int32 {
	if s, ok := scales[c]; ok {
		return s
	}
	return 2
}

// Money is an exact amount in minor units of a single currency.
// The zero value has no currency and is only equal to itself.
type Money struct {
	units    int64
	currency Currency
}

// New returns an amount of units minor units of currency c.
func New(units int64, c Currency) Money {
	return Money{units: units, currency: c}
}

// Zero returns a zero amount in currency c.
func Zero(c Currency) Money {
	return Money{currency: c}
}

// Units returns the amount in minor units.
func (m Money) Units() int64 { return m.units }

// Currency returns the amount's currency.
func (m Money) Currency() Currency { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.units == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.units < 0 }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.units > 0 }

// Sign returns -1, 0 or +1.
func (m Money) Sign() int {
	switch {
	case m.units < 0:
		return -1
	case m.units > 0:
		return 1
	default:
		return 0
	}
}

// SameCurrency reports whether m and o are denominated in the same currency.
func (m Money) SameCurrency(o Money) bool {
	return m.currency == o.currency
}

func (m Money) mustMatch(o Money) error {
	if m.currency != o.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.mustMatch(o); err != nil {
		return Money{}, err
	}
	if (o.units > 0 && m.units > math.MaxInt64-o.units) ||
		(o.units < 0 && m.units < math.MinInt64-o.units) {
		return Money{}, fmt.Errorf("%w: %d + %d", ErrOverflow, m.units, o.units)
	}
	return Money{units: m.units + o.units, currency: m.currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.mustMatch(o); err != nil {
		return Money{}, err
	}
	if (o.units < 0 && m.units > math.MaxInt64+o.units) ||
		(o.units > 0 && m.units < math.MinInt64+o.units) {
		return Money{}, fmt.Errorf("%w: %d - %d", ErrOverflow, m.units, o.units)
	}
	return Money{units: m.units - o.units, currency: m.currency}, nil
}

// Neg returns -m.
func (m Money) Neg() (Money, error) {
	if m.units == math.MinInt64 {
		return Money{}, fmt.Errorf("%w: -(%d)", ErrOverflow, m.units)
	}
	return Money{units: -m.units, currency: m.currency}, nil
}

// Abs returns |m|.
func (m Money) Abs() (Money, error) {
	if m.units < 0 {
		return m.Neg()
	}
	return m, nil
}

// Compare returns -1, 0 or +1 as a is less than, equal to, or greater than b.
func Compare(a, b Money) (int, error) {
	if err := a.mustMatch(b); err != nil {
		return 0, err
	}
	switch {
	case a.units < b.units:
		return -1, nil
	case a.units > b.units:
		return 1, nil
	default:
		return 0, nil
	}
}

// Sum adds amounts, all of which must be in currency c.
func Sum(c Currency, amounts ...Money) (Money, error) {
	total := Zero(c)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// Decimal returns the amount in major units, for display.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.units, -m.currency.Scale())
}

// Amount formats the amount in major units without the currency code, e.g. "12.30".
func (m Money) Amount() string {
	return m.Decimal().StringFixed(m.currency.Scale())
}

// String formats the amount as "12.30 USD".
func (m Money) String() string {
	if m.currency == "" {
		return m.Amount()
	}
	return m.Amount() + " " + string(m.currency)
}

// Parse converts a display string in major units ("12.30") into an exact amount.
// Strings with more fractional digits than the currency allows are rejected
// rather than rounded.
func Parse(s string, c Currency) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	minor := d.Shift(c.Scale())
	if !minor.IsInteger() {
		return Money{}, fmt.Errorf("%w: %q has more than %d fractional digits for %s",
			ErrInvalidAmount, s, c.Scale(), c)
	}
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || minor.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return Money{}, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return Money{units: minor.IntPart(), currency: c}, nil
}

type wireMoney struct {
	Units    int64  `json:"units"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as {"units": 1230, "currency": "USD"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMoney{Units: m.units, Currency: string(m.currency)})
}

// UnmarshalJSON decodes the integer minor-unit form. Fractional unit counts
// are rejected by the int64 decoder.
func (m *Money) UnmarshalJSON(data []byte) error {
	var w wireMoney
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	c, err := ParseCurrency(w.Currency)
	if err != nil {
		return err
	}
	*m = Money{units: w.Units, currency: c}
	return nil
}
