// Package dec wraps shopspring/decimal with the rounding and parsing rules
// used by all monetary and rate values in the engine. Binary floats are never
// used for money.
package dec

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// ErrArithmetic marks impossible operations (division by zero, non-finite
// results). It is a programming error when it surfaces from a calculator.
var ErrArithmetic = errors.New("arithmetic error")

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func init() {
	// Amortization math chains divisions and integer powers; the shopspring
	// default of 16 digits loses cents over 40-year horizons.
	decimal.DivisionPrecision = 28
}

// RoundingMode selects how Round resolves ties.
type RoundingMode int

const (
	HalfUp RoundingMode = iota
	HalfEven
	Down
)

var Zero = decimal.Zero

// Parse accepts canonical decimal strings (-?\d+(\.\d+)?). Exponents and
// thousands separators are rejected.
func Parse(s string) (decimal.Decimal, error) {
	if !numberRe.MatchString(s) {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, ErrArithmetic)
	}
	return decimal.NewFromString(s)
}

// MustParse is for literals in code and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromInt builds an exact decimal from an integer.
func FromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// Round quantizes to n decimal places under the given mode. HalfUp resolves
// ties away from zero, matching the engine-wide monetary convention.
func Round(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case HalfEven:
		return d.RoundBank(places)
	case Down:
		return d.Truncate(places)
	default:
		return d.Round(places)
	}
}

// Cents quantizes to two decimal places with half-up rounding. Every value
// that leaves a calculator goes through this.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Div divides a by b, failing on a zero divisor instead of panicking.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, fmt.Errorf("division by zero: %w", ErrArithmetic)
	}
	return a.Div(b), nil
}

// PowInt raises base to an integer exponent. Negative exponents take the
// reciprocal of the positive power; base zero with a negative exponent fails.
func PowInt(base decimal.Decimal, exp int) (decimal.Decimal, error) {
	if exp >= 0 {
		return base.Pow(decimal.NewFromInt(int64(exp))), nil
	}
	p := base.Pow(decimal.NewFromInt(int64(-exp)))
	if p.IsZero() {
		return decimal.Zero, fmt.Errorf("zero base with negative exponent: %w", ErrArithmetic)
	}
	return decimal.NewFromInt(1).Div(p), nil
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// ClampZero floors negative values at zero.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}
