package formulas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/moneta/pkg/dates"
	"github.com/aristath/moneta/pkg/dec"
)

func TestAmortizingPayment(t *testing.T) {
	// 200k at 3% over 240 months: the textbook value is 1109.20.
	p := AmortizingPayment(dec.FromInt(200000), MonthlyRate(dec.MustParse("0.03")), 240)
	assert.Equal(t, "1109.20", dec.Cents(p).StringFixed(2))

	// Zero rate is straight-line.
	p = AmortizingPayment(dec.FromInt(1200), dec.Zero, 12)
	assert.Equal(t, "100", p.String())

	// Degenerate term returns the principal.
	p = AmortizingPayment(dec.FromInt(500), dec.Zero, 0)
	assert.Equal(t, "500", p.String())
}

func TestRemainingBalance(t *testing.T) {
	principal := dec.FromInt(200000)
	rate := MonthlyRate(dec.MustParse("0.03"))

	assert.True(t, RemainingBalance(principal, rate, 240, 0, dec.Zero).Equal(principal))
	assert.True(t, RemainingBalance(principal, rate, 240, 240, dec.Zero).IsZero())

	// After 60 payments roughly a quarter of the principal is gone.
	rb := RemainingBalance(principal, rate, 240, 60, dec.Zero)
	assert.Equal(t, "160694.72", dec.Cents(rb).StringFixed(2))

	// Zero-rate balance is linear.
	rb = RemainingBalance(dec.FromInt(1200), dec.Zero, 12, 5, dec.Zero)
	assert.Equal(t, "700", rb.String())
}

func TestAnnuityFutureValueFactor(t *testing.T) {
	assert.Equal(t, "12", AnnuityFutureValueFactor(dec.Zero, 12).String())

	f := AnnuityFutureValueFactor(dec.MustParse("0.005"), 12)
	assert.Equal(t, "12.34", dec.Cents(f).StringFixed(2))
}

func TestCompoundedGrowth(t *testing.T) {
	assert.True(t, CompoundedGrowth(dec.Zero, 12).IsZero())
	assert.True(t, CompoundedGrowth(dec.MustParse("0.01"), 0).IsZero())

	g := CompoundedGrowth(dec.MustParse("0.005"), 12)
	assert.Equal(t, "0.0617", dec.Round(g, 4, dec.HalfUp).StringFixed(4))
}

func TestAnnualizedProfitability(t *testing.T) {
	start := dates.New(2024, time.January, 1)
	maturity := dates.New(2024, time.December, 31)

	p := AnnualizedProfitability(dec.MustParse("0.10"), start, maturity, nil, nil)
	assert.Equal(t, "0.1", dec.Round(p, 4, dec.HalfUp).String())

	// Late phase accrues at the late rate.
	late := dec.MustParse("0.12")
	ext := dates.New(2025, time.June, 30)
	p = AnnualizedProfitability(dec.MustParse("0.10"), start, maturity, &late, &ext)
	assert.True(t, p.GreaterThan(dec.MustParse("0.1")))
}
