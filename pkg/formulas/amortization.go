// Package formulas holds the pure financial math shared by the loan, savings
// and forecast engines. Everything operates on exact decimals.
package formulas

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/pkg/dec"
)

var one = decimal.NewFromInt(1)

// MonthlyRate converts an annual nominal rate to its monthly rate.
func MonthlyRate(annual decimal.Decimal) decimal.Decimal {
	return annual.Div(decimal.NewFromInt(12))
}

// AmortizingPayment computes the constant installment A for principal P at
// periodic rate r over n installments: A = P*r / (1 - (1+r)^-n).
// A zero rate degrades to straight-line P/n.
func AmortizingPayment(principal, rate decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return principal
	}
	if rate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n)))
	}
	denom := AnnuityDiscount(rate, n)
	if denom.IsZero() {
		return principal
	}
	return principal.Mul(rate).Div(denom)
}

// AnnuityDiscount returns 1 - (1+r)^-n.
func AnnuityDiscount(rate decimal.Decimal, n int) decimal.Decimal {
	inv, err := dec.PowInt(one.Add(rate), -n)
	if err != nil {
		return decimal.Zero
	}
	return one.Sub(inv)
}

// AnnuityFutureValueFactor returns ((1+r)^n - 1) / r, the future value of a
// unit contribution per period. Zero rate degrades to n.
func AnnuityFutureValueFactor(rate decimal.Decimal, n int) decimal.Decimal {
	if rate.IsZero() {
		return decimal.NewFromInt(int64(n))
	}
	growth, _ := dec.PowInt(one.Add(rate), n)
	return growth.Sub(one).Div(rate)
}

// RemainingBalance computes the outstanding principal after k of n payments,
// RB_k = P*(1+r)^k - A*((1+r)^k - 1)/r, never below zero. When A is zero it
// is derived from P, r and n.
func RemainingBalance(principal, rate decimal.Decimal, n, k int, payment decimal.Decimal) decimal.Decimal {
	if k <= 0 {
		return principal
	}
	if k >= n {
		return decimal.Zero
	}
	if rate.IsZero() {
		if payment.IsZero() {
			payment = principal.Div(decimal.NewFromInt(int64(n)))
		}
		return dec.ClampZero(principal.Sub(payment.Mul(decimal.NewFromInt(int64(k)))))
	}
	if payment.IsZero() {
		payment = AmortizingPayment(principal, rate, n)
	}
	factor, _ := dec.PowInt(one.Add(rate), k)
	return dec.ClampZero(principal.Mul(factor).Sub(payment.Mul(factor.Sub(one)).Div(rate)))
}

// CompoundedGrowth returns (1 + rate)^periods - 1, the total growth factor of
// a periodic rate over the horizon. Non-positive inputs yield zero.
func CompoundedGrowth(rate decimal.Decimal, periods int) decimal.Decimal {
	if periods <= 0 || rate.Sign() <= 0 {
		return decimal.Zero
	}
	v := one
	step := one.Add(rate)
	for i := 0; i < periods; i++ {
		v = v.Mul(step)
	}
	return v.Sub(one)
}
