package formulas

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/pkg/dates"
)

// AnnualizedProfitability converts a nominal interest rate over the life of a
// fixed-term investment into the fraction of principal earned by maturity:
// rate * days(start, maturity) / 365. When a late phase applies (extended
// maturity with its own rate) the late days accrue at the late rate.
func AnnualizedProfitability(rate decimal.Decimal, start, maturity dates.Date, lateRate *decimal.Decimal, extendedMaturity *dates.Date) decimal.Decimal {
	daysInYear := decimal.NewFromInt(365)
	days := dates.DaysBetween(start, maturity)
	if days < 0 {
		days = 0
	}
	total := rate.Mul(decimal.NewFromInt(int64(days))).Div(daysInYear)
	if lateRate != nil && extendedMaturity != nil && extendedMaturity.After(maturity) {
		lateDays := dates.DaysBetween(maturity, *extendedMaturity)
		total = total.Add(lateRate.Mul(decimal.NewFromInt(int64(lateDays))).Div(daysInYear))
	}
	return total
}
