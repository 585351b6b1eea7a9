package forecast

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

var twelve = decimal.NewFromInt(12)

// propertyEquity projects one property: the market value compounds by the
// annual appreciation month over month while every loan amortizes under its
// current regime rate.
func propertyEquity(property domain.RealEstate, today dates.Date, months int) PropertyEquity {
	marketNow := property.Valuation.EstimatedMarketValue
	if marketNow.Sign() < 0 {
		marketNow = decimal.Zero
	}
	marketTarget := appreciate(marketNow, months, property.Valuation.AnnualAppreciation)

	outstandingNow := decimal.Zero
	outstandingTarget := decimal.Zero
	for _, link := range property.Flows {
		if link.FlowSubtype != domain.REFlowLoan {
			continue
		}
		payload, err := link.LoanPayload()
		if err != nil || payload == nil {
			continue
		}
		now := payload.PrincipalOutstanding
		if now.Sign() < 0 {
			now = decimal.Zero
		}
		outstandingNow = outstandingNow.Add(now)

		var payment *decimal.Decimal
		var start dates.Date
		if link.Flow != nil {
			payment = &link.Flow.Amount
			start = link.Flow.Since
		}
		outstandingTarget = outstandingTarget.Add(
			simulateLoanOutstanding(now, payment, start, payload, months, today))
	}

	return PropertyEquity{
		ID:                           property.ID,
		EquityNow:                    marketNow.Sub(outstandingNow),
		EquityAtTarget:               marketTarget.Sub(outstandingTarget),
		PrincipalOutstandingNow:      outstandingNow,
		PrincipalOutstandingAtTarget: outstandingTarget,
		Currency:                     property.Currency,
	}
}

func appreciate(value decimal.Decimal, months int, annual *decimal.Decimal) decimal.Decimal {
	if annual == nil || months <= 0 {
		return value
	}
	factor := one.Add(annual.Div(twelve))
	for i := 0; i < months; i++ {
		value = value.Mul(factor)
	}
	return value
}

// simulateLoanOutstanding walks the amortization month by month. Negative
// rates and negative amortization are clamped to zero, and the principal
// payment never exceeds the remaining balance.
func simulateLoanOutstanding(outstanding decimal.Decimal, payment *decimal.Decimal, start dates.Date, payload *domain.RealEstateLoanPayload, months int, today dates.Date) decimal.Decimal {
	if months <= 0 || payment == nil || start.IsZero() {
		return outstanding
	}
	current := today
	for i := 0; i < months; i++ {
		annual := loanAnnualRate(payload, start, current)
		if annual.Sign() < 0 {
			annual = decimal.Zero
		}
		interest := outstanding.Mul(annual.Div(twelve))
		principal := payment.Sub(interest)
		if principal.Sign() < 0 {
			principal = decimal.Zero
		}
		if principal.GreaterThan(outstanding) {
			principal = outstanding
		}
		outstanding = outstanding.Sub(principal)
		current = current.AddMonths(1)
		if outstanding.IsZero() {
			break
		}
	}
	return outstanding
}

// loanAnnualRate resolves the regime rate in force at the given month.
func loanAnnualRate(payload *domain.RealEstateLoanPayload, start, current dates.Date) decimal.Decimal {
	euribor := decimal.Zero
	if payload.EuriborRate != nil {
		euribor = *payload.EuriborRate
	}
	switch payload.InterestType {
	case domain.InterestFixed:
		return payload.InterestRate
	case domain.InterestVariable:
		return payload.InterestRate.Add(euribor)
	default:
		if payload.FixedYears != nil && current.Before(start.AddYears(*payload.FixedYears)) {
			return payload.InterestRate
		}
		return payload.InterestRate.Add(euribor)
	}
}
