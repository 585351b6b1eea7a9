// Package loans computes amortization figures for mortgage and consumer
// loans under FIXED, VARIABLE and MIXED interest regimes. Rates are annual
// nominal; installments are monthly, aligned to the start date's day of
// month. All outputs are rounded to cents half-up.
package loans

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
	"github.com/aristath/moneta/pkg/dec"
	"github.com/aristath/moneta/pkg/formulas"
)

// CalculationParams describes a loan to evaluate. At least one of LoanAmount
// and PrincipalOutstanding must be present. For VARIABLE and MIXED regimes
// the effective annual rate is InterestRate + EuriborRate; MIXED switches
// from the fixed rate after FixedYears from Start.
type CalculationParams struct {
	LoanAmount           *decimal.Decimal    `json:"loan_amount,omitempty"`
	PrincipalOutstanding *decimal.Decimal    `json:"principal_outstanding,omitempty"`
	Start                dates.Date          `json:"start"`
	End                  dates.Date          `json:"end"`
	InterestRate         decimal.Decimal     `json:"interest_rate"`
	InterestType         domain.InterestType `json:"interest_type"`
	EuriborRate          *decimal.Decimal    `json:"euribor_rate,omitempty"`
	FixedYears           *int                `json:"fixed_years,omitempty"`
}

// CalculationResult carries the current installment breakdown.
type CalculationResult struct {
	MonthlyPayment       decimal.Decimal `json:"current_monthly_payment"`
	MonthlyInterests     decimal.Decimal `json:"current_monthly_interests"`
	PrincipalOutstanding decimal.Decimal `json:"principal_outstanding"`
	InstallmentDate      dates.Date      `json:"installment_date"`
}

// Calculate evaluates the loan as of the given day.
func Calculate(p CalculationParams, today dates.Date) (CalculationResult, error) {
	if err := validate(p); err != nil {
		return CalculationResult{}, err
	}

	monthlyRate := formulas.MonthlyRate(annualRateAt(p, today))
	nextDate := nextInstallmentDate(p, today)

	if p.InterestType == domain.InterestFixed && p.LoanAmount != nil {
		return fixedFromSchedule(p, monthlyRate, nextDate), nil
	}
	if p.InterestType == domain.InterestFixed && p.PrincipalOutstanding != nil {
		return fixedFromOutstanding(p, monthlyRate, nextDate), nil
	}
	return generalPath(p, monthlyRate, nextDate, today), nil
}

// fixedFromSchedule derives everything from the original constant-payment
// schedule: N installments from start to end, first payment one month in.
func fixedFromSchedule(p CalculationParams, r decimal.Decimal, next dates.Date) CalculationResult {
	totalMonths := atLeastOne(dates.FullMonthsBetween(p.Start, p.End))
	paymentsMade := dates.FullMonthsBetween(p.Start, next) - 1
	if paymentsMade < 0 {
		paymentsMade = 0
	}

	payment := formulas.AmortizingPayment(*p.LoanAmount, r, totalMonths)
	outstanding := formulas.RemainingBalance(*p.LoanAmount, r, totalMonths, paymentsMade, payment)
	if p.PrincipalOutstanding != nil {
		outstanding = *p.PrincipalOutstanding
	}

	return CalculationResult{
		MonthlyPayment:       dec.Cents(payment),
		MonthlyInterests:     dec.Cents(outstanding.Mul(r)),
		PrincipalOutstanding: dec.Cents(outstanding),
		InstallmentDate:      next,
	}
}

// fixedFromOutstanding recovers the original principal from the remaining
// balance identity RB_k = P*(1+r)^k - A*((1+r)^k - 1)/r, then re-derives the
// constant payment A = P*r/D with D = 1 - (1+r)^-N.
func fixedFromOutstanding(p CalculationParams, r decimal.Decimal, next dates.Date) CalculationResult {
	totalMonths := atLeastOne(dates.FullMonthsBetween(p.Start, p.End))
	paymentsMade := dates.FullMonthsBetween(p.Start, next) - 1
	if paymentsMade < 0 {
		paymentsMade = 0
	}
	outstanding := *p.PrincipalOutstanding

	if r.IsZero() {
		// Without interest the original principal cannot be recovered from
		// the balance alone; spread it over the remaining installments.
		remaining := atLeastOne(dates.FullMonthsBetween(next, p.End))
		payment := outstanding.Div(dec.FromInt(int64(remaining)))
		return CalculationResult{
			MonthlyPayment:       dec.Cents(payment),
			MonthlyInterests:     decimal.Zero,
			PrincipalOutstanding: dec.Cents(outstanding),
			InstallmentDate:      next,
		}
	}

	one := decimal.NewFromInt(1)
	discount := formulas.AnnuityDiscount(r, totalMonths)
	factor, _ := dec.PowInt(one.Add(r), paymentsMade)
	coeff := factor.Sub(factor.Sub(one).Div(discount))

	var payment decimal.Decimal
	if coeff.IsZero() {
		remaining := atLeastOne(dates.FullMonthsBetween(next, p.End))
		payment = formulas.AmortizingPayment(outstanding, r, remaining)
	} else {
		principal := outstanding.Div(coeff)
		payment = principal.Mul(r).Div(discount)
	}

	return CalculationResult{
		MonthlyPayment:       dec.Cents(payment),
		MonthlyInterests:     dec.Cents(outstanding.Mul(r)),
		PrincipalOutstanding: dec.Cents(outstanding),
		InstallmentDate:      next,
	}
}

// generalPath covers VARIABLE and MIXED loans. The outstanding balance is
// either given (today's balance) or simulated month by month from start,
// recomputing the payment whenever the rate regime changes.
func generalPath(p CalculationParams, r decimal.Decimal, next dates.Date, today dates.Date) CalculationResult {
	var outstanding decimal.Decimal
	if p.PrincipalOutstanding != nil {
		outstanding = *p.PrincipalOutstanding
	} else {
		outstanding = simulateOutstanding(p, today)
	}

	// The end installment counts for VARIABLE/MIXED but not for FIXED when
	// the balance was supplied; simulated balances always include it. The
	// asymmetry is inherited behavior.
	var remaining int
	if p.PrincipalOutstanding != nil && p.InterestType == domain.InterestFixed {
		remaining = atLeastOne(dates.FullMonthsBetween(next, p.End))
	} else {
		remaining = atLeastOne(dates.FullMonthsBetween(next, p.End) + 1)
	}

	if r.IsZero() {
		payment := outstanding.Div(dec.FromInt(int64(remaining)))
		return CalculationResult{
			MonthlyPayment:       dec.Cents(payment),
			MonthlyInterests:     decimal.Zero,
			PrincipalOutstanding: dec.Cents(outstanding),
			InstallmentDate:      next,
		}
	}

	payment := formulas.AmortizingPayment(outstanding, r, remaining)
	return CalculationResult{
		MonthlyPayment:       dec.Cents(payment),
		MonthlyInterests:     dec.Cents(outstanding.Mul(r)),
		PrincipalOutstanding: dec.Cents(outstanding),
		InstallmentDate:      next,
	}
}

// simulateOutstanding replays the amortization from start to today. Each
// month pays interest on the current balance plus the principal portion of
// the regime's amortizing payment over the months left.
func simulateOutstanding(p CalculationParams, today dates.Date) decimal.Decimal {
	outstanding := *p.LoanAmount
	if !today.After(p.Start) {
		return outstanding
	}

	elapsed := dates.MonthsBetween(p.Start, today)
	current := p.Start
	for m := 0; m < elapsed; m++ {
		monthly := formulas.MonthlyRate(annualRateAt(p, current))
		monthsLeft := atLeastOne(dates.FullMonthsBetween(current, p.End))

		var payment, interest decimal.Decimal
		if monthly.IsZero() {
			payment = dec.Cents(outstanding.Div(dec.FromInt(int64(monthsLeft))))
		} else {
			payment = dec.Cents(formulas.AmortizingPayment(outstanding, monthly, monthsLeft))
			interest = dec.Cents(outstanding.Mul(monthly))
		}

		outstanding = dec.ClampZero(outstanding.Sub(payment.Sub(interest)))
		current = current.AddMonths(1)
		if outstanding.IsZero() {
			break
		}
	}
	return outstanding
}

// annualRateAt resolves the effective annual rate in force on a given day.
func annualRateAt(p CalculationParams, when dates.Date) decimal.Decimal {
	switch p.InterestType {
	case domain.InterestFixed:
		return p.InterestRate
	case domain.InterestVariable:
		return p.InterestRate.Add(*p.EuriborRate)
	default:
		fixedEnd := p.Start.AddYears(*p.FixedYears)
		if when.Before(fixedEnd) {
			return p.InterestRate
		}
		return p.InterestRate.Add(*p.EuriborRate)
	}
}

// nextInstallmentDate walks forward from start one month at a time until it
// reaches today, capped at the end date.
func nextInstallmentDate(p CalculationParams, today dates.Date) dates.Date {
	if !today.After(p.Start) {
		return p.Start
	}
	candidate := p.Start
	for candidate.Before(today) && candidate.Before(p.End) {
		candidate = candidate.AddMonths(1)
	}
	return dates.Min(candidate, p.End)
}

func validate(p CalculationParams) error {
	var missing []string
	if p.LoanAmount == nil && p.PrincipalOutstanding == nil {
		missing = append(missing, "loan_amount | principal_outstanding")
	}
	if p.Start.IsZero() {
		missing = append(missing, "start")
	}
	if p.End.IsZero() {
		missing = append(missing, "end")
	}
	if p.InterestType == domain.InterestVariable || p.InterestType == domain.InterestMixed {
		if p.EuriborRate == nil {
			missing = append(missing, "euribor_rate")
		}
	}
	if p.InterestType == domain.InterestMixed && p.FixedYears == nil {
		missing = append(missing, "fixed_years")
	}
	if len(missing) > 0 {
		return domain.NewMissingFields(missing...)
	}
	if !p.End.After(p.Start) {
		return &domain.InvalidFieldError{Field: "end", Reason: "must be after start"}
	}
	return nil
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
