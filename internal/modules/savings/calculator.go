// Package savings projects accumulation plans and retirement drawdowns. A
// request carries one or more scenarios sharing the same base amount,
// horizon and periodicity; each scenario differs in market performance and
// in which variable is unknown (contribution, target or horizon).
package savings

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dec"
)

// Periodicity is the contribution and revaluation cadence.
type Periodicity string

const (
	PeriodicityMonthly      Periodicity = "MONTHLY"
	PeriodicityQuarterly    Periodicity = "QUARTERLY"
	PeriodicitySemiannually Periodicity = "SEMIANNUALLY"
	PeriodicityYearly       Periodicity = "YEARLY"
)

// PeriodsPerYear returns how many periods the cadence fits in a year, or 0
// for an unknown value.
func (p Periodicity) PeriodsPerYear() int {
	switch p {
	case PeriodicityMonthly:
		return 12
	case PeriodicityQuarterly:
		return 4
	case PeriodicitySemiannually:
		return 2
	case PeriodicityYearly:
		return 1
	default:
		return 0
	}
}

// horizonCapYears bounds the implied-horizon search when no explicit term
// is given.
const horizonCapYears = 200

// Request describes a savings calculation.
type Request struct {
	BaseAmount  *decimal.Decimal   `json:"base_amount"`
	Years       *int               `json:"years,omitempty"`
	Periodicity Periodicity        `json:"periodicity"`
	Scenarios   []ScenarioRequest  `json:"scenarios"`
	Retirement  *RetirementRequest `json:"retirement,omitempty"`
}

// ScenarioRequest is one projection variant. AnnualMarketPerformance is
// required; contribution and target are each optional and solved for when
// absent.
type ScenarioRequest struct {
	ID                      string           `json:"id"`
	AnnualMarketPerformance *decimal.Decimal `json:"annual_market_performance"`
	PeriodicContribution    *decimal.Decimal `json:"periodic_contribution,omitempty"`
	TargetAmount            *decimal.Decimal `json:"target_amount,omitempty"`
}

// RetirementRequest describes the drawdown phase following accumulation.
type RetirementRequest struct {
	WithdrawalAmount *decimal.Decimal `json:"withdrawal_amount,omitempty"`
	WithdrawalYears  *int             `json:"withdrawal_years,omitempty"`
}

// Result carries one projection per requested scenario.
type Result struct {
	Scenarios []ScenarioResult `json:"scenarios"`
}

// ScenarioResult is the projection of a single scenario.
type ScenarioResult struct {
	ScenarioID              string            `json:"scenario_id"`
	AnnualMarketPerformance decimal.Decimal   `json:"annual_market_performance"`
	PeriodicContribution    decimal.Decimal   `json:"periodic_contribution"`
	AccumulationPeriods     []PeriodEntry     `json:"accumulation_periods"`
	TotalContributions      decimal.Decimal   `json:"total_contributions"`
	TotalRevaluation        decimal.Decimal   `json:"total_revaluation"`
	FinalBalance            decimal.Decimal   `json:"final_balance"`
	Retirement              *RetirementResult `json:"retirement,omitempty"`
}

// PeriodEntry is one accumulation step.
type PeriodEntry struct {
	PeriodIndex      int             `json:"period_index"`
	Contributed      decimal.Decimal `json:"contributed"`
	TotalContributed decimal.Decimal `json:"total_contributed"`
	Revaluation      decimal.Decimal `json:"revaluation"`
	TotalRevaluation decimal.Decimal `json:"total_revaluation"`
	TotalInvested    decimal.Decimal `json:"total_invested"`
	Balance          decimal.Decimal `json:"balance"`
}

// RetirementResult is the drawdown projection.
type RetirementResult struct {
	WithdrawalAmount decimal.Decimal         `json:"withdrawal_amount"`
	DurationPeriods  int                     `json:"duration_periods"`
	DurationYears    decimal.Decimal         `json:"duration_years"`
	TotalWithdrawn   decimal.Decimal         `json:"total_withdrawn"`
	Periods          []RetirementPeriodEntry `json:"periods"`
}

// RetirementPeriodEntry is one drawdown step.
type RetirementPeriodEntry struct {
	PeriodIndex    int             `json:"period_index"`
	Withdrawal     decimal.Decimal `json:"withdrawal"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	Revaluation    decimal.Decimal `json:"revaluation"`
	Balance        decimal.Decimal `json:"balance"`
}

var one = decimal.NewFromInt(1)

// Calculate runs every scenario of the request.
func Calculate(req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}

	base := decimal.Zero
	if req.BaseAmount != nil {
		base = *req.BaseAmount
	}

	scenarios := make([]ScenarioResult, 0, len(req.Scenarios))
	for _, raw := range req.Scenarios {
		scenario, err := normalizeScenario(req, base, raw)
		if err != nil {
			return Result{}, err
		}

		var periods int
		if req.Years != nil && *req.Years > 0 {
			periods = *req.Years * req.Periodicity.PeriodsPerYear()
		} else {
			periods, err = impliedPeriods(req, base, scenario)
			if err != nil {
				return Result{}, err
			}
		}

		scenarios = append(scenarios, runScenario(req, base, scenario, periods))
	}
	return Result{Scenarios: scenarios}, nil
}

// normalized is a scenario with every unknown resolved.
type normalized struct {
	id           string
	annualRate   decimal.Decimal
	rate         decimal.Decimal
	contribution decimal.Decimal
	target       decimal.Decimal
	hadTarget    bool
}

// normalizeScenario fills in the missing variable: a retirement-only
// scenario gets its target and contribution from the drawdown plan, a
// target-only scenario gets its contribution solved over the horizon, and a
// contribution-only scenario runs as-is.
func normalizeScenario(req Request, base decimal.Decimal, raw ScenarioRequest) (normalized, error) {
	s := normalized{
		id:         raw.ID,
		annualRate: *raw.AnnualMarketPerformance,
		rate:       periodRate(*raw.AnnualMarketPerformance, req.Periodicity),
	}
	contribution := raw.PeriodicContribution
	target := raw.TargetAmount

	if target == nil && contribution == nil && req.Retirement != nil &&
		req.Retirement.WithdrawalAmount != nil && req.Retirement.WithdrawalYears != nil {
		if t := retirementTargetBalance(s.rate, *req.Retirement, req.Periodicity); t != nil {
			target = t
			c := solveRetirementContribution(req, base, s.rate)
			contribution = &c
		}
	}

	if contribution == nil {
		if target == nil {
			zero := decimal.Zero
			contribution = &zero
		} else {
			horizon := 0
			if req.Years != nil && *req.Years > 0 {
				horizon = *req.Years * req.Periodicity.PeriodsPerYear()
			} else {
				horizon = solvePeriodsForTarget(req, base, s.rate, decimal.Zero, *target)
			}
			if horizon <= 0 {
				return normalized{}, &domain.CalculationInputError{
					Reason: "years required to solve periodic contribution",
				}
			}
			c := solveRequiredContribution(base, *target, s.rate, horizon)
			contribution = &c
		}
	}

	s.contribution = *contribution
	if target != nil {
		s.target = *target
		s.hadTarget = true
	}
	return s, nil
}

func impliedPeriods(req Request, base decimal.Decimal, s normalized) (int, error) {
	if s.hadTarget {
		if implied := solvePeriodsForTarget(req, base, s.rate, s.contribution, s.target); implied > 0 {
			return implied, nil
		}
	}
	return 0, &domain.CalculationInputError{
		Reason: "years must be provided or derivable from scenario target and contribution",
	}
}

// solvePeriodsForTarget simulates period by period until the balance meets
// the target, bounded by the horizon cap. Returns 0 when unreachable.
func solvePeriodsForTarget(req Request, base, rate, contribution, target decimal.Decimal) int {
	if rate.IsZero() && contribution.IsZero() {
		return 0
	}
	limit := horizonCapYears * req.Periodicity.PeriodsPerYear()
	balance := base
	periods := 0
	for balance.LessThan(target) && periods < limit {
		balance = balance.Add(contribution)
		balance = balance.Add(balance.Mul(rate))
		periods++
	}
	if balance.LessThan(target) {
		return 0
	}
	return periods
}

// solveRequiredContribution solves C from
// target - base*(1+r)^n = C * ((1+r)^n - 1)/r, straight division when r=0.
func solveRequiredContribution(base, target, rate decimal.Decimal, periods int) decimal.Decimal {
	if periods <= 0 {
		return decimal.Zero
	}
	growth, _ := dec.PowInt(one.Add(rate), periods)
	remaining := target.Sub(base.Mul(growth))
	if remaining.Sign() <= 0 {
		return decimal.Zero
	}
	if rate.IsZero() {
		return dec.Cents(remaining.Div(dec.FromInt(int64(periods))))
	}
	annuity := growth.Sub(one).Div(rate)
	return dec.Cents(remaining.Div(annuity))
}

// retirementTargetBalance is the balance needed at the start of drawdown to
// sustain the withdrawals, an annuity-due present value.
func retirementTargetBalance(rate decimal.Decimal, r RetirementRequest, p Periodicity) *decimal.Decimal {
	if r.WithdrawalAmount == nil || r.WithdrawalYears == nil || *r.WithdrawalYears <= 0 {
		return nil
	}
	periods := *r.WithdrawalYears * p.PeriodsPerYear()
	if periods <= 0 {
		return nil
	}
	amount := *r.WithdrawalAmount
	if rate.IsZero() {
		t := dec.Cents(amount.Mul(dec.FromInt(int64(periods))))
		return &t
	}
	inv, _ := dec.PowInt(one.Add(rate), -periods)
	discount := one.Sub(inv)
	if discount.IsZero() {
		t := dec.Cents(amount.Mul(dec.FromInt(int64(periods))))
		return &t
	}
	t := dec.Cents(amount.Mul(discount).Div(rate).Mul(one.Add(rate)))
	return &t
}

// solveRetirementContribution finds the contribution whose full
// accumulate-then-drawdown cycle ends at zero, via a closed-form estimate
// refined by bisection.
func solveRetirementContribution(req Request, base, rate decimal.Decimal) decimal.Decimal {
	if req.Retirement == nil || req.Retirement.WithdrawalAmount == nil ||
		req.Retirement.WithdrawalYears == nil || req.Years == nil || *req.Years <= 0 {
		return decimal.Zero
	}
	perYear := req.Periodicity.PeriodsPerYear()
	accumulation := *req.Years * perYear
	drawdown := *req.Retirement.WithdrawalYears * perYear
	withdrawal := *req.Retirement.WithdrawalAmount

	estimate := estimateRetirementContribution(base, rate, accumulation, withdrawal, drawdown)
	refined := refineContribution(base, rate, accumulation, withdrawal, drawdown, estimate)
	return dec.Cents(refined)
}

func estimateRetirementContribution(base, rate decimal.Decimal, accumulation int, withdrawal decimal.Decimal, drawdown int) decimal.Decimal {
	if rate.IsZero() {
		needed := withdrawal.Mul(dec.FromInt(int64(drawdown)))
		if needed.LessThanOrEqual(base) {
			return decimal.Zero
		}
		return needed.Sub(base).Div(dec.FromInt(int64(accumulation)))
	}
	growth, _ := dec.PowInt(one.Add(rate), accumulation)
	baseAtRetirement := base.Mul(growth)
	inv, _ := dec.PowInt(one.Add(rate), -drawdown)
	required := withdrawal.Mul(one.Sub(inv)).Div(rate).Mul(one.Add(rate))
	if required.LessThanOrEqual(baseAtRetirement) {
		return decimal.Zero
	}
	annuity := growth.Sub(one).Div(rate)
	return required.Sub(baseAtRetirement).Div(annuity)
}

func refineContribution(base, rate decimal.Decimal, accumulation int, withdrawal decimal.Decimal, drawdown int, estimate decimal.Decimal) decimal.Decimal {
	low := decimal.Zero
	high := estimate.Mul(decimal.NewFromInt(3))
	if high.IsZero() {
		high = withdrawal.Mul(decimal.NewFromInt(2))
	}
	tolerance := dec.MustParse("0.01")
	two := decimal.NewFromInt(2)
	for i := 0; i < 100; i++ {
		mid := low.Add(high).Div(two)
		final := simulateFullCycle(base, rate, accumulation, mid, withdrawal, drawdown)
		if final.Abs().LessThan(tolerance) {
			return mid
		}
		if final.Sign() > 0 {
			high = mid
		} else {
			low = mid
		}
	}
	return low.Add(high).Div(two)
}

func simulateFullCycle(base, rate decimal.Decimal, accumulation int, contribution, withdrawal decimal.Decimal, drawdown int) decimal.Decimal {
	balance := base
	for i := 0; i < accumulation; i++ {
		balance = balance.Add(contribution)
		balance = balance.Add(dec.Cents(balance.Mul(rate)))
	}
	return simulateDrawdown(balance, rate, drawdown, withdrawal)
}

// simulateDrawdown returns the balance left after the withdrawal phase; a
// negative result measures how far the plan falls short.
func simulateDrawdown(balance, rate decimal.Decimal, periods int, withdrawal decimal.Decimal) decimal.Decimal {
	current := balance
	for i := 1; i <= periods; i++ {
		if current.Sign() <= 0 {
			remaining := periods - i + 1
			return withdrawal.Mul(dec.FromInt(int64(remaining))).Neg()
		}
		w := dec.Min(withdrawal, current)
		current = current.Sub(w)
		if i < periods && current.Sign() > 0 {
			current = current.Add(dec.Cents(current.Mul(rate)))
		}
	}
	return current
}

func runScenario(req Request, base decimal.Decimal, s normalized, periods int) ScenarioResult {
	entries := make([]PeriodEntry, 0, periods)
	balance := base
	totalContrib := decimal.Zero
	totalRevaluation := decimal.Zero
	for idx := 1; idx <= periods; idx++ {
		balance = balance.Add(s.contribution)
		totalContrib = totalContrib.Add(s.contribution)
		revaluation := dec.Cents(balance.Mul(s.rate))
		balance = balance.Add(revaluation)
		totalRevaluation = totalRevaluation.Add(revaluation)
		entries = append(entries, PeriodEntry{
			PeriodIndex:      idx,
			Contributed:      dec.Cents(s.contribution),
			TotalContributed: dec.Cents(totalContrib),
			Revaluation:      revaluation,
			TotalRevaluation: dec.Cents(totalRevaluation),
			TotalInvested:    dec.Cents(base.Add(totalContrib)),
			Balance:          dec.Cents(balance),
		})
	}

	var retirement *RetirementResult
	if req.Retirement != nil {
		retirement = computeRetirement(*req.Retirement, balance, s.rate, req.Periodicity)
	}

	return ScenarioResult{
		ScenarioID:              s.id,
		AnnualMarketPerformance: s.annualRate,
		PeriodicContribution:    dec.Cents(s.contribution),
		AccumulationPeriods:     entries,
		TotalContributions:      dec.Cents(totalContrib),
		TotalRevaluation:        dec.Cents(totalRevaluation),
		FinalBalance:            dec.Cents(balance),
		Retirement:              retirement,
	}
}

func computeRetirement(r RetirementRequest, balance, rate decimal.Decimal, p Periodicity) *RetirementResult {
	perYear := p.PeriodsPerYear()

	var periodsTarget *int
	if r.WithdrawalYears != nil {
		n := *r.WithdrawalYears * perYear
		periodsTarget = &n
	}

	var amount decimal.Decimal
	switch {
	case r.WithdrawalAmount != nil:
		amount = *r.WithdrawalAmount
	case periodsTarget != nil && *periodsTarget > 0:
		amount = solveWithdrawalAmount(balance, rate, *periodsTarget)
	}

	safetyLimit := 100 * perYear
	if periodsTarget != nil {
		safetyLimit = *periodsTarget
	}

	entries := []RetirementPeriodEntry{}
	current := balance
	totalWithdrawn := decimal.Zero
	for index := 1; current.Sign() > 0 && index <= safetyLimit; index++ {
		withdrawal := dec.Min(amount, current)
		current = current.Sub(withdrawal)
		totalWithdrawn = totalWithdrawn.Add(withdrawal)
		revaluation := dec.Cents(current.Mul(rate))
		current = current.Add(revaluation)
		entries = append(entries, RetirementPeriodEntry{
			PeriodIndex:    index,
			Withdrawal:     dec.Cents(withdrawal),
			TotalWithdrawn: dec.Cents(totalWithdrawn),
			Revaluation:    revaluation,
			Balance:        dec.Cents(current),
		})
		if amount.IsZero() {
			break
		}
	}

	durationYears := decimal.Zero
	if len(entries) > 0 {
		durationYears = dec.FromInt(int64(len(entries))).Div(dec.FromInt(int64(perYear)))
	}
	return &RetirementResult{
		WithdrawalAmount: dec.Cents(amount),
		DurationPeriods:  len(entries),
		DurationYears:    dec.Cents(durationYears),
		TotalWithdrawn:   dec.Cents(totalWithdrawn),
		Periods:          entries,
	}
}

// solveWithdrawalAmount backs the sustainable withdrawal out of the balance
// via the annuity-due present-value factor.
func solveWithdrawalAmount(balance, rate decimal.Decimal, periods int) decimal.Decimal {
	if periods <= 0 {
		return decimal.Zero
	}
	if rate.IsZero() {
		return dec.Cents(balance.Div(dec.FromInt(int64(periods))))
	}
	inv, _ := dec.PowInt(one.Add(rate), -periods)
	discount := one.Sub(inv)
	if discount.IsZero() {
		return dec.Cents(balance.Div(dec.FromInt(int64(periods))))
	}
	pvFactor := discount.Div(rate).Mul(one.Add(rate))
	return dec.Cents(balance.Div(pvFactor))
}

func periodRate(annual decimal.Decimal, p Periodicity) decimal.Decimal {
	periods := p.PeriodsPerYear()
	if periods <= 0 {
		return decimal.Zero
	}
	return annual.Div(dec.FromInt(int64(periods)))
}

func validate(req Request) error {
	var missing []string
	if req.BaseAmount == nil {
		missing = append(missing, "base_amount")
	}
	if req.Years != nil && *req.Years <= 0 {
		missing = append(missing, "years")
	}
	if req.Periodicity.PeriodsPerYear() == 0 {
		missing = append(missing, "periodicity")
	}
	if len(req.Scenarios) == 0 {
		missing = append(missing, "scenarios")
	}
	if len(missing) > 0 {
		return domain.NewMissingFields(missing...)
	}
	for _, s := range req.Scenarios {
		if s.AnnualMarketPerformance == nil {
			return domain.NewMissingFields(
				fmt.Sprintf("scenario:%s:annual_market_performance", s.ID))
		}
	}
	if req.Retirement != nil {
		if req.Retirement.WithdrawalAmount == nil && req.Retirement.WithdrawalYears == nil {
			return domain.NewMissingFields("retirement.withdrawal_amount | retirement.withdrawal_years")
		}
	}
	return nil
}
