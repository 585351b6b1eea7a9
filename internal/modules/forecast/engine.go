// Package forecast projects the consolidated position to a future date:
// recurring and pending flows accumulate into per-currency cash deltas,
// standing contributions buy into their target products, maturing
// investments liquidate into preferred accounts, and property equity is
// projected through appreciation and loan amortization.
package forecast

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/modules/contributions"
	"github.com/aristath/moneta/pkg/dates"
	"github.com/aristath/moneta/pkg/formulas"
)

// Request selects the horizon and the optional market growth assumptions.
type Request struct {
	TargetDate                 dates.Date       `json:"target_date"`
	AvgAnnualMarketIncrease    *decimal.Decimal `json:"avg_annual_market_increase,omitempty"`
	AvgAnnualCryptoIncrease    *decimal.Decimal `json:"avg_annual_crypto_increase,omitempty"`
	AvgAnnualCommodityIncrease *decimal.Decimal `json:"avg_annual_commodity_increase,omitempty"`
}

// Input is everything the engine reads. Run never mutates it; positions are
// deep-copied into the working set.
type Input struct {
	Request

	Today           dates.Date
	Positions       map[uuid.UUID]domain.GlobalPosition
	PeriodicFlows   []domain.PeriodicFlow
	PendingFlows    []domain.PendingFlow
	Contributions   []domain.PeriodicContribution
	Properties      []domain.RealEstate
	CapitalGainsTax decimal.Decimal
}

// CashDelta is the projected net cash movement in one currency.
type CashDelta struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// PropertyEquity is the projected equity of one property.
type PropertyEquity struct {
	ID                           uuid.UUID       `json:"id"`
	EquityNow                    decimal.Decimal `json:"equity_now"`
	EquityAtTarget               decimal.Decimal `json:"equity_at_target"`
	PrincipalOutstandingNow      decimal.Decimal `json:"principal_outstanding_now"`
	PrincipalOutstandingAtTarget decimal.Decimal `json:"principal_outstanding_at_target"`
	Currency                     string          `json:"currency"`
}

// Result is the projected state at the target date.
type Result struct {
	TargetDate            dates.Date                          `json:"target_date"`
	Positions             map[uuid.UUID]domain.GlobalPosition `json:"positions"`
	CashDelta             []CashDelta                         `json:"cash_delta"`
	RealEstate            []PropertyEquity                    `json:"real_estate"`
	CryptoAppreciation    decimal.Decimal                     `json:"crypto_appreciation"`
	CommodityAppreciation decimal.Decimal                     `json:"commodity_appreciation"`
}

var one = decimal.NewFromInt(1)

// Run projects the input to the target date.
func Run(in Input) (*Result, error) {
	if in.TargetDate.IsZero() {
		return nil, domain.NewMissingFields("target_date")
	}
	if !in.TargetDate.After(in.Today) {
		return nil, &domain.InvalidFieldError{Field: "target_date", Reason: "must be in the future"}
	}

	working := make(map[uuid.UUID]domain.GlobalPosition, len(in.Positions))
	for id, pos := range in.Positions {
		working[id] = pos.Clone()
	}

	cash := map[string]decimal.Decimal{}
	flowCashDelta(in, cash)
	realEstateCashDelta(in, cash)

	months := dates.MonthsBetween(in.Today, in.TargetDate)
	if in.AvgAnnualMarketIncrease != nil && in.AvgAnnualMarketIncrease.Sign() > 0 {
		applyContributionsWithRevaluation(in, working, *in.AvgAnnualMarketIncrease, cash)
	} else {
		applyContributions(in, working, cash)
	}

	for id, pos := range working {
		liquidateMaturing(&pos, in.TargetDate, in.CapitalGainsTax, cash)
		pos.SyncFundPortfolios()
		working[id] = pos
	}

	equity := make([]PropertyEquity, 0, len(in.Properties))
	for _, property := range in.Properties {
		equity = append(equity, propertyEquity(property, in.Today, months))
	}

	deltas := make([]CashDelta, 0, len(cash))
	for currency, amount := range cash {
		deltas = append(deltas, CashDelta{Currency: currency, Amount: amount})
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Currency < deltas[j].Currency })

	return &Result{
		TargetDate:            in.TargetDate,
		Positions:             working,
		CashDelta:             deltas,
		RealEstate:            equity,
		CryptoAppreciation:    valueIncrease(months, in.AvgAnnualCryptoIncrease),
		CommodityAppreciation: valueIncrease(months, in.AvgAnnualCommodityIncrease),
	}, nil
}

// valueIncrease is the compounded monthly growth over the horizon.
func valueIncrease(months int, annual *decimal.Decimal) decimal.Decimal {
	if annual == nil || months <= 0 {
		return decimal.Zero
	}
	return formulas.CompoundedGrowth(annual.Div(decimal.NewFromInt(12)), months)
}

// flowCashDelta folds pending and unlinked periodic flows into the cash
// buckets: one occurrence per pending flow due before the target, counted
// occurrences for periodic ones.
func flowCashDelta(in Input, cash map[string]decimal.Decimal) {
	for _, pf := range in.PendingFlows {
		if !pf.Enabled {
			continue
		}
		when := in.Today
		if pf.Date != nil {
			when = *pf.Date
		}
		if when.After(in.TargetDate) {
			continue
		}
		cash[pf.Currency] = cash[pf.Currency].Add(signed(pf.Amount, pf.FlowType))
	}
	for _, f := range in.PeriodicFlows {
		if !f.Enabled || f.Linked {
			continue
		}
		count := countOccurrences(f.Since, f.Frequency, f.Until, in.Today, in.TargetDate)
		if count <= 0 {
			continue
		}
		total := signed(f.Amount.Mul(decimal.NewFromInt(int64(count))), f.FlowType)
		cash[f.Currency] = cash[f.Currency].Add(total)
	}
}

func signed(amount decimal.Decimal, t domain.FlowType) decimal.Decimal {
	if t == domain.FlowExpense {
		return amount.Neg()
	}
	return amount
}

// monthlyEquivalent normalizes a flow amount to one month for the rental
// tax computation.
func monthlyEquivalent(amount decimal.Decimal, freq domain.FlowFrequency) decimal.Decimal {
	switch freq {
	case domain.FreqDaily:
		return amount.Mul(decimal.NewFromInt(30))
	case domain.FreqWeekly:
		return amount.Mul(decimal.NewFromFloat(4.33))
	case domain.FreqBimonthly:
		return amount.Div(decimal.NewFromInt(2))
	case domain.FreqQuarterly:
		return amount.Div(decimal.NewFromInt(3))
	case domain.FreqFourMonthly:
		return amount.Div(decimal.NewFromInt(4))
	case domain.FreqSemiannual:
		return amount.Div(decimal.NewFromInt(6))
	case domain.FreqYearly:
		return amount.Div(decimal.NewFromInt(12))
	default:
		return amount
	}
}

// realEstateCashDelta adds each property's net monthly cash, taxes
// included, multiplied over the horizon.
func realEstateCashDelta(in Input, cash map[string]decimal.Decimal) {
	steps := dates.MonthsBetween(in.Today, in.TargetDate)
	if steps <= 0 {
		return
	}
	for _, property := range in.Properties {
		monthlyCosts := decimal.Zero
		monthlyIncomeGross := decimal.Zero
		monthlyLoanPayments := decimal.Zero
		monthlyLoanInterests := decimal.Zero
		deductibleCosts := decimal.Zero

		for _, link := range property.Flows {
			pf := link.Flow
			switch link.FlowSubtype {
			case domain.REFlowRent:
				if pf != nil {
					// tax baseline assumes monthly rent, no normalization
					monthlyIncomeGross = monthlyIncomeGross.Add(pf.Amount)
				}
			case domain.REFlowCost, domain.REFlowSupply:
				if pf != nil {
					monthly := monthlyEquivalent(pf.Amount, pf.Frequency)
					monthlyCosts = monthlyCosts.Add(monthly)
					if flagged, _ := link.Payload["tax_deductible"].(bool); flagged {
						deductibleCosts = deductibleCosts.Add(monthly)
					}
				}
			case domain.REFlowLoan:
				if pf != nil {
					monthlyLoanPayments = monthlyLoanPayments.Add(pf.Amount)
				}
				if payload, err := link.LoanPayload(); err == nil && payload != nil && payload.MonthlyInterests != nil {
					monthlyLoanInterests = monthlyLoanInterests.Add(*payload.MonthlyInterests)
				}
			}
		}

		vacancy := decimal.Zero
		marginal := decimal.Zero
		amortizations := decimal.Zero
		if rd := property.RentalData; rd != nil {
			if rd.VacancyRate != nil {
				vacancy = *rd.VacancyRate
			}
			if rd.MarginalTaxRate != nil {
				marginal = *rd.MarginalTaxRate
			}
			if rd.AmortizationsBase != nil {
				amortizations = rd.AmortizationsBase.Div(decimal.NewFromInt(12))
			}
		}
		adjusted := one.Sub(vacancy)
		if adjusted.Sign() < 0 {
			adjusted = decimal.Zero
		}
		monthlyIncome := monthlyIncomeGross.Mul(adjusted)

		deductible := deductibleCosts.Add(monthlyLoanInterests).Add(amortizations)
		taxableBase := monthlyIncome
		if taxableBase.Sign() < 0 {
			taxableBase = decimal.Zero
		}
		if deductible.GreaterThan(taxableBase) {
			deductible = taxableBase
		}
		taxable := monthlyIncome.Sub(deductible)
		if taxable.Sign() < 0 {
			taxable = decimal.Zero
		}
		if marginal.Sign() < 0 {
			marginal = decimal.Zero
		}
		taxes := taxable.Mul(marginal)
		if taxes.Sign() < 0 {
			taxes = decimal.Zero
		}

		net := monthlyIncome.Sub(monthlyCosts).Sub(monthlyLoanPayments).Sub(taxes).
			Mul(decimal.NewFromInt(int64(steps)))
		if !net.IsZero() {
			cash[property.Currency] = cash[property.Currency].Add(net)
		}
	}
}

// applyContributions executes every standing contribution due inside the
// horizon in one shot: the total buys into the target product and the same
// total leaves the cash bucket of the contribution's currency.
func applyContributions(in Input, working map[uuid.UUID]domain.GlobalPosition, cash map[string]decimal.Decimal) {
	for _, c := range in.Contributions {
		pos, ok := working[c.EntityID]
		if !ok {
			continue
		}
		occ := len(contributions.Upcoming(c, in.Today.AddDays(1), in.TargetDate))
		if occ <= 0 {
			continue
		}
		total := c.Amount.Mul(decimal.NewFromInt(int64(occ)))
		applyContribution(&pos, c.TargetType, c.Target, total)
		working[c.EntityID] = pos
		cash[c.Currency] = cash[c.Currency].Sub(total)
	}
}

// applyContributionsWithRevaluation steps month by month: contributions
// whose date falls inside the month execute first, then every stock and
// fund entry grows by the monthly market rate.
func applyContributionsWithRevaluation(in Input, working map[uuid.UUID]domain.GlobalPosition, annual decimal.Decimal, cash map[string]decimal.Decimal) {
	monthlyRate := annual.Div(decimal.NewFromInt(12))
	factor := one.Add(monthlyRate)

	type scheduled struct {
		contribution domain.PeriodicContribution
		dates        []dates.Date
	}
	byEntity := map[uuid.UUID][]scheduled{}
	for _, c := range in.Contributions {
		due := contributions.Upcoming(c, in.Today.AddDays(1), in.TargetDate)
		if len(due) > 0 {
			byEntity[c.EntityID] = append(byEntity[c.EntityID], scheduled{contribution: c, dates: due})
		}
	}

	steps := dates.MonthsBetween(in.Today, in.TargetDate)
	prev := in.Today
	for k := 1; k <= steps; k++ {
		boundary := in.Today.AddMonths(k)
		for id, pos := range working {
			for _, sc := range byEntity[id] {
				for _, d := range sc.dates {
					if d.After(prev) && !d.After(boundary) {
						applyContribution(&pos, sc.contribution.TargetType, sc.contribution.Target, sc.contribution.Amount)
						cash[sc.contribution.Currency] = cash[sc.contribution.Currency].Sub(sc.contribution.Amount)
					}
				}
			}
			revalueEquities(&pos, factor)
			working[id] = pos
		}
		prev = boundary
	}
}

func revalueEquities(pos *domain.GlobalPosition, factor decimal.Decimal) {
	if stocks := pos.Products.Stocks(); stocks != nil {
		for i := range stocks.Entries {
			stocks.Entries[i].MarketValue = stocks.Entries[i].MarketValue.Mul(factor)
		}
	}
	if funds := pos.Products.Funds(); funds != nil {
		for i := range funds.Entries {
			funds.Entries[i].MarketValue = funds.Entries[i].MarketValue.Mul(factor)
		}
	}
}

func applyContribution(pos *domain.GlobalPosition, targetType domain.ContributionTargetType, target string, total decimal.Decimal) {
	switch targetType {
	case domain.TargetStockETF:
		applyStockContribution(pos, target, total)
	case domain.TargetFund:
		applyFundContribution(pos, target, total)
	case domain.TargetFundPortfolio:
		applyFundPortfolioContribution(pos, target, total)
	case domain.TargetCrypto:
		applyCryptoContribution(pos, target, total)
	}
}

func applyStockContribution(pos *domain.GlobalPosition, isin string, total decimal.Decimal) {
	stocks := pos.Products.Stocks()
	if stocks == nil {
		return
	}
	for i := range stocks.Entries {
		if stocks.Entries[i].ISIN != isin {
			continue
		}
		addInvestment(&stocks.Entries[i].InitialInvestment, total)
		stocks.Entries[i].MarketValue = stocks.Entries[i].MarketValue.Add(total)
		return
	}
}

func applyFundContribution(pos *domain.GlobalPosition, isin string, total decimal.Decimal) {
	funds := pos.Products.Funds()
	if funds == nil {
		return
	}
	for i := range funds.Entries {
		if funds.Entries[i].ISIN != isin {
			continue
		}
		addInvestment(&funds.Entries[i].InitialInvestment, total)
		funds.Entries[i].MarketValue = funds.Entries[i].MarketValue.Add(total)
		return
	}
}

// applyFundPortfolioContribution allocates across the portfolio's member
// funds proportionally to market value; without a resolvable portfolio the
// total lands on the linked account's cash.
func applyFundPortfolioContribution(pos *domain.GlobalPosition, iban string, total decimal.Decimal) {
	accounts := pos.Products.Accounts()
	if accounts == nil {
		return
	}
	var account *domain.Account
	for i := range accounts.Entries {
		if accounts.Entries[i].Type == domain.AccountFundPortfolio && accounts.Entries[i].IBAN == iban {
			account = &accounts.Entries[i]
			break
		}
	}
	if account == nil {
		return
	}

	var portfolio *domain.FundPortfolio
	if portfolios := pos.Products.FundPortfolios(); portfolios != nil {
		for i := range portfolios.Entries {
			if portfolios.Entries[i].AccountID != nil && *portfolios.Entries[i].AccountID == account.ID {
				portfolio = &portfolios.Entries[i]
				break
			}
		}
	}

	var members []*domain.FundDetail
	totalMarket := decimal.Zero
	if portfolio != nil {
		if funds := pos.Products.Funds(); funds != nil {
			for i := range funds.Entries {
				if funds.Entries[i].PortfolioID != nil && *funds.Entries[i].PortfolioID == portfolio.ID {
					members = append(members, &funds.Entries[i])
					totalMarket = totalMarket.Add(funds.Entries[i].MarketValue)
				}
			}
		}
	}

	if portfolio != nil && len(members) > 0 && totalMarket.Sign() > 0 {
		for _, f := range members {
			inc := total.Mul(f.MarketValue.Div(totalMarket))
			addInvestment(&f.InitialInvestment, inc)
			f.MarketValue = f.MarketValue.Add(inc)
		}
		addInvestment(&portfolio.InitialInvestment, total)
		addInvestment(&portfolio.MarketValue, total)
		return
	}
	account.Total = account.Total.Add(total)
}

func applyCryptoContribution(pos *domain.GlobalPosition, target string, total decimal.Decimal) {
	wallets := pos.Products.Crypto()
	if wallets == nil || target == "" {
		return
	}
	upper := strings.ToUpper(target)
	for w := range wallets.Entries {
		for a := range wallets.Entries[w].Assets {
			asset := &wallets.Entries[w].Assets[a]
			if strings.ToUpper(asset.Symbol) != upper && (asset.ContractAddress == "" || asset.ContractAddress != target) {
				continue
			}
			var unitPrice decimal.Decimal
			if asset.MarketValue != nil && asset.Amount.Sign() > 0 {
				unitPrice = asset.MarketValue.Div(asset.Amount)
			}
			addInvestment(&asset.InitialInvestment, total)
			addInvestment(&asset.MarketValue, total)
			if unitPrice.Sign() > 0 {
				asset.Amount = asset.Amount.Add(total.Div(unitPrice))
			}
			return
		}
	}
}

func addInvestment(field **decimal.Decimal, total decimal.Decimal) {
	if *field == nil {
		v := total
		*field = &v
		return
	}
	v := (*field).Add(total)
	*field = &v
}
