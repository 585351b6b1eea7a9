package forecast

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// accountPriority orders the account types a liquidation payout prefers.
var accountPriority = []domain.AccountType{
	domain.AccountVirtualWallet,
	domain.AccountChecking,
	domain.AccountBrokerage,
	domain.AccountSavings,
}

// liquidateMaturing pays out every deposit, factoring and real-estate
// crowdfunding entry maturing inside the horizon and removes it from the
// position. Profits are taxed at the capital gains base rate.
func liquidateMaturing(pos *domain.GlobalPosition, target dates.Date, tax decimal.Decimal, cash map[string]decimal.Decimal) {
	if deposits := pos.Products.Deposits(); deposits != nil {
		remaining := deposits.Entries[:0]
		for _, d := range deposits.Entries {
			if d.Maturity.IsZero() || d.Maturity.After(target) {
				remaining = append(remaining, d)
				continue
			}
			payout := d.Amount.Add(netProfit(d.ExpectedInterests, tax))
			creditPayout(pos, d.Currency, payout, cash)
		}
		deposits.Entries = remaining
	}
	if factoring := pos.Products.Factoring(); factoring != nil {
		remaining := factoring.Entries[:0]
		for _, f := range factoring.Entries {
			if f.Maturity.IsZero() || f.Maturity.After(target) {
				remaining = append(remaining, f)
				continue
			}
			rate := f.InterestRate
			if f.Profitability != nil {
				rate = *f.Profitability
			}
			payout := f.Amount.Add(netProfit(f.Amount.Mul(rate), tax))
			creditPayout(pos, f.Currency, payout, cash)
		}
		factoring.Entries = remaining
	}
	if recf := pos.Products.RealEstateCF(); recf != nil {
		remaining := recf.Entries[:0]
		for _, r := range recf.Entries {
			if r.Maturity.IsZero() || r.Maturity.After(target) {
				remaining = append(remaining, r)
				continue
			}
			rate := r.InterestRate
			if r.Profitability != nil {
				rate = *r.Profitability
			}
			payout := r.Amount.Add(netProfit(r.Amount.Mul(rate), tax))
			creditPayout(pos, r.Currency, payout, cash)
		}
		recf.Entries = remaining
	}
}

func netProfit(profit, tax decimal.Decimal) decimal.Decimal {
	if profit.Sign() <= 0 {
		return decimal.Zero
	}
	return profit.Mul(one.Sub(tax))
}

// creditPayout credits the preferred account of the position, or the cash
// bucket when the position holds no account at all.
func creditPayout(pos *domain.GlobalPosition, currency string, amount decimal.Decimal, cash map[string]decimal.Decimal) {
	if acc := preferredAccount(pos, currency); acc != nil {
		acc.Total = acc.Total.Add(amount)
		return
	}
	cash[currency] = cash[currency].Add(amount)
}

// preferredAccount picks the payout account by type priority, same-currency
// accounts first.
func preferredAccount(pos *domain.GlobalPosition, currency string) *domain.Account {
	accounts := pos.Products.Accounts()
	if accounts == nil {
		return nil
	}
	for _, matchCurrency := range []bool{true, false} {
		for _, t := range accountPriority {
			for i := range accounts.Entries {
				if accounts.Entries[i].Type != t {
					continue
				}
				if matchCurrency && accounts.Entries[i].Currency != currency {
					continue
				}
				return &accounts.Entries[i]
			}
		}
	}
	return nil
}
