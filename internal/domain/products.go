package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductEntries is the sum type over per-product entry lists held in a
// GlobalPosition. Merging concatenates entries; cloning is a deep copy so
// forecasts never alias stored positions.
type ProductEntries interface {
	Product() ProductType
	Merge(other ProductEntries) ProductEntries
	Clone() ProductEntries
}

// Products maps each product type to its entries. Typed accessors return nil
// when the product is absent or of an unexpected shape.
type Products map[ProductType]ProductEntries

func cloneDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneUUID(u *uuid.UUID) *uuid.UUID {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

type Accounts struct {
	Entries []Account `json:"entries"`
}

func (a *Accounts) Product() ProductType { return ProductAccount }

func (a *Accounts) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*Accounts)
	if !ok {
		return a
	}
	return &Accounts{Entries: append(append([]Account{}, a.Entries...), o.Entries...)}
}

func (a *Accounts) Clone() ProductEntries {
	out := make([]Account, len(a.Entries))
	for i, e := range a.Entries {
		e.Interest = cloneDec(e.Interest)
		e.Retained = cloneDec(e.Retained)
		e.PendingTransfers = cloneDec(e.PendingTransfers)
		out[i] = e
	}
	return &Accounts{Entries: out}
}

type Cards struct {
	Entries []Card `json:"entries"`
}

func (c *Cards) Product() ProductType { return ProductCard }

func (c *Cards) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*Cards)
	if !ok {
		return c
	}
	return &Cards{Entries: append(append([]Card{}, c.Entries...), o.Entries...)}
}

func (c *Cards) Clone() ProductEntries {
	out := make([]Card, len(c.Entries))
	for i, e := range c.Entries {
		e.Limit = cloneDec(e.Limit)
		e.RelatedAccount = cloneUUID(e.RelatedAccount)
		out[i] = e
	}
	return &Cards{Entries: out}
}

type Loans struct {
	Entries []Loan `json:"entries"`
}

func (l *Loans) Product() ProductType { return ProductLoan }

func (l *Loans) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*Loans)
	if !ok {
		return l
	}
	return &Loans{Entries: append(append([]Loan{}, l.Entries...), o.Entries...)}
}

func (l *Loans) Clone() ProductEntries {
	out := make([]Loan, len(l.Entries))
	for i, e := range l.Entries {
		e.EuriborRate = cloneDec(e.EuriborRate)
		e.Unpaid = cloneDec(e.Unpaid)
		e.FixedYears = cloneInt(e.FixedYears)
		if e.NextPaymentDate != nil {
			d := *e.NextPaymentDate
			e.NextPaymentDate = &d
		}
		out[i] = e
	}
	return &Loans{Entries: out}
}

type StockInvestments struct {
	Entries []StockDetail `json:"entries"`
}

func (s *StockInvestments) Product() ProductType { return ProductStockETF }

func (s *StockInvestments) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*StockInvestments)
	if !ok {
		return s
	}
	return &StockInvestments{Entries: append(append([]StockDetail{}, s.Entries...), o.Entries...)}
}

func (s *StockInvestments) Clone() ProductEntries {
	out := make([]StockDetail, len(s.Entries))
	for i, e := range s.Entries {
		e.InitialInvestment = cloneDec(e.InitialInvestment)
		e.AverageBuyPrice = cloneDec(e.AverageBuyPrice)
		out[i] = e
	}
	return &StockInvestments{Entries: out}
}

type FundInvestments struct {
	Entries []FundDetail `json:"entries"`
}

func (f *FundInvestments) Product() ProductType { return ProductFund }

func (f *FundInvestments) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*FundInvestments)
	if !ok {
		return f
	}
	return &FundInvestments{Entries: append(append([]FundDetail{}, f.Entries...), o.Entries...)}
}

func (f *FundInvestments) Clone() ProductEntries {
	out := make([]FundDetail, len(f.Entries))
	for i, e := range f.Entries {
		e.InitialInvestment = cloneDec(e.InitialInvestment)
		e.AverageBuyPrice = cloneDec(e.AverageBuyPrice)
		e.PortfolioID = cloneUUID(e.PortfolioID)
		out[i] = e
	}
	return &FundInvestments{Entries: out}
}

type FundPortfolios struct {
	Entries []FundPortfolio `json:"entries"`
}

func (f *FundPortfolios) Product() ProductType { return ProductFundPortfolio }

func (f *FundPortfolios) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*FundPortfolios)
	if !ok {
		return f
	}
	return &FundPortfolios{Entries: append(append([]FundPortfolio{}, f.Entries...), o.Entries...)}
}

func (f *FundPortfolios) Clone() ProductEntries {
	out := make([]FundPortfolio, len(f.Entries))
	for i, e := range f.Entries {
		e.InitialInvestment = cloneDec(e.InitialInvestment)
		e.MarketValue = cloneDec(e.MarketValue)
		e.AccountID = cloneUUID(e.AccountID)
		out[i] = e
	}
	return &FundPortfolios{Entries: out}
}

type FactoringInvestments struct {
	Entries []FactoringDetail `json:"entries"`
}

func (f *FactoringInvestments) Product() ProductType { return ProductFactoring }

func (f *FactoringInvestments) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*FactoringInvestments)
	if !ok {
		return f
	}
	return &FactoringInvestments{Entries: append(append([]FactoringDetail{}, f.Entries...), o.Entries...)}
}

func (f *FactoringInvestments) Clone() ProductEntries {
	out := make([]FactoringDetail, len(f.Entries))
	for i, e := range f.Entries {
		e.Profitability = cloneDec(e.Profitability)
		out[i] = e
	}
	return &FactoringInvestments{Entries: out}
}

type RealEstateCFInvestments struct {
	Entries []RealEstateCFDetail `json:"entries"`
}

func (r *RealEstateCFInvestments) Product() ProductType { return ProductRealEstateCF }

func (r *RealEstateCFInvestments) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*RealEstateCFInvestments)
	if !ok {
		return r
	}
	return &RealEstateCFInvestments{Entries: append(append([]RealEstateCFDetail{}, r.Entries...), o.Entries...)}
}

func (r *RealEstateCFInvestments) Clone() ProductEntries {
	out := make([]RealEstateCFDetail, len(r.Entries))
	for i, e := range r.Entries {
		e.Profitability = cloneDec(e.Profitability)
		if e.ExtendedMaturity != nil {
			d := *e.ExtendedMaturity
			e.ExtendedMaturity = &d
		}
		out[i] = e
	}
	return &RealEstateCFInvestments{Entries: out}
}

type Deposits struct {
	Entries []Deposit `json:"entries"`
}

func (d *Deposits) Product() ProductType { return ProductDeposit }

func (d *Deposits) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*Deposits)
	if !ok {
		return d
	}
	return &Deposits{Entries: append(append([]Deposit{}, d.Entries...), o.Entries...)}
}

func (d *Deposits) Clone() ProductEntries {
	return &Deposits{Entries: append([]Deposit{}, d.Entries...)}
}

// Crowdlendings carries platform-level aggregates next to the entry list;
// merged totals use an investment-weighted interest rate.
type Crowdlendings struct {
	Total                *decimal.Decimal     `json:"total,omitempty"`
	WeightedInterestRate *decimal.Decimal     `json:"weighted_interest_rate,omitempty"`
	Currency             string               `json:"currency,omitempty"`
	Entries              []CrowdlendingDetail `json:"entries"`
}

func (c *Crowdlendings) Product() ProductType { return ProductCrowdlending }

func (c *Crowdlendings) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*Crowdlendings)
	if !ok {
		return c
	}
	merged := &Crowdlendings{
		Currency: c.Currency,
		Entries:  append(append([]CrowdlendingDetail{}, c.Entries...), o.Entries...),
	}
	if c.Total != nil && o.Total != nil {
		t := c.Total.Add(*o.Total)
		merged.Total = &t
		if c.WeightedInterestRate != nil && o.WeightedInterestRate != nil && !t.IsZero() {
			w := c.Total.Mul(*c.WeightedInterestRate).Add(o.Total.Mul(*o.WeightedInterestRate)).Div(t)
			merged.WeightedInterestRate = &w
		}
	}
	return merged
}

func (c *Crowdlendings) Clone() ProductEntries {
	out := make([]CrowdlendingDetail, len(c.Entries))
	for i, e := range c.Entries {
		if e.Maturity != nil {
			d := *e.Maturity
			e.Maturity = &d
		}
		out[i] = e
	}
	return &Crowdlendings{
		Total:                cloneDec(c.Total),
		WeightedInterestRate: cloneDec(c.WeightedInterestRate),
		Currency:             c.Currency,
		Entries:              out,
	}
}

type CryptoCurrencies struct {
	Entries []CryptoWallet `json:"entries"`
}

func (c *CryptoCurrencies) Product() ProductType { return ProductCrypto }

func (c *CryptoCurrencies) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*CryptoCurrencies)
	if !ok {
		return c
	}
	return &CryptoCurrencies{Entries: append(append([]CryptoWallet{}, c.Entries...), o.Entries...)}
}

func (c *CryptoCurrencies) Clone() ProductEntries {
	out := make([]CryptoWallet, len(c.Entries))
	for i, w := range c.Entries {
		assets := make([]CryptoPosition, len(w.Assets))
		for j, a := range w.Assets {
			a.MarketValue = cloneDec(a.MarketValue)
			a.InitialInvestment = cloneDec(a.InitialInvestment)
			a.AverageBuyPrice = cloneDec(a.AverageBuyPrice)
			a.AssetID = cloneUUID(a.AssetID)
			assets[j] = a
		}
		w.Assets = assets
		out[i] = w
	}
	return &CryptoCurrencies{Entries: out}
}

type Commodities struct {
	Entries []Commodity `json:"entries"`
}

func (c *Commodities) Product() ProductType { return ProductCommodity }

func (c *Commodities) Merge(other ProductEntries) ProductEntries {
	o, ok := other.(*Commodities)
	if !ok {
		return c
	}
	return &Commodities{Entries: append(append([]Commodity{}, c.Entries...), o.Entries...)}
}

func (c *Commodities) Clone() ProductEntries {
	out := make([]Commodity, len(c.Entries))
	for i, e := range c.Entries {
		e.MarketValue = cloneDec(e.MarketValue)
		out[i] = e
	}
	return &Commodities{Entries: out}
}

// Typed accessors.

func (p Products) Accounts() *Accounts {
	v, _ := p[ProductAccount].(*Accounts)
	return v
}

func (p Products) Cards() *Cards {
	v, _ := p[ProductCard].(*Cards)
	return v
}

func (p Products) Loans() *Loans {
	v, _ := p[ProductLoan].(*Loans)
	return v
}

func (p Products) Stocks() *StockInvestments {
	v, _ := p[ProductStockETF].(*StockInvestments)
	return v
}

func (p Products) Funds() *FundInvestments {
	v, _ := p[ProductFund].(*FundInvestments)
	return v
}

func (p Products) FundPortfolios() *FundPortfolios {
	v, _ := p[ProductFundPortfolio].(*FundPortfolios)
	return v
}

func (p Products) Factoring() *FactoringInvestments {
	v, _ := p[ProductFactoring].(*FactoringInvestments)
	return v
}

func (p Products) RealEstateCF() *RealEstateCFInvestments {
	v, _ := p[ProductRealEstateCF].(*RealEstateCFInvestments)
	return v
}

func (p Products) Deposits() *Deposits {
	v, _ := p[ProductDeposit].(*Deposits)
	return v
}

func (p Products) Crowdlending() *Crowdlendings {
	v, _ := p[ProductCrowdlending].(*Crowdlendings)
	return v
}

func (p Products) Crypto() *CryptoCurrencies {
	v, _ := p[ProductCrypto].(*CryptoCurrencies)
	return v
}

func (p Products) Commodities() *Commodities {
	v, _ := p[ProductCommodity].(*Commodities)
	return v
}

// MergeProducts combines two product maps product-by-product.
func MergeProducts(a, b Products) Products {
	if len(b) == 0 {
		return a
	}
	merged := Products{}
	for pt, entries := range a {
		if other, ok := b[pt]; ok {
			merged[pt] = entries.Merge(other)
		} else {
			merged[pt] = entries
		}
	}
	for pt, entries := range b {
		if _, ok := merged[pt]; !ok {
			merged[pt] = entries
		}
	}
	return merged
}

// CloneProducts deep-copies a product map.
func CloneProducts(p Products) Products {
	out := make(Products, len(p))
	for pt, entries := range p {
		out[pt] = entries.Clone()
	}
	return out
}

// GlobalPosition is the user's complete holdings at one entity at one point
// in time. Positions are immutable after write; updates get a later date.
type GlobalPosition struct {
	ID       uuid.UUID  `json:"id"`
	EntityID uuid.UUID  `json:"entity_id"`
	Date     time.Time  `json:"date"`
	IsReal   bool       `json:"is_real"`
	Source   DataSource `json:"source"`
	Products Products   `json:"products"`
}

// Clone deep-copies the position, products included.
func (g GlobalPosition) Clone() GlobalPosition {
	g.Products = CloneProducts(g.Products)
	return g
}

// MergePosition combines two positions for the same entity by merging product
// maps. The receiver's identity and date win.
func MergePosition(a, b GlobalPosition) GlobalPosition {
	a.Products = MergeProducts(a.Products, b.Products)
	return a
}

// SyncFundPortfolios recomputes every portfolio's aggregates as the sum of
// its member funds.
func (g *GlobalPosition) SyncFundPortfolios() {
	portfolios := g.Products.FundPortfolios()
	funds := g.Products.Funds()
	if portfolios == nil || funds == nil {
		return
	}
	type sums struct{ initial, market decimal.Decimal }
	byPortfolio := map[uuid.UUID]sums{}
	for _, f := range funds.Entries {
		if f.PortfolioID == nil {
			continue
		}
		s := byPortfolio[*f.PortfolioID]
		if f.InitialInvestment != nil {
			s.initial = s.initial.Add(*f.InitialInvestment)
		}
		s.market = s.market.Add(f.MarketValue)
		byPortfolio[*f.PortfolioID] = s
	}
	for i := range portfolios.Entries {
		if s, ok := byPortfolio[portfolios.Entries[i].ID]; ok {
			initial, market := s.initial, s.market
			portfolios.Entries[i].InitialInvestment = &initial
			portfolios.Entries[i].MarketValue = &market
		}
	}
}

// Validate checks intra-position references: cards to accounts and funds to
// portfolios within the same position.
func (g GlobalPosition) Validate() error {
	accountIDs := map[uuid.UUID]bool{}
	if accounts := g.Products.Accounts(); accounts != nil {
		for _, a := range accounts.Entries {
			accountIDs[a.ID] = true
		}
	}
	if cards := g.Products.Cards(); cards != nil {
		for _, c := range cards.Entries {
			if c.RelatedAccount != nil && !accountIDs[*c.RelatedAccount] {
				return &InvalidFieldError{Field: "related_account", Reason: "card references unknown account"}
			}
		}
	}
	portfolioIDs := map[uuid.UUID]bool{}
	if portfolios := g.Products.FundPortfolios(); portfolios != nil {
		for _, p := range portfolios.Entries {
			portfolioIDs[p.ID] = true
		}
	}
	if funds := g.Products.Funds(); funds != nil {
		for _, f := range funds.Entries {
			if f.PortfolioID != nil && !portfolioIDs[*f.PortfolioID] {
				return &InvalidFieldError{Field: "portfolio_id", Reason: "fund references unknown portfolio"}
			}
		}
	}
	if loans := g.Products.Loans(); loans != nil {
		for _, l := range loans.Entries {
			if err := l.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// HistoricalPosition is a fetcher-provided view of all investments ever held
// at an entity, bucketed by product type.
type HistoricalPosition struct {
	Products Products `json:"products"`
}

// PositionQuery filters latest-position lookups.
type PositionQuery struct {
	Entities         []uuid.UUID
	ExcludedEntities []uuid.UUID
	Real             *bool
}
