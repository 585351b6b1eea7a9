package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/pkg/dates"
)

// DataSource marks where a row originated: fetched from an institution,
// entered by the user, or imported from a file/sheet.
type DataSource string

const (
	SourceReal     DataSource = "REAL"
	SourceManual   DataSource = "MANUAL"
	SourceImported DataSource = "IMPORTED"
)

// ProductType tags each variant of a product position.
type ProductType string

const (
	ProductAccount       ProductType = "ACCOUNT"
	ProductCard          ProductType = "CARD"
	ProductLoan          ProductType = "LOAN"
	ProductStockETF      ProductType = "STOCK_ETF"
	ProductFund          ProductType = "FUND"
	ProductFundPortfolio ProductType = "FUND_PORTFOLIO"
	ProductDeposit       ProductType = "DEPOSIT"
	ProductFactoring     ProductType = "FACTORING"
	ProductRealEstateCF  ProductType = "REAL_ESTATE_CF"
	ProductCrowdlending  ProductType = "CROWDLENDING"
	ProductCrypto        ProductType = "CRYPTO"
	ProductCommodity     ProductType = "COMMODITY"
)

// AccountType orders preferred accounts for liquidation payouts.
type AccountType string

const (
	AccountChecking      AccountType = "CHECKING"
	AccountVirtualWallet AccountType = "VIRTUAL_WALLET"
	AccountBrokerage     AccountType = "BROKERAGE"
	AccountSavings       AccountType = "SAVINGS"
	AccountFundPortfolio AccountType = "FUND_PORTFOLIO"
)

type CardType string

const (
	CardCredit CardType = "CREDIT"
	CardDebit  CardType = "DEBIT"
)

type LoanType string

const (
	LoanMortgage LoanType = "MORTGAGE"
	LoanStandard LoanType = "STANDARD"
)

// InterestType selects the amortization regime of a loan.
type InterestType string

const (
	InterestFixed    InterestType = "FIXED"
	InterestVariable InterestType = "VARIABLE"
	InterestMixed    InterestType = "MIXED"
)

type EquityType string

const (
	EquityStock EquityType = "STOCK"
	EquityETF   EquityType = "ETF"
)

type FundType string

const (
	FundMutual        FundType = "MUTUAL_FUND"
	FundPrivateEquity FundType = "PRIVATE_EQUITY"
	FundPension       FundType = "PENSION_FUND"
)

// Account is a cash account at an entity.
type Account struct {
	ID               uuid.UUID        `json:"id"`
	Total            decimal.Decimal  `json:"total"`
	Currency         string           `json:"currency"`
	Type             AccountType      `json:"type"`
	Name             string           `json:"name,omitempty"`
	IBAN             string           `json:"iban,omitempty"`
	Interest         *decimal.Decimal `json:"interest,omitempty"`
	Retained         *decimal.Decimal `json:"retained,omitempty"`
	PendingTransfers *decimal.Decimal `json:"pending_transfers,omitempty"`
	Source           DataSource       `json:"source"`
}

// Card references its settlement account within the same position, if any.
type Card struct {
	ID             uuid.UUID        `json:"id"`
	Currency       string           `json:"currency"`
	Type           CardType         `json:"type"`
	Used           decimal.Decimal  `json:"used"`
	Active         bool             `json:"active"`
	Limit          *decimal.Decimal `json:"limit,omitempty"`
	Name           string           `json:"name,omitempty"`
	Ending         string           `json:"ending,omitempty"`
	RelatedAccount *uuid.UUID       `json:"related_account,omitempty"`
	Source         DataSource       `json:"source"`
}

// Loan carries the amortization inputs. VARIABLE and MIXED require a euribor
// rate; MIXED additionally requires the fixed-phase length in years.
type Loan struct {
	ID                   uuid.UUID        `json:"id"`
	Type                 LoanType         `json:"type"`
	Currency             string           `json:"currency"`
	CurrentInstallment   decimal.Decimal  `json:"current_installment"`
	InterestRate         decimal.Decimal  `json:"interest_rate"`
	InterestType         InterestType     `json:"interest_type"`
	LoanAmount           decimal.Decimal  `json:"loan_amount"`
	Creation             dates.Date       `json:"creation"`
	Maturity             dates.Date       `json:"maturity"`
	PrincipalOutstanding decimal.Decimal  `json:"principal_outstanding"`
	PrincipalPaid        decimal.Decimal  `json:"principal_paid"`
	NextPaymentDate      *dates.Date      `json:"next_payment_date,omitempty"`
	EuriborRate          *decimal.Decimal `json:"euribor_rate,omitempty"`
	FixedYears           *int             `json:"fixed_years,omitempty"`
	Name                 string           `json:"name,omitempty"`
	Unpaid               *decimal.Decimal `json:"unpaid,omitempty"`
	Source               DataSource       `json:"source"`
}

// Validate enforces the regime invariants.
func (l Loan) Validate() error {
	if l.InterestType == InterestVariable || l.InterestType == InterestMixed {
		if l.EuriborRate == nil {
			return NewMissingFields("euribor_rate")
		}
	}
	if l.InterestType == InterestMixed && l.FixedYears == nil {
		return NewMissingFields("fixed_years")
	}
	return nil
}

// StockDetail is a single listed equity or ETF holding. Exactly one of
// InitialInvestment / AverageBuyPrice may be given; the other is derived.
type StockDetail struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	Ticker            string           `json:"ticker"`
	ISIN              string           `json:"isin"`
	Shares            decimal.Decimal  `json:"shares"`
	MarketValue       decimal.Decimal  `json:"market_value"`
	Currency          string           `json:"currency"`
	Type              EquityType       `json:"type"`
	InitialInvestment *decimal.Decimal `json:"initial_investment,omitempty"`
	AverageBuyPrice   *decimal.Decimal `json:"average_buy_price,omitempty"`
	Market            string           `json:"market,omitempty"`
	Subtype           string           `json:"subtype,omitempty"`
	Source            DataSource       `json:"source"`
}

// Normalize derives the missing one of initial investment / average buy
// price from shares. Both absent is an error.
func (s *StockDetail) Normalize() error {
	return normalizeInvestment(&s.InitialInvestment, &s.AverageBuyPrice, s.Shares)
}

func normalizeInvestment(initial, avg **decimal.Decimal, shares decimal.Decimal) error {
	switch {
	case *initial == nil && *avg != nil && !shares.IsZero():
		v := (*avg).Mul(shares)
		*initial = &v
	case *avg == nil && *initial != nil && !shares.IsZero():
		v := (*initial).Div(shares)
		*avg = &v
	case *initial == nil && *avg == nil:
		return NewMissingFields("initial_investment", "average_buy_price")
	}
	return nil
}

// FundPortfolio groups funds; its aggregates are re-synced to the sum of its
// member funds on every write.
type FundPortfolio struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	InitialInvestment *decimal.Decimal `json:"initial_investment,omitempty"`
	MarketValue       *decimal.Decimal `json:"market_value,omitempty"`
	AccountID         *uuid.UUID       `json:"account_id,omitempty"`
	Source            DataSource       `json:"source"`
}

// FundDetail is a mutual/pension fund holding, optionally tied to a
// portfolio by id (the back-link is resolved at load time).
type FundDetail struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	ISIN              string           `json:"isin"`
	Market            string           `json:"market,omitempty"`
	Shares            decimal.Decimal  `json:"shares"`
	MarketValue       decimal.Decimal  `json:"market_value"`
	Currency          string           `json:"currency"`
	Type              FundType         `json:"type"`
	InitialInvestment *decimal.Decimal `json:"initial_investment,omitempty"`
	AverageBuyPrice   *decimal.Decimal `json:"average_buy_price,omitempty"`
	PortfolioID       *uuid.UUID       `json:"portfolio_id,omitempty"`
	Source            DataSource       `json:"source"`
}

// Normalize derives the missing investment figure, as for stocks.
func (f *FundDetail) Normalize() error {
	return normalizeInvestment(&f.InitialInvestment, &f.AverageBuyPrice, f.Shares)
}

// FactoringDetail is an invoice-advance investment with a fixed maturity.
type FactoringDetail struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	Amount            decimal.Decimal  `json:"amount"`
	Currency          string           `json:"currency"`
	InterestRate      decimal.Decimal  `json:"interest_rate"`
	GrossInterestRate decimal.Decimal  `json:"gross_interest_rate"`
	Start             time.Time        `json:"start"`
	Maturity          dates.Date       `json:"maturity"`
	Type              string           `json:"type"`
	State             string           `json:"state"`
	LastInvestDate    time.Time        `json:"last_invest_date"`
	Profitability     *decimal.Decimal `json:"profitability,omitempty"`
	Source            DataSource       `json:"source"`
}

// RealEstateCFDetail is a real-estate crowdfunding investment.
type RealEstateCFDetail struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Amount           decimal.Decimal  `json:"amount"`
	PendingAmount    decimal.Decimal  `json:"pending_amount"`
	Currency         string           `json:"currency"`
	InterestRate     decimal.Decimal  `json:"interest_rate"`
	Start            time.Time        `json:"start"`
	Maturity         dates.Date       `json:"maturity"`
	ExtendedMaturity *dates.Date      `json:"extended_maturity,omitempty"`
	Type             string           `json:"type"`
	BusinessType     string           `json:"business_type,omitempty"`
	State            string           `json:"state"`
	LastInvestDate   time.Time        `json:"last_invest_date"`
	Profitability    *decimal.Decimal `json:"profitability,omitempty"`
	Source           DataSource       `json:"source"`
}

// Deposit is a fixed-term deposit. Maturity must follow creation and the
// expected interests are never negative.
type Deposit struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	InterestRate      decimal.Decimal `json:"interest_rate"`
	Creation          time.Time       `json:"creation"`
	Maturity          dates.Date      `json:"maturity"`
	ExpectedInterests decimal.Decimal `json:"expected_interests"`
	Source            DataSource      `json:"source"`
}

// Validate enforces maturity > creation and non-negative interests.
func (d Deposit) Validate() error {
	if !d.Maturity.After(dates.FromTime(d.Creation)) {
		return &InvalidFieldError{Field: "maturity", Reason: "must be after creation"}
	}
	if d.ExpectedInterests.Sign() < 0 {
		return &InvalidFieldError{Field: "expected_interests", Reason: "must not be negative"}
	}
	return nil
}

// CryptoAsset is a registered currency or token; symbols are resolved
// against the registry the first time a wallet reports them.
type CryptoAsset struct {
	ID              uuid.UUID `json:"id"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	Native          bool      `json:"native"`
	ContractAddress string    `json:"contract_address,omitempty"`
}

// CryptoPosition is one asset held in a wallet.
type CryptoPosition struct {
	ID                uuid.UUID        `json:"id"`
	Symbol            string           `json:"symbol"`
	Amount            decimal.Decimal  `json:"amount"`
	Name              string           `json:"name,omitempty"`
	AssetID           *uuid.UUID       `json:"asset_id,omitempty"`
	MarketValue       *decimal.Decimal `json:"market_value,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	ContractAddress   string           `json:"contract_address,omitempty"`
	InitialInvestment *decimal.Decimal `json:"initial_investment,omitempty"`
	AverageBuyPrice   *decimal.Decimal `json:"average_buy_price,omitempty"`
	Source            DataSource       `json:"source"`
}

// CryptoWallet groups asset positions under one address.
type CryptoWallet struct {
	ID      uuid.UUID        `json:"id"`
	Address string           `json:"address,omitempty"`
	Name    string           `json:"name,omitempty"`
	Assets  []CryptoPosition `json:"assets"`
}

// Commodity is a weight-unit register (metals).
type Commodity struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Amount      decimal.Decimal  `json:"amount"`
	Unit        string           `json:"unit"`
	MarketValue *decimal.Decimal `json:"market_value,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Source      DataSource       `json:"source"`
}

// CrowdlendingDetail is one loan-part entry on a crowdlending platform.
type CrowdlendingDetail struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Maturity     *dates.Date     `json:"maturity,omitempty"`
	State        string          `json:"state,omitempty"`
	Source       DataSource      `json:"source"`
}
