package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxProductType narrows ProductType to products that carry transactions.
type TxProductType = ProductType

// TxType covers both investment and account movements.
type TxType string

const (
	TxBuy          TxType = "BUY"
	TxSell         TxType = "SELL"
	TxDividend     TxType = "DIVIDEND"
	TxRightIssue   TxType = "RIGHT_ISSUE"
	TxRightSell    TxType = "RIGHT_SELL"
	TxSubscription TxType = "SUBSCRIPTION"
	TxSwapFrom     TxType = "SWAP_FROM"
	TxSwapTo       TxType = "SWAP_TO"
	TxTransferIn   TxType = "TRANSFER_IN"
	TxTransferOut  TxType = "TRANSFER_OUT"
	TxSwitchFrom   TxType = "SWITCH_FROM"
	TxSwitchTo     TxType = "SWITCH_TO"
	TxInvestment   TxType = "INVESTMENT"
	TxRepayment    TxType = "REPAYMENT"
	TxInterest     TxType = "INTEREST"
	TxFee          TxType = "FEE"
)

// InvestmentTxTypes lists the types the historic reducer partitions on.
var InvestmentTxTypes = []TxType{
	TxBuy, TxSell, TxDividend, TxRightIssue, TxRightSell, TxSubscription,
	TxSwapFrom, TxSwapTo, TxTransferIn, TxTransferOut, TxSwitchFrom,
	TxSwitchTo, TxInvestment, TxRepayment, TxInterest, TxFee,
}

// BaseTx is shared by all transaction rows. Ref is unique per entity and is
// how re-fetched transactions are deduplicated.
type BaseTx struct {
	ID          uuid.UUID       `json:"id"`
	Ref         string          `json:"ref"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        TxType          `json:"type"`
	Date        time.Time       `json:"date"`
	EntityID    uuid.UUID       `json:"entity_id"`
	Entity      string          `json:"entity,omitempty"`
	IsRealEnt   bool            `json:"is_real"`
	ProductType ProductType     `json:"product_type"`
	Source      DataSource      `json:"source"`
}

// InvestmentTx is a movement against an investment product. Optional columns
// depend on the product: equity trades carry shares and price, term products
// carry fees, retentions and interests.
type InvestmentTx struct {
	BaseTx
	NetAmount  decimal.Decimal  `json:"net_amount"`
	ISIN       string           `json:"isin,omitempty"`
	Ticker     string           `json:"ticker,omitempty"`
	Market     string           `json:"market,omitempty"`
	Shares     *decimal.Decimal `json:"shares,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Fees       *decimal.Decimal `json:"fees,omitempty"`
	Retentions *decimal.Decimal `json:"retentions,omitempty"`
	OrderDate  *time.Time       `json:"order_date,omitempty"`
	LinkedTx   *uuid.UUID       `json:"linked_tx,omitempty"`

	// Term-product fields.
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
	Interests    *decimal.Decimal `json:"interests,omitempty"`
}

// AccountTx is a cash movement on an account.
type AccountTx struct {
	BaseTx
	Fees       decimal.Decimal  `json:"fees"`
	Retentions decimal.Decimal  `json:"retentions"`
	Interest   *decimal.Decimal `json:"interest_rate,omitempty"`
	AvgBalance *decimal.Decimal `json:"avg_balance,omitempty"`
}

// Transactions bundles both kinds, as fetchers report them together.
type Transactions struct {
	Investment []InvestmentTx `json:"investment"`
	Account    []AccountTx    `json:"account"`
}

// Merge concatenates both lists.
func (t Transactions) Merge(other Transactions) Transactions {
	return Transactions{
		Investment: append(append([]InvestmentTx{}, t.Investment...), other.Investment...),
		Account:    append(append([]AccountTx{}, t.Account...), other.Account...),
	}
}

// Refs returns the set of refs across both lists.
func (t Transactions) Refs() map[string]bool {
	refs := make(map[string]bool, len(t.Investment)+len(t.Account))
	for _, tx := range t.Investment {
		refs[tx.Ref] = true
	}
	for _, tx := range t.Account {
		refs[tx.Ref] = true
	}
	return refs
}

// TransactionQuery filters stored transactions. Zero values mean "no filter".
type TransactionQuery struct {
	Entities         []uuid.UUID
	ExcludedEntities []uuid.UUID
	ProductTypes     []ProductType
	Types            []TxType
	FromDate         *time.Time
	ToDate           *time.Time
	Real             *bool
	Limit            int
	Offset           int
}
