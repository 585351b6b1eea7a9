package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/pkg/dates"
)

// HistoricEntry is one closed or running investment reduced from its
// transactions: invested capital, returns and the derived KPIs.
type HistoricEntry struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Invested    decimal.Decimal  `json:"invested"`
	Returned    *decimal.Decimal `json:"returned,omitempty"`
	Currency    string           `json:"currency"`
	ProductType ProductType      `json:"product_type"`
	EntityID    uuid.UUID        `json:"entity_id"`
	Entity      string           `json:"entity,omitempty"`

	LastInvestDate time.Time  `json:"last_invest_date"`
	LastTxDate     time.Time  `json:"last_tx_date"`
	LastReturnTx   *time.Time `json:"last_return_tx,omitempty"`

	EffectiveMaturity *dates.Date `json:"effective_maturity,omitempty"`

	NetReturn  *decimal.Decimal `json:"net_return,omitempty"`
	Fees       decimal.Decimal  `json:"fees"`
	Retentions decimal.Decimal  `json:"retentions"`
	Interests  decimal.Decimal  `json:"interests"`
	Repaid     decimal.Decimal  `json:"repaid"`

	State string `json:"state,omitempty"`

	// Product-specific payload, present for the matching product type only.
	RealEstateCF *HistoricRealEstateCF `json:"real_estate_cf,omitempty"`
	Factoring    *HistoricFactoring    `json:"factoring,omitempty"`

	RelatedTxs []uuid.UUID `json:"related_txs,omitempty"`
}

// HistoricRealEstateCF keeps the contract terms alongside the reduced KPIs.
type HistoricRealEstateCF struct {
	InterestRate     decimal.Decimal `json:"interest_rate"`
	Maturity         dates.Date      `json:"maturity"`
	ExtendedMaturity *dates.Date     `json:"extended_maturity,omitempty"`
	Type             string          `json:"type"`
	BusinessType     string          `json:"business_type,omitempty"`
}

// HistoricFactoring keeps the invoice-advance terms.
type HistoricFactoring struct {
	InterestRate      decimal.Decimal `json:"interest_rate"`
	GrossInterestRate decimal.Decimal `json:"gross_interest_rate"`
	Maturity          dates.Date      `json:"maturity"`
	Type              string          `json:"type"`
}

// Historic is the reduced ledger across entities.
type Historic struct {
	Entries []HistoricEntry `json:"entries"`
}

// HistoricQuery filters stored historic entries.
type HistoricQuery struct {
	Entities     []uuid.UUID
	ProductTypes []ProductType
	FromDate     *time.Time
	ToDate       *time.Time
}
