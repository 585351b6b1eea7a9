package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/pkg/dates"
)

// ContributionTargetType says what a periodic contribution buys.
type ContributionTargetType string

const (
	TargetStockETF      ContributionTargetType = "STOCK_ETF"
	TargetFund          ContributionTargetType = "FUND"
	TargetFundPortfolio ContributionTargetType = "FUND_PORTFOLIO"
	TargetCrypto        ContributionTargetType = "CRYPTO"
	TargetAccount       ContributionTargetType = "ACCOUNT"
)

// PeriodicContribution is a standing investment order, fetched from an
// entity or declared manually. Target identifies the instrument (ISIN,
// symbol or account id depending on the target type).
type PeriodicContribution struct {
	ID         uuid.UUID              `json:"id"`
	Target     string                 `json:"target"`
	TargetName string                 `json:"target_name,omitempty"`
	TargetType ContributionTargetType `json:"target_type"`
	Amount     decimal.Decimal        `json:"amount"`
	Currency   string                 `json:"currency"`
	Since      dates.Date             `json:"since"`
	Until      *dates.Date            `json:"until,omitempty"`
	Frequency  FlowFrequency          `json:"frequency"`
	Active     bool                   `json:"active"`
	IsReal     bool                   `json:"is_real"`
	EntityID   uuid.UUID              `json:"entity_id"`
	Entity     string                 `json:"entity,omitempty"`
}

// AutoContributions is a fetcher's report of the standing orders at one
// entity.
type AutoContributions struct {
	Periodic []PeriodicContribution `json:"periodic"`
}

// ContributionQuery filters stored contributions.
type ContributionQuery struct {
	Entities         []uuid.UUID
	ExcludedEntities []uuid.UUID
	Real             *bool
}
