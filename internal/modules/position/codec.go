package position

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/moneta/internal/domain"
)

// encodeEntries serializes one product's entry list for storage.
func encodeEntries(entries domain.ProductEntries) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s entries: %w", entries.Product(), err)
	}
	return string(data), nil
}

// DecodeEntries rebuilds the concrete container for a product type.
func DecodeEntries(productType domain.ProductType, data string) (domain.ProductEntries, error) {
	var entries domain.ProductEntries
	switch productType {
	case domain.ProductAccount:
		entries = &domain.Accounts{}
	case domain.ProductCard:
		entries = &domain.Cards{}
	case domain.ProductLoan:
		entries = &domain.Loans{}
	case domain.ProductStockETF:
		entries = &domain.StockInvestments{}
	case domain.ProductFund:
		entries = &domain.FundInvestments{}
	case domain.ProductFundPortfolio:
		entries = &domain.FundPortfolios{}
	case domain.ProductFactoring:
		entries = &domain.FactoringInvestments{}
	case domain.ProductRealEstateCF:
		entries = &domain.RealEstateCFInvestments{}
	case domain.ProductDeposit:
		entries = &domain.Deposits{}
	case domain.ProductCrowdlending:
		entries = &domain.Crowdlendings{}
	case domain.ProductCrypto:
		entries = &domain.CryptoCurrencies{}
	case domain.ProductCommodity:
		entries = &domain.Commodities{}
	default:
		return nil, fmt.Errorf("unknown product type %q", productType)
	}
	if err := json.Unmarshal([]byte(data), entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s entries: %w", productType, err)
	}
	return entries, nil
}
