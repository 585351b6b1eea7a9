package imports

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/modules/position"
)

// Request is a batch of typed rows grouped per entity name. Names that do
// not match an existing entity create a manual one.
type Request struct {
	Feature  domain.Feature `json:"feature"`
	Preview  bool           `json:"preview,omitempty"`
	Entities []EntityData   `json:"entities"`
}

// EntityData carries one entity's rows: product containers for a position
// import, transaction lists for a transactions import.
type EntityData struct {
	Entity       string                     `json:"entity"`
	EntityType   domain.EntityType          `json:"entity_type,omitempty"`
	Products     map[string]json.RawMessage `json:"products,omitempty"`
	Transactions *domain.Transactions       `json:"transactions,omitempty"`
}

// RowError reports one rejected entry. The rest of the batch still imports.
type RowError struct {
	Entry  string `json:"entry"`
	Detail string `json:"detail"`
}

// decodeProducts rebuilds concrete product containers from the raw rows.
func decodeProducts(raw map[string]json.RawMessage) (domain.Products, error) {
	products := domain.Products{}
	for productType, data := range raw {
		entries, err := position.DecodeEntries(domain.ProductType(productType), string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", productType, err)
		}
		products[domain.ProductType(productType)] = entries
	}
	return products, nil
}

// validateTransactions checks the fields every stored transaction needs.
func validateTransactions(txs domain.Transactions) error {
	for _, tx := range txs.Investment {
		if err := validateBase(tx.BaseTx); err != nil {
			return err
		}
	}
	for _, tx := range txs.Account {
		if err := validateBase(tx.BaseTx); err != nil {
			return err
		}
	}
	return nil
}

func validateBase(tx domain.BaseTx) error {
	if tx.Name == "" {
		return fmt.Errorf("transaction without a name")
	}
	if tx.Currency == "" {
		return fmt.Errorf("transaction %q without a currency", tx.Name)
	}
	if tx.Type == "" {
		return fmt.Errorf("transaction %q without a type", tx.Name)
	}
	if tx.ProductType == "" {
		return fmt.Errorf("transaction %q without a product type", tx.Name)
	}
	if tx.Date.IsZero() {
		return fmt.Errorf("transaction %q without a date", tx.Name)
	}
	return nil
}
