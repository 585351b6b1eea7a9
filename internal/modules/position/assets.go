package position

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting asset lookups run either standalone or on an open transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// AssetRegistry stores known crypto assets, one row per symbol. Wallets
// report bare symbols; the registry gives them a stable asset id.
type AssetRegistry struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssetRegistry creates a new crypto asset registry
func NewAssetRegistry(db *sql.DB, log zerolog.Logger) *AssetRegistry {
	return &AssetRegistry{
		db:  db,
		log: log.With().Str("repo", "crypto_assets").Logger(),
	}
}

// BySymbol returns the registered asset for a symbol, nil when unknown.
func (r *AssetRegistry) BySymbol(symbol string) (*domain.CryptoAsset, error) {
	return r.bySymbol(r.db, symbol)
}

func (r *AssetRegistry) bySymbol(q querier, symbol string) (*domain.CryptoAsset, error) {
	var asset domain.CryptoAsset
	var id string
	var contract sql.NullString
	err := q.QueryRow(`
		SELECT id, symbol, name, native, contract_address
		FROM crypto_assets WHERE symbol = ?
	`, strings.ToUpper(symbol)).Scan(&id, &asset.Symbol, &asset.Name, &asset.Native, &contract)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query crypto asset: %w", err)
	}
	if asset.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse crypto asset id: %w", err)
	}
	asset.ContractAddress = contract.String
	return &asset, nil
}

// Register stores a newly seen asset.
func (r *AssetRegistry) Register(asset domain.CryptoAsset) error {
	return r.register(r.db, asset)
}

func (r *AssetRegistry) register(q querier, asset domain.CryptoAsset) error {
	var contract any
	if asset.ContractAddress != "" {
		contract = asset.ContractAddress
	}
	_, err := q.Exec(`
		INSERT INTO crypto_assets (id, symbol, name, native, contract_address)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO NOTHING
	`, asset.ID.String(), asset.Symbol, asset.Name, asset.Native, contract)
	if err != nil {
		return fmt.Errorf("failed to register crypto asset %s: %w", asset.Symbol, err)
	}
	return nil
}

// resolveAssets links wallet positions to registered assets, registering
// symbols seen for the first time.
func (r *AssetRegistry) resolveAssets(q querier, pos *domain.GlobalPosition) error {
	wallets := pos.Products.Crypto()
	if wallets == nil {
		return nil
	}
	for i := range wallets.Entries {
		for j := range wallets.Entries[i].Assets {
			holding := &wallets.Entries[i].Assets[j]
			if holding.AssetID != nil || holding.Symbol == "" {
				continue
			}
			symbol := strings.ToUpper(holding.Symbol)
			asset, err := r.bySymbol(q, symbol)
			if err != nil {
				return err
			}
			if asset == nil {
				name := holding.Name
				if name == "" {
					name = symbol
				}
				asset = &domain.CryptoAsset{
					ID:              uuid.New(),
					Symbol:          symbol,
					Name:            name,
					Native:          holding.ContractAddress == "",
					ContractAddress: holding.ContractAddress,
				}
				if err := r.register(q, *asset); err != nil {
					return err
				}
				r.log.Debug().Str("symbol", symbol).Msg("Registered crypto asset")
			}
			holding.AssetID = &asset.ID
		}
	}
	return nil
}
