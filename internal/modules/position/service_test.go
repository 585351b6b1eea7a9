package position

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/moneta/internal/database"
	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/events"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db.Conn(), zerolog.Nop())
	return NewService(repo, NewAssetRegistry(db.Conn(), zerolog.Nop()), events.NewManager(zerolog.Nop()), zerolog.Nop()), repo
}

func seedEntity(t *testing.T, repo *Repository, id uuid.UUID) {
	t.Helper()
	_, err := repo.db.Exec(`
		INSERT INTO entities (id, name, type, origin) VALUES (?, 'Test Bank', 'FINANCIAL_INSTITUTION', 'NATIVE')
	`, id.String())
	require.NoError(t, err)
}

func accountsOf(total string) *domain.Accounts {
	d, _ := decimal.NewFromString(total)
	return &domain.Accounts{Entries: []domain.Account{{
		ID: uuid.New(), Total: d, Currency: "EUR", Type: domain.AccountChecking,
	}}}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	svc, repo := newTestService(t)
	entityID := uuid.New()
	seedEntity(t, repo, entityID)

	avg := decimal.NewFromInt(25)
	pos := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Products: domain.Products{
			domain.ProductAccount: accountsOf("1500.55"),
			domain.ProductStockETF: &domain.StockInvestments{Entries: []domain.StockDetail{{
				ID: uuid.New(), Ticker: "VWCE", ISIN: "IE00BK5BQT80",
				Shares:      decimal.NewFromInt(4),
				MarketValue: decimal.NewFromInt(110),
				Currency:    "EUR", Type: domain.EquityETF,
				AverageBuyPrice: &avg,
			}}},
		},
	}
	require.NoError(t, svc.SaveFetched(pos))

	loaded, err := repo.GetLatestReal(entityID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.IsReal)
	assert.Equal(t, domain.SourceReal, loaded.Source)
	assert.Equal(t, "1500.55", loaded.Products.Accounts().Entries[0].Total.String())
	assert.Equal(t, "25", loaded.Products.Stocks().Entries[0].AverageBuyPrice.String())
}

func TestLatestRealWinsPerEntity(t *testing.T) {
	svc, repo := newTestService(t)
	entityID := uuid.New()
	seedEntity(t, repo, entityID)

	older := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{domain.ProductAccount: accountsOf("100")},
	}
	newer := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{domain.ProductAccount: accountsOf("200")},
	}
	require.NoError(t, svc.SaveFetched(older))
	require.NoError(t, svc.SaveFetched(newer))

	merged, err := svc.Merged(domain.PositionQuery{})
	require.NoError(t, err)
	require.Contains(t, merged, entityID)
	assert.Equal(t, "200", merged[entityID].Products.Accounts().Entries[0].Total.String())
}

func TestMergedCombinesRealAndManual(t *testing.T) {
	svc, repo := newTestService(t)
	entityID := uuid.New()
	seedEntity(t, repo, entityID)

	real := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{domain.ProductAccount: accountsOf("300")},
	}
	manual := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{
			domain.ProductCommodity: &domain.Commodities{Entries: []domain.Commodity{{
				ID: uuid.New(), Name: "Gold", Amount: decimal.NewFromInt(2), Unit: "OZ",
			}}},
		},
	}
	require.NoError(t, svc.SaveFetched(real))
	require.NoError(t, svc.SaveManual(manual))

	merged, err := svc.Merged(domain.PositionQuery{})
	require.NoError(t, err)
	got := merged[entityID]
	assert.Len(t, got.Products.Accounts().Entries, 1)
	assert.Len(t, got.Products.Commodities().Entries, 1)
	assert.True(t, got.IsReal)

	// real-only filter omits the manual products
	realOnly := true
	merged, err = svc.Merged(domain.PositionQuery{Real: &realOnly})
	require.NoError(t, err)
	assert.Nil(t, merged[entityID].Products.Commodities())
}

func TestMergedVirtualOnlyOmitsFetched(t *testing.T) {
	svc, repo := newTestService(t)
	entityID := uuid.New()
	seedEntity(t, repo, entityID)

	real := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{domain.ProductAccount: accountsOf("300")},
	}
	manual := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{
			domain.ProductCommodity: &domain.Commodities{Entries: []domain.Commodity{{
				ID: uuid.New(), Name: "Silver", Amount: decimal.NewFromInt(5), Unit: "OZ",
			}}},
		},
	}
	require.NoError(t, svc.SaveFetched(real))
	require.NoError(t, svc.SaveManual(manual))

	virtualOnly := false
	merged, err := svc.Merged(domain.PositionQuery{Real: &virtualOnly})
	require.NoError(t, err)
	got := merged[entityID]
	assert.Nil(t, got.Products.Accounts())
	assert.Len(t, got.Products.Commodities().Entries, 1)
	assert.False(t, got.IsReal)
}

func TestOnlyLatestImportSurvives(t *testing.T) {
	svc, repo := newTestService(t)
	entityID := uuid.New()
	seedEntity(t, repo, entityID)

	first := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{domain.ProductAccount: accountsOf("100")},
	}
	second := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{domain.ProductAccount: accountsOf("999")},
	}
	require.NoError(t, svc.SaveImported(first, "import-a"))
	require.NoError(t, svc.SaveImported(second, "import-b"))

	merged, err := svc.Merged(domain.PositionQuery{})
	require.NoError(t, err)
	require.Contains(t, merged, entityID)
	assert.Equal(t, "999", merged[entityID].Products.Accounts().Entries[0].Total.String())
}

func TestSaveRejectsDanglingCardReference(t *testing.T) {
	svc, repo := newTestService(t)
	entityID := uuid.New()
	seedEntity(t, repo, entityID)

	other := uuid.New()
	pos := domain.GlobalPosition{
		EntityID: entityID,
		Products: domain.Products{
			domain.ProductCard: &domain.Cards{Entries: []domain.Card{{
				ID: uuid.New(), Currency: "EUR", Type: domain.CardCredit, RelatedAccount: &other,
			}}},
		},
	}
	var inv *domain.InvalidFieldError
	require.ErrorAs(t, svc.SaveManual(pos), &inv)
}

func TestSaveRegistersNewCryptoAssets(t *testing.T) {
	svc, repo := newTestService(t)
	entityID := uuid.New()
	seedEntity(t, repo, entityID)

	pos := domain.GlobalPosition{
		EntityID: entityID,
		Date:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Products: domain.Products{
			domain.ProductCrypto: &domain.CryptoCurrencies{Entries: []domain.CryptoWallet{{
				ID:      uuid.New(),
				Address: "0xdeadbeef",
				Assets: []domain.CryptoPosition{
					{ID: uuid.New(), Symbol: "eth", Name: "Ethereum", Amount: decimal.NewFromInt(2)},
					{ID: uuid.New(), Symbol: "USDC", Amount: decimal.NewFromInt(500), ContractAddress: "0xa0b8"},
				},
			}}},
		},
	}
	require.NoError(t, svc.SaveFetched(pos))

	eth, err := svc.assets.BySymbol("ETH")
	require.NoError(t, err)
	require.NotNil(t, eth)
	assert.Equal(t, "Ethereum", eth.Name)
	assert.True(t, eth.Native)

	usdc, err := svc.assets.BySymbol("usdc")
	require.NoError(t, err)
	require.NotNil(t, usdc)
	assert.False(t, usdc.Native)
	assert.Equal(t, "0xa0b8", usdc.ContractAddress)

	loaded, err := repo.GetLatestReal(entityID)
	require.NoError(t, err)
	holdings := loaded.Products.Crypto().Entries[0].Assets
	require.NotNil(t, holdings[0].AssetID)
	assert.Equal(t, eth.ID, *holdings[0].AssetID)
}

func TestSaveReusesRegisteredCryptoAssets(t *testing.T) {
	svc, repo := newTestService(t)
	entityID := uuid.New()
	seedEntity(t, repo, entityID)

	wallet := func(day int) domain.GlobalPosition {
		return domain.GlobalPosition{
			EntityID: entityID,
			Date:     time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC),
			Products: domain.Products{
				domain.ProductCrypto: &domain.CryptoCurrencies{Entries: []domain.CryptoWallet{{
					ID:     uuid.New(),
					Assets: []domain.CryptoPosition{{ID: uuid.New(), Symbol: "BTC", Amount: decimal.NewFromInt(1)}},
				}}},
			},
		}
	}
	require.NoError(t, svc.SaveFetched(wallet(1)))
	require.NoError(t, svc.SaveFetched(wallet(2)))

	first, err := repo.GetLatestReal(entityID)
	require.NoError(t, err)
	btc, err := svc.assets.BySymbol("BTC")
	require.NoError(t, err)
	require.NotNil(t, btc)
	require.NotNil(t, first.Products.Crypto().Entries[0].Assets[0].AssetID)
	assert.Equal(t, btc.ID, *first.Products.Crypto().Entries[0].Assets[0].AssetID)
}
