package imports

import (
	"encoding/json"
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
	"github.com/aristath/moneta/internal/modules/entity"
	"github.com/aristath/moneta/internal/modules/fetch"
	"github.com/aristath/moneta/internal/modules/position"
	"github.com/aristath/moneta/internal/modules/transactions"
)

type fixture struct {
	service   *Service
	entities  *entity.Service
	positions *position.Service
	txs       *transactions.Service
	registry  *fetch.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	ev := events.NewManager(log)

	entitySvc := entity.NewService(
		entity.NewRepository(db.Conn(), log),
		entity.NewCredentialsRepository(db.Conn(), log),
		entity.NewSessionsRepository(db.Conn(), log),
		ev, log,
	)
	posSvc := position.NewService(position.NewRepository(db.Conn(), log), position.NewAssetRegistry(db.Conn(), log), ev, log)
	txSvc := transactions.NewService(transactions.NewRepository(db.Conn(), log), ev, log)
	registry := fetch.NewRepository(db.Conn(), log)

	svc := NewService(entitySvc, posSvc, txSvc, registry, ev, log)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{
		service:   svc,
		entities:  entitySvc,
		positions: posSvc,
		txs:       txSvc,
		registry:  registry,
	}
}

func accountRows(t *testing.T, total string) map[string]json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(&domain.Accounts{Entries: []domain.Account{{
		ID:       uuid.New(),
		Total:    decimal.RequireFromString(total),
		Currency: "EUR",
		Type:     domain.AccountChecking,
	}}})
	require.NoError(t, err)
	return map[string]json.RawMessage{string(domain.ProductAccount): raw}
}

func TestImportCreatesManualEntityAndPosition(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Run(Request{
		Feature: domain.FeaturePosition,
		Entities: []EntityData{{
			Entity:   "My Broker",
			Products: accountRows(t, "1500"),
		}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.ImportID)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "My Broker", result.Created[0].Name)
	assert.Equal(t, domain.EntityOriginManual, result.Created[0].Origin)
	assert.Empty(t, result.Errors)

	merged, err := f.positions.Merged(domain.PositionQuery{})
	require.NoError(t, err)
	pos, ok := merged[result.Created[0].ID]
	require.True(t, ok)
	assert.Equal(t, domain.SourceImported, pos.Source)
	assert.False(t, pos.IsReal)
	require.NotNil(t, pos.Products.Accounts())
	assert.Equal(t, "1500", pos.Products.Accounts().Entries[0].Total.String())

	records, err := f.registry.LatestImportRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.Created[0].ID, records[0].EntityID)
	assert.Equal(t, domain.FeaturePosition, records[0].Feature)
}

func TestImportMatchesExistingEntityByName(t *testing.T) {
	f := newFixture(t)
	existing, err := f.entities.CreateManual("My Broker", domain.EntityTypeFinancialInstitution)
	require.NoError(t, err)

	result, err := f.service.Run(Request{
		Feature: domain.FeaturePosition,
		Entities: []EntityData{{
			Entity:   "My Broker",
			Products: accountRows(t, "200"),
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Created)

	merged, err := f.positions.Merged(domain.PositionQuery{})
	require.NoError(t, err)
	_, ok := merged[existing.ID]
	assert.True(t, ok)
}

func TestImportPreviewWritesNothing(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Run(Request{
		Feature: domain.FeaturePosition,
		Preview: true,
		Entities: []EntityData{{
			Entity:   "Sheet Bank",
			Products: accountRows(t, "42"),
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.ImportID)
	require.Len(t, result.Created, 1)
	require.Len(t, result.Positions, 1)

	all, err := f.entities.All()
	require.NoError(t, err)
	for _, e := range all {
		assert.NotEqual(t, "Sheet Bank", e.Name)
	}

	records, err := f.registry.LatestImportRecords()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestImportTransactionsSkipsInvalidEntries(t *testing.T) {
	f := newFixture(t)

	valid := domain.Transactions{Investment: []domain.InvestmentTx{{
		BaseTx: domain.BaseTx{
			Name:        "Corp Bond",
			Amount:      decimal.RequireFromString("1000"),
			Currency:    "EUR",
			Type:        domain.TxInvestment,
			Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			ProductType: domain.ProductFactoring,
		},
	}}}
	invalid := domain.Transactions{Account: []domain.AccountTx{{
		BaseTx: domain.BaseTx{
			Name: "No currency",
			Type: domain.TxInterest,
			Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}}}

	result, err := f.service.Run(Request{
		Feature: domain.FeatureTransactions,
		Entities: []EntityData{
			{Entity: "Good Bank", Transactions: &valid},
			{Entity: "Bad Bank", Transactions: &invalid},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Bad Bank", result.Errors[0].Entry)

	saved, err := f.txs.Get(domain.TransactionQuery{})
	require.NoError(t, err)
	require.Len(t, saved.Investment, 1)
	assert.Empty(t, saved.Account)
	assert.Equal(t, domain.SourceImported, saved.Investment[0].Source)
	assert.False(t, saved.Investment[0].IsRealEnt)

	all, err := f.entities.All()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range all {
		names[e.Name] = true
	}
	assert.True(t, names["Good Bank"])
	assert.False(t, names["Bad Bank"])
}

func TestImportRejectsBadFeature(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Run(Request{Entities: []EntityData{{Entity: "X"}}})
	var mf *domain.MissingFieldsError
	require.ErrorAs(t, err, &mf)

	_, err = f.service.Run(Request{
		Feature:  domain.FeatureHistoric,
		Entities: []EntityData{{Entity: "X"}},
	})
	var inv *domain.InvalidFieldError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "feature", inv.Field)
}

func TestImportWhileRunningConflicts(t *testing.T) {
	f := newFixture(t)
	f.service.mu.Lock()
	defer f.service.mu.Unlock()

	_, err := f.service.Run(Request{
		Feature:  domain.FeaturePosition,
		Entities: []EntityData{{Entity: "X", Products: accountRows(t, "1")}},
	})
	assert.ErrorIs(t, err, domain.ErrExecutionConflict)
}
