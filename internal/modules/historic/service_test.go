package historic

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
	"github.com/aristath/moneta/pkg/dates"
)

func newTestService(t *testing.T) (*Service, uuid.UUID) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	entityID := uuid.New()
	_, err = db.Exec(`
		INSERT INTO entities (id, name, type, origin) VALUES (?, 'CrowdEstate', 'FINANCIAL_INSTITUTION', 'NATIVE')
	`, entityID.String())
	require.NoError(t, err)

	return NewService(NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop()), entityID
}

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func invTx(name string, txType domain.TxType, amount string, date time.Time, fees string) domain.InvestmentTx {
	a, _ := decimal.NewFromString(amount)
	tx := domain.InvestmentTx{
		BaseTx: domain.BaseTx{
			ID: uuid.New(), Ref: uuid.NewString(), Name: name,
			Amount: a, Currency: "EUR", Type: txType, Date: date,
			ProductType: domain.ProductRealEstateCF,
		},
		NetAmount: a,
	}
	if fees != "" {
		f, _ := decimal.NewFromString(fees)
		tx.Fees = &f
	}
	return tx
}

func TestReducePartitionsByTransactionType(t *testing.T) {
	svc, entityID := newTestService(t)

	maturity := dates.New(2025, 12, 31)
	historical := domain.HistoricalPosition{Products: domain.Products{
		domain.ProductRealEstateCF: &domain.RealEstateCFInvestments{Entries: []domain.RealEstateCFDetail{
			{
				ID: uuid.New(), Name: "Calle Mayor 12",
				Amount:         decimal.NewFromInt(1000),
				PendingAmount:  decimal.NewFromInt(600),
				Currency:       "EUR",
				InterestRate:   decimal.NewFromFloat(0.10),
				Maturity:       maturity,
				State:          "IN_PROGRESS",
				LastInvestDate: day(1),
			},
			{
				ID: uuid.New(), Name: "Ghost Project",
				Amount:         decimal.NewFromInt(50),
				Currency:       "EUR",
				LastInvestDate: day(2),
			},
		}},
	}}
	txs := domain.Transactions{Investment: []domain.InvestmentTx{
		invTx("Calle Mayor 12", domain.TxInvestment, "1000", day(1), "5"),
		invTx("Calle Mayor 12", domain.TxInterest, "25", day(10), ""),
		invTx("Calle Mayor 12", domain.TxRepayment, "400", day(20), ""),
		invTx("Another project", domain.TxInterest, "99", day(10), ""),
	}}

	entries, err := svc.Reduce(entityID, historical, txs)
	require.NoError(t, err)
	// Ghost Project has no transactions and is skipped
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "1000", e.Invested.String())
	assert.Equal(t, "400", e.Repaid.String())
	assert.Equal(t, "25", e.Interests.String())
	// charges on the investment itself are not return charges
	assert.Equal(t, "0", e.Fees.String())
	require.NotNil(t, e.Returned)
	assert.Equal(t, "425", e.Returned.String())
	require.NotNil(t, e.NetReturn)
	assert.Equal(t, "425", e.NetReturn.String())
	require.NotNil(t, e.LastReturnTx)
	assert.Equal(t, 20, e.LastReturnTx.Day())
	assert.Equal(t, day(20), e.LastTxDate)
	// principal still pending: the project has not matured
	assert.Nil(t, e.EffectiveMaturity)
	assert.Len(t, e.RelatedTxs, 3)
}

func TestReduceFullRepaymentSetsEffectiveMaturity(t *testing.T) {
	svc, entityID := newTestService(t)

	historical := domain.HistoricalPosition{Products: domain.Products{
		domain.ProductRealEstateCF: &domain.RealEstateCFInvestments{Entries: []domain.RealEstateCFDetail{{
			ID: uuid.New(), Name: "Riverside",
			Amount:         decimal.NewFromInt(500),
			Currency:       "EUR",
			Maturity:       dates.New(2026, 6, 30),
			State:          "FINISHED",
			LastInvestDate: day(1),
		}}},
	}}
	txs := domain.Transactions{Investment: []domain.InvestmentTx{
		invTx("Riverside", domain.TxInvestment, "500", day(1), ""),
		invTx("Riverside", domain.TxRepayment, "500", day(15), ""),
		invTx("Riverside", domain.TxInterest, "40", day(15), ""),
	}}

	entries, err := svc.Reduce(entityID, historical, txs)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	require.NotNil(t, e.EffectiveMaturity)
	assert.Equal(t, dates.New(2025, 1, 15), *e.EffectiveMaturity)
	require.NotNil(t, e.NetReturn)
	assert.Equal(t, "540", e.NetReturn.String())
	require.NotNil(t, e.Returned)
	assert.Equal(t, "540", e.Returned.String())

	// round trip through the repository
	stored, err := svc.Get(domain.HistoricQuery{Entities: []uuid.UUID{entityID}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Riverside", stored[0].Name)
	require.NotNil(t, stored[0].RealEstateCF)
	assert.Equal(t, dates.New(2026, 6, 30), stored[0].RealEstateCF.Maturity)
}

func TestReduceCountsDividendsInInterests(t *testing.T) {
	svc, entityID := newTestService(t)

	historical := domain.HistoricalPosition{Products: domain.Products{
		domain.ProductRealEstateCF: &domain.RealEstateCFInvestments{Entries: []domain.RealEstateCFDetail{{
			ID: uuid.New(), Name: "Solar Park",
			Amount:         decimal.NewFromInt(1000),
			PendingAmount:  decimal.NewFromInt(900),
			Currency:       "EUR",
			State:          "IN_PROGRESS",
			LastInvestDate: day(1),
		}}},
	}}
	txs := domain.Transactions{Investment: []domain.InvestmentTx{
		invTx("Solar Park", domain.TxInvestment, "1000", day(1), ""),
		invTx("Solar Park", domain.TxRepayment, "100", day(10), ""),
		invTx("Solar Park", domain.TxInterest, "10", day(12), ""),
		invTx("Solar Park", domain.TxDividend, "5", day(14), "1"),
	}}

	entries, err := svc.Reduce(entityID, historical, txs)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "100", e.Repaid.String())
	assert.Equal(t, "15", e.Interests.String())
	assert.Equal(t, "1", e.Fees.String())
	require.NotNil(t, e.Returned)
	assert.Equal(t, "115", e.Returned.String())
	require.NotNil(t, e.NetReturn)
	assert.Equal(t, "114", e.NetReturn.String())
	require.NotNil(t, e.LastReturnTx)
	assert.Equal(t, 10, e.LastReturnTx.Day())
	assert.Equal(t, day(14), e.LastTxDate)
}

func TestReduceGroupsTranchesAcrossBuckets(t *testing.T) {
	svc, entityID := newTestService(t)

	historical := domain.HistoricalPosition{Products: domain.Products{
		domain.ProductFactoring: &domain.FactoringInvestments{Entries: []domain.FactoringDetail{{
			ID: uuid.New(), Name: "Invoice 77",
			Amount:         decimal.NewFromInt(300),
			Currency:       "EUR",
			InterestRate:   decimal.NewFromFloat(0.08),
			Maturity:       dates.New(2025, 9, 30),
			State:          "IN_PROGRESS",
			LastInvestDate: day(1),
		}}},
		domain.ProductRealEstateCF: &domain.RealEstateCFInvestments{Entries: []domain.RealEstateCFDetail{{
			ID: uuid.New(), Name: "Invoice 77",
			Amount:         decimal.NewFromInt(700),
			Currency:       "EUR",
			State:          "IN_PROGRESS",
			LastInvestDate: day(3),
		}}},
	}}

	inv := invTx("Invoice 77", domain.TxInvestment, "300", day(1), "")
	inv.ProductType = domain.ProductFactoring
	txs := domain.Transactions{Investment: []domain.InvestmentTx{
		inv,
		invTx("Invoice 77", domain.TxRepayment, "300", day(20), ""),
	}}

	entries, err := svc.Reduce(entityID, historical, txs)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "1000", e.Invested.String())
	assert.Equal(t, day(3), e.LastInvestDate)
	assert.Equal(t, domain.ProductFactoring, e.ProductType)
	require.NotNil(t, e.Factoring)
	assert.Nil(t, e.RealEstateCF)
	// factoring carries no pending-principal field, so repayments alone
	// never mark the investment matured
	assert.Nil(t, e.EffectiveMaturity)
}

func TestReduceSkipsUnsupportedProductTypes(t *testing.T) {
	svc, entityID := newTestService(t)

	historical := domain.HistoricalPosition{Products: domain.Products{
		domain.ProductRealEstateCF: &domain.RealEstateCFInvestments{Entries: []domain.RealEstateCFDetail{{
			ID: uuid.New(), Name: "Mislabelled",
			Amount:         decimal.NewFromInt(100),
			Currency:       "EUR",
			LastInvestDate: day(1),
		}}},
	}}
	inv := invTx("Mislabelled", domain.TxInvestment, "100", day(1), "")
	inv.ProductType = domain.ProductFund
	txs := domain.Transactions{Investment: []domain.InvestmentTx{inv}}

	entries, err := svc.Reduce(entityID, historical, txs)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSummarize(t *testing.T) {
	svc, _ := newTestService(t)

	net1 := decimal.NewFromInt(100)
	net2 := decimal.NewFromInt(-50)
	returned1 := decimal.NewFromInt(1100)
	returned2 := decimal.NewFromInt(450)
	entries := []domain.HistoricEntry{
		{Invested: decimal.NewFromInt(1000), Returned: &returned1, NetReturn: &net1},
		{Invested: decimal.NewFromInt(500), Returned: &returned2, NetReturn: &net2},
	}

	summary := svc.Summarize(entries)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, "1500", summary.TotalInvested.String())
	assert.Equal(t, "1550", summary.TotalReturned.String())
	assert.Equal(t, "50", summary.TotalNet.String())
	require.NotNil(t, summary.MeanReturnPct)
	assert.InDelta(t, 0.0, *summary.MeanReturnPct, 1e-9)
	require.NotNil(t, summary.WeightedPct)
	// 0.1 weighted 1000 and -0.1 weighted 500
	assert.InDelta(t, 0.1*1000.0/1500.0-0.1*500.0/1500.0, *summary.WeightedPct, 1e-9)
	require.NotNil(t, summary.StdReturnPct)
}
