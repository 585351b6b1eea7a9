package forecast

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
	"github.com/aristath/moneta/pkg/dec"
)

func decPtr(s string) *decimal.Decimal {
	d := dec.MustParse(s)
	return &d
}

func datePtr(d dates.Date) *dates.Date { return &d }

var capitalGainsTax = dec.MustParse("0.19")

func TestFlowCashDeltaCountsOccurrencesPerCurrency(t *testing.T) {
	today := dates.New(2025, 1, 10)
	linked := domain.PeriodicFlow{
		ID: uuid.New(), Name: "Mortgage", Amount: dec.MustParse("850"),
		Currency: "EUR", FlowType: domain.FlowExpense,
		Frequency: domain.FreqMonthly, Enabled: true, Linked: true,
		Since: dates.New(2024, 1, 1),
	}
	result, err := Run(Input{
		Request: Request{TargetDate: dates.New(2025, 4, 10)},
		Today:   today,
		PeriodicFlows: []domain.PeriodicFlow{
			{
				ID: uuid.New(), Name: "Gym", Amount: dec.MustParse("100"),
				Currency: "EUR", FlowType: domain.FlowExpense,
				Frequency: domain.FreqMonthly, Enabled: true,
				Since: dates.New(2024, 1, 15),
			},
			linked,
		},
		PendingFlows: []domain.PendingFlow{{
			ID: uuid.New(), Name: "Bonus", Amount: dec.MustParse("50"),
			Currency: "EUR", FlowType: domain.FlowEarning, Enabled: true,
			Date: datePtr(dates.New(2025, 2, 1)),
		}},
		CapitalGainsTax: capitalGainsTax,
	})
	require.NoError(t, err)

	// three gym charges (Jan, Feb, Mar 15th) minus the one-off bonus; the
	// linked mortgage flow belongs to a property and is skipped here
	require.Len(t, result.CashDelta, 1)
	assert.Equal(t, "EUR", result.CashDelta[0].Currency)
	assert.Equal(t, "-250", result.CashDelta[0].Amount.String())
}

func TestContributionsBuyIntoStockAndDrainCash(t *testing.T) {
	entityID := uuid.New()
	positions := map[uuid.UUID]domain.GlobalPosition{
		entityID: {
			ID: uuid.New(), EntityID: entityID, IsReal: true,
			Products: domain.Products{
				domain.ProductStockETF: &domain.StockInvestments{Entries: []domain.StockDetail{{
					ID: uuid.New(), Name: "World ETF", ISIN: "IE00TEST0001",
					Shares:      dec.MustParse("10"),
					MarketValue: dec.MustParse("1000"), Currency: "EUR",
					Type:              domain.EquityETF,
					InitialInvestment: decPtr("800"),
				}}},
			},
		},
	}
	result, err := Run(Input{
		Request:   Request{TargetDate: dates.New(2026, 1, 1)},
		Today:     dates.New(2025, 1, 1),
		Positions: positions,
		Contributions: []domain.PeriodicContribution{{
			ID: uuid.New(), Target: "IE00TEST0001", TargetType: domain.TargetStockETF,
			Amount: dec.MustParse("500"), Currency: "EUR",
			Since: dates.New(2024, 6, 1), Frequency: domain.FreqMonthly,
			Active: true, EntityID: entityID,
		}},
		CapitalGainsTax: capitalGainsTax,
	})
	require.NoError(t, err)

	stocks := result.Positions[entityID].Products.Stocks()
	require.NotNil(t, stocks)
	entry := stocks.Entries[0]
	assert.Equal(t, "7000", entry.MarketValue.String())
	assert.Equal(t, "6800", entry.InitialInvestment.String())

	require.Len(t, result.CashDelta, 1)
	assert.Equal(t, "-6000", result.CashDelta[0].Amount.String())

	// the stored position is untouched
	original := positions[entityID].Products.Stocks().Entries[0]
	assert.Equal(t, "1000", original.MarketValue.String())
}

func TestMaturingDepositCreditsPreferredAccount(t *testing.T) {
	entityID := uuid.New()
	result, err := Run(Input{
		Request: Request{TargetDate: dates.New(2026, 1, 1)},
		Today:   dates.New(2025, 1, 1),
		Positions: map[uuid.UUID]domain.GlobalPosition{
			entityID: {
				ID: uuid.New(), EntityID: entityID, IsReal: true,
				Products: domain.Products{
					domain.ProductAccount: &domain.Accounts{Entries: []domain.Account{{
						ID: uuid.New(), Total: dec.MustParse("500"),
						Currency: "EUR", Type: domain.AccountChecking,
					}}},
					domain.ProductDeposit: &domain.Deposits{Entries: []domain.Deposit{{
						ID: uuid.New(), Name: "12m deposit",
						Amount: dec.MustParse("10000"), Currency: "EUR",
						InterestRate:      dec.MustParse("0.03"),
						Maturity:          dates.New(2025, 6, 30),
						ExpectedInterests: dec.MustParse("300"),
					}}},
				},
			},
		},
		CapitalGainsTax: capitalGainsTax,
	})
	require.NoError(t, err)

	pos := result.Positions[entityID]
	require.Empty(t, pos.Products.Deposits().Entries)
	// 10000 + 300 * (1 - 0.19) on top of the existing 500
	assert.Equal(t, "10743", pos.Products.Accounts().Entries[0].Total.String())
	assert.Empty(t, result.CashDelta)
}

func TestFactoringPayoutPrefersProfitabilityOverRate(t *testing.T) {
	entityID := uuid.New()
	result, err := Run(Input{
		Request: Request{TargetDate: dates.New(2026, 1, 1)},
		Today:   dates.New(2025, 1, 1),
		Positions: map[uuid.UUID]domain.GlobalPosition{
			entityID: {
				ID: uuid.New(), EntityID: entityID, IsReal: true,
				Products: domain.Products{
					domain.ProductFactoring: &domain.FactoringInvestments{Entries: []domain.FactoringDetail{{
						ID: uuid.New(), Name: "Invoice 42",
						Amount: dec.MustParse("1000"), Currency: "EUR",
						InterestRate:  dec.MustParse("0.05"),
						Maturity:      dates.New(2025, 3, 1),
						Profitability: decPtr("0.10"),
					}}},
				},
			},
		},
		CapitalGainsTax: capitalGainsTax,
	})
	require.NoError(t, err)

	// no account in the position: 1000 + 100*0.81 folds into the cash bucket
	require.Len(t, result.CashDelta, 1)
	assert.Equal(t, "1081", result.CashDelta[0].Amount.String())
	assert.Empty(t, result.Positions[entityID].Products.Factoring().Entries)
}

func TestMonthlyRevaluationCompoundsMarketValue(t *testing.T) {
	entityID := uuid.New()
	result, err := Run(Input{
		Request: Request{
			TargetDate:              dates.New(2026, 1, 1),
			AvgAnnualMarketIncrease: decPtr("0.06"),
		},
		Today: dates.New(2025, 1, 1),
		Positions: map[uuid.UUID]domain.GlobalPosition{
			entityID: {
				ID: uuid.New(), EntityID: entityID, IsReal: true,
				Products: domain.Products{
					domain.ProductStockETF: &domain.StockInvestments{Entries: []domain.StockDetail{{
						ID: uuid.New(), Name: "World ETF", ISIN: "IE00TEST0001",
						Shares:      dec.MustParse("12"),
						MarketValue: dec.MustParse("1200"), Currency: "EUR",
						Type:              domain.EquityETF,
						InitialInvestment: decPtr("1000"),
					}}},
				},
			},
		},
		CapitalGainsTax: capitalGainsTax,
	})
	require.NoError(t, err)

	mv := result.Positions[entityID].Products.Stocks().Entries[0].MarketValue
	assert.InDelta(t, 1274.0134, mv.InexactFloat64(), 0.001)
}

func TestPropertyEquityProjection(t *testing.T) {
	flowID := uuid.New()
	property := domain.RealEstate{
		ID:        uuid.New(),
		BasicInfo: domain.RealEstateBasicInfo{Name: "Flat"},
		Valuation: domain.RealEstateValuationInfo{
			EstimatedMarketValue: dec.MustParse("200000"),
			AnnualAppreciation:   decPtr("0.03"),
		},
		Currency: "EUR",
		Flows: []domain.RealEstateFlow{{
			PeriodicFlowID: flowID,
			FlowSubtype:    domain.REFlowLoan,
			Payload: map[string]any{
				"type":                  "MORTGAGE",
				"interest_type":         "FIXED",
				"interest_rate":         "0.03",
				"principal_outstanding": "100000",
			},
			Flow: &domain.PeriodicFlow{
				ID: flowID, Name: "Mortgage", Amount: dec.MustParse("700"),
				Currency: "EUR", FlowType: domain.FlowExpense,
				Frequency: domain.FreqMonthly, Enabled: true, Linked: true,
				Since: dates.New(2020, 5, 1),
			},
		}},
	}
	result, err := Run(Input{
		Request:         Request{TargetDate: dates.New(2026, 1, 1)},
		Today:           dates.New(2025, 1, 1),
		Properties:      []domain.RealEstate{property},
		CapitalGainsTax: capitalGainsTax,
	})
	require.NoError(t, err)

	require.Len(t, result.RealEstate, 1)
	eq := result.RealEstate[0]
	assert.Equal(t, property.ID, eq.ID)
	assert.Equal(t, "100000", eq.EquityNow.String())
	assert.Equal(t, "100000", eq.PrincipalOutstandingNow.String())
	assert.InDelta(t, 94525.13, eq.PrincipalOutstandingAtTarget.InexactFloat64(), 0.01)
	assert.InDelta(t, 111558.06, eq.EquityAtTarget.InexactFloat64(), 0.01)
}

func TestAppreciationScalars(t *testing.T) {
	result, err := Run(Input{
		Request: Request{
			TargetDate:                 dates.New(2026, 1, 1),
			AvgAnnualCryptoIncrease:    decPtr("0.12"),
			AvgAnnualCommodityIncrease: decPtr("-0.02"),
		},
		Today:           dates.New(2025, 1, 1),
		CapitalGainsTax: capitalGainsTax,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.126825, result.CryptoAppreciation.InexactFloat64(), 0.000001)
	assert.True(t, result.CommodityAppreciation.IsZero())
}

func TestTargetMustBeInTheFuture(t *testing.T) {
	today := dates.New(2025, 1, 1)

	_, err := Run(Input{Request: Request{TargetDate: today}, Today: today})
	var inv *domain.InvalidFieldError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "target_date", inv.Field)

	_, err = Run(Input{Today: today})
	var mf *domain.MissingFieldsError
	require.ErrorAs(t, err, &mf)
}

func TestRealEstateCashDeltaWithTaxes(t *testing.T) {
	rentID, costID, loanID := uuid.New(), uuid.New(), uuid.New()
	property := domain.RealEstate{
		ID:        uuid.New(),
		BasicInfo: domain.RealEstateBasicInfo{Name: "Rented flat", IsRented: true},
		Currency:  "EUR",
		RentalData: &domain.RealEstateRentalData{
			MarginalTaxRate: decPtr("0.30"),
			VacancyRate:     decPtr("0.10"),
		},
		Flows: []domain.RealEstateFlow{
			{
				PeriodicFlowID: rentID,
				FlowSubtype:    domain.REFlowRent,
				Flow: &domain.PeriodicFlow{
					ID: rentID, Name: "Rent", Amount: dec.MustParse("1000"),
					Currency: "EUR", FlowType: domain.FlowEarning,
					Frequency: domain.FreqMonthly, Enabled: true, Linked: true,
					Since: dates.New(2024, 1, 1),
				},
			},
			{
				PeriodicFlowID: costID,
				FlowSubtype:    domain.REFlowCost,
				Payload:        map[string]any{"tax_deductible": true},
				Flow: &domain.PeriodicFlow{
					ID: costID, Name: "Community", Amount: dec.MustParse("1200"),
					Currency: "EUR", FlowType: domain.FlowExpense,
					Frequency: domain.FreqYearly, Enabled: true, Linked: true,
					Since: dates.New(2024, 1, 1),
				},
			},
			{
				PeriodicFlowID: loanID,
				FlowSubtype:    domain.REFlowLoan,
				Payload: map[string]any{
					"type": "MORTGAGE", "interest_type": "FIXED",
					"interest_rate": "0.03", "principal_outstanding": "50000",
					"monthly_interests": "125",
				},
				Flow: &domain.PeriodicFlow{
					ID: loanID, Name: "Mortgage", Amount: dec.MustParse("400"),
					Currency: "EUR", FlowType: domain.FlowExpense,
					Frequency: domain.FreqMonthly, Enabled: true, Linked: true,
					Since: dates.New(2022, 1, 1),
				},
			},
		},
	}
	result, err := Run(Input{
		Request:         Request{TargetDate: dates.New(2025, 7, 1)},
		Today:           dates.New(2025, 1, 1),
		Properties:      []domain.RealEstate{property},
		CapitalGainsTax: capitalGainsTax,
	})
	require.NoError(t, err)

	// monthly income 1000*0.9=900, costs 100, loan 400
	// deductible = 100 (flagged) + 125 interests = 225; taxes = (900-225)*0.3 = 202.50
	// net per month = 900 - 100 - 400 - 202.50 = 197.50; over 6 months = 1185
	require.Len(t, result.CashDelta, 1)
	assert.Equal(t, "1185", result.CashDelta[0].Amount.String())
}
