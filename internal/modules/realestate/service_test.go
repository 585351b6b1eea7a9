package realestate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/moneta/internal/database"
	"github.com/aristath/moneta/internal/domain"
	flowsmod "github.com/aristath/moneta/internal/modules/flows"
	"github.com/aristath/moneta/pkg/dates"
	"github.com/aristath/moneta/pkg/dec"
	"github.com/aristath/moneta/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *flowsmod.Repository) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.Nop()
	flowsRepo := flowsmod.NewRepository(db.Conn(), log)
	repo := NewRepository(db.Conn(), log)
	return NewService(repo, flowsRepo, log), flowsRepo
}

func sampleProperty() domain.RealEstate {
	return domain.RealEstate{
		BasicInfo: domain.RealEstateBasicInfo{Name: "City flat", IsRented: true},
		Location:  domain.RealEstateLocation{Address: "1 Main St"},
		PurchaseInfo: domain.RealEstatePurchaseInfo{
			Date:     dates.New(2020, time.June, 1),
			Price:    dec.MustParse("250000"),
			Expenses: dec.MustParse("5000"),
			Taxes:    dec.MustParse("20000"),
		},
		Valuation: domain.RealEstateValuationInfo{
			EstimatedMarketValue: dec.MustParse("280000"),
		},
		Currency: "EUR",
	}
}

func rentFlow() domain.RealEstateFlow {
	return domain.RealEstateFlow{
		FlowSubtype: domain.REFlowRent,
		Flow: &domain.PeriodicFlow{
			Name:      "Rent",
			Amount:    dec.MustParse("1200"),
			Currency:  "EUR",
			FlowType:  domain.FlowEarning,
			Frequency: domain.FreqMonthly,
			Enabled:   true,
			Since:     dates.New(2024, time.January, 1),
		},
	}
}

func TestCreatePersistsLinkedFlows(t *testing.T) {
	svc, flowsRepo := newTestService(t)

	created, err := svc.Create(func() domain.RealEstate {
		p := sampleProperty()
		p.Flows = []domain.RealEstateFlow{rentFlow()}
		return p
	}())
	require.NoError(t, err)
	require.Len(t, created.Flows, 1)
	require.NotEqual(t, uuid.Nil, created.Flows[0].PeriodicFlowID)

	stored, err := flowsRepo.GetByID(created.Flows[0].PeriodicFlowID)
	require.NoError(t, err)
	assert.True(t, stored.Linked)
	assert.Equal(t, "Rent", stored.Name)

	loaded, err := svc.GetAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Len(t, loaded[0].Flows, 1)
	require.NotNil(t, loaded[0].Flows[0].Flow)
	assert.Equal(t, "1200", loaded[0].Flows[0].Flow.Amount.String())
	assert.Equal(t, "275000", loaded[0].TotalCost().String())
}

func TestUpdateRemovesUnassignedFlows(t *testing.T) {
	svc, flowsRepo := newTestService(t)

	p := sampleProperty()
	p.Flows = []domain.RealEstateFlow{rentFlow()}
	created, err := svc.Create(p)
	require.NoError(t, err)
	oldFlowID := created.Flows[0].PeriodicFlowID

	updated := created
	updated.Flows = nil
	require.NoError(t, svc.Update(updated, true))

	_, err = flowsRepo.GetByID(oldFlowID)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestUpdatePreservesCurrencyAndRentalData(t *testing.T) {
	svc, _ := newTestService(t)

	p := sampleProperty()
	rent := dec.MustParse("1200")
	p.RentalData = &domain.RealEstateRentalData{MonthlyRent: &rent}
	created, err := svc.Create(p)
	require.NoError(t, err)

	updated := created
	updated.Currency = "USD"
	updated.RentalData = nil
	require.NoError(t, svc.Update(updated, false))

	loaded, err := svc.GetAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "EUR", loaded[0].Currency)
	require.NotNil(t, loaded[0].RentalData)
	assert.Equal(t, "1200", loaded[0].RentalData.MonthlyRent.String())
}

func TestDeleteRemovesPropertyAndFlows(t *testing.T) {
	svc, flowsRepo := newTestService(t)

	p := sampleProperty()
	p.Flows = []domain.RealEstateFlow{rentFlow()}
	created, err := svc.Create(p)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(created.ID))

	_, err = flowsRepo.GetByID(created.Flows[0].PeriodicFlowID)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)

	remaining, err := svc.GetAll()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestLoanPayloadValidation(t *testing.T) {
	svc, _ := newTestService(t)

	p := sampleProperty()
	p.Flows = []domain.RealEstateFlow{{
		FlowSubtype: domain.REFlowLoan,
		Payload:     map[string]any{"interest_rate": "not-a-number"},
		Flow: &domain.PeriodicFlow{
			Name:      "Mortgage",
			Amount:    dec.MustParse("800"),
			Currency:  "EUR",
			FlowType:  domain.FlowExpense,
			Frequency: domain.FreqMonthly,
			Enabled:   true,
			Since:     dates.New(2024, time.January, 1),
		},
	}}
	_, err := svc.Create(p)
	var inv *domain.InvalidFieldError
	require.ErrorAs(t, err, &inv)
}
