package flows

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/moneta/internal/database"
	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
}

func TestUpcomingExpandsPeriodicFlows(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(domain.PeriodicFlow{
		Name:      "Salary",
		Amount:    decimal.NewFromInt(2000),
		Currency:  "EUR",
		FlowType:  domain.FlowEarning,
		Frequency: domain.FreqMonthly,
		Enabled:   true,
		Since:     dates.New(2025, 1, 28),
	})
	require.NoError(t, err)

	events, err := svc.Upcoming(dates.New(2025, 2, 1), dates.New(2025, 4, 30))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, dates.New(2025, 2, 28), events[0].Date)
	assert.Equal(t, dates.New(2025, 3, 28), events[1].Date)
	assert.Equal(t, dates.New(2025, 4, 28), events[2].Date)
	assert.Equal(t, "Salary", events[0].Name)
	assert.False(t, events[0].Pending)
}

func TestUpcomingIncludesPendingFlowsInWindow(t *testing.T) {
	svc := newTestService(t)
	inWindow := dates.New(2025, 3, 15)
	outOfWindow := dates.New(2025, 6, 1)

	_, err := svc.CreatePending(domain.PendingFlow{
		Name: "Bonus", Amount: decimal.NewFromInt(500), Currency: "EUR",
		FlowType: domain.FlowEarning, Enabled: true, Date: &inWindow,
	})
	require.NoError(t, err)
	_, err = svc.CreatePending(domain.PendingFlow{
		Name: "Invoice", Amount: decimal.NewFromInt(300), Currency: "EUR",
		FlowType: domain.FlowExpense, Enabled: true, Date: &outOfWindow,
	})
	require.NoError(t, err)

	events, err := svc.Upcoming(dates.New(2025, 3, 1), dates.New(2025, 3, 31))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Bonus", events[0].Name)
	assert.True(t, events[0].Pending)
}

func TestUpcomingSkipsDisabledAndLapsedFlows(t *testing.T) {
	svc := newTestService(t)
	until := dates.New(2025, 1, 31)

	_, err := svc.Create(domain.PeriodicFlow{
		Name: "Old rent", Amount: decimal.NewFromInt(900), Currency: "EUR",
		FlowType: domain.FlowExpense, Frequency: domain.FreqMonthly,
		Enabled: true, Since: dates.New(2024, 1, 1), Until: &until,
	})
	require.NoError(t, err)
	_, err = svc.Create(domain.PeriodicFlow{
		Name: "Paused gym", Amount: decimal.NewFromInt(40), Currency: "EUR",
		FlowType: domain.FlowExpense, Frequency: domain.FreqMonthly,
		Enabled: false, Since: dates.New(2024, 1, 1),
	})
	require.NoError(t, err)

	events, err := svc.Upcoming(dates.New(2025, 2, 1), dates.New(2025, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, events)
}
