package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/moneta/internal/clients/rates"
	"github.com/aristath/moneta/internal/database"
	"github.com/aristath/moneta/internal/events"
)

type stubSource struct {
	quotes map[string]*rates.Quotes
}

func (s *stubSource) Rates(_ context.Context, base string) (*rates.Quotes, error) {
	return s.quotes[base], nil
}

func TestRefreshStoresTrackedPairsOnly(t *testing.T) {
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	source := &stubSource{quotes: map[string]*rates.Quotes{
		"EUR": {Base: "EUR", Date: day, Rates: map[string]decimal.Decimal{
			"USD": decimal.RequireFromString("1.08"),
			"EUR": decimal.RequireFromString("1"),
			"JPY": decimal.RequireFromString("169.4"),
		}},
		"USD": {Base: "USD", Date: day, Rates: map[string]decimal.Decimal{
			"EUR": decimal.RequireFromString("0.9259"),
		}},
	}}

	svc := NewService(NewRepository(db.Conn(), log), source, events.NewManager(log), nil, log)
	require.NoError(t, svc.Refresh(context.Background()))

	stored, err := svc.GetAll()
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "EUR", stored[0].Base)
	assert.Equal(t, "USD", stored[0].Quote)
	assert.Equal(t, "1.08", stored[0].Rate.String())
	assert.Equal(t, "USD", stored[1].Base)
	assert.Equal(t, "0.9259", stored[1].Rate.String())
	assert.True(t, stored[0].Date.Equal(day))
}

func TestRefreshOverwritesStaleRates(t *testing.T) {
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	source := &stubSource{quotes: map[string]*rates.Quotes{
		"EUR": {Base: "EUR", Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Rates: map[string]decimal.Decimal{"USD": decimal.RequireFromString("1.08")}},
		"USD": {Base: "USD", Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Rates: map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.9259")}},
	}}
	svc := NewService(NewRepository(db.Conn(), log), source, events.NewManager(log), nil, log)
	require.NoError(t, svc.Refresh(context.Background()))

	source.quotes["EUR"].Rates["USD"] = decimal.RequireFromString("1.10")
	require.NoError(t, svc.Refresh(context.Background()))

	stored, err := svc.GetAll()
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "1.1", stored[0].Rate.String())
}
