package contributions

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

func contribution(freq domain.FlowFrequency, since dates.Date) domain.PeriodicContribution {
	return domain.PeriodicContribution{
		Target:    "IE00BK5BQT80",
		Amount:    decimal.NewFromInt(100),
		Currency:  "EUR",
		Since:     since,
		Frequency: freq,
		Active:    true,
	}
}

func TestUpcomingWeeklySteppingFromAnchor(t *testing.T) {
	c := contribution(domain.FreqWeekly, dates.New(2025, 1, 6)) // a Monday
	got := Upcoming(c, dates.New(2025, 2, 1), dates.New(2025, 2, 28))
	assert.Equal(t, []dates.Date{
		dates.New(2025, 2, 3),
		dates.New(2025, 2, 10),
		dates.New(2025, 2, 17),
		dates.New(2025, 2, 24),
	}, got)
}

func TestUpcomingBiweeklyKeepsPhase(t *testing.T) {
	c := contribution(domain.FreqBiweekly, dates.New(2025, 1, 6))
	got := Upcoming(c, dates.New(2025, 2, 1), dates.New(2025, 2, 28))
	assert.Equal(t, []dates.Date{
		dates.New(2025, 2, 3),
		dates.New(2025, 2, 17),
	}, got)
}

func TestUpcomingMonthlyClampsShortMonths(t *testing.T) {
	c := contribution(domain.FreqMonthly, dates.New(2025, 1, 31))
	got := Upcoming(c, dates.New(2025, 2, 1), dates.New(2025, 4, 30))
	assert.Equal(t, []dates.Date{
		dates.New(2025, 2, 28),
		dates.New(2025, 3, 31),
		dates.New(2025, 4, 30),
	}, got)
}

func TestUpcomingQuarterlyWindowBoundsInclusive(t *testing.T) {
	c := contribution(domain.FreqQuarterly, dates.New(2025, 1, 15))
	got := Upcoming(c, dates.New(2025, 1, 15), dates.New(2025, 7, 15))
	assert.Equal(t, []dates.Date{
		dates.New(2025, 1, 15),
		dates.New(2025, 4, 15),
		dates.New(2025, 7, 15),
	}, got)
}

func TestUpcomingHonorsUntilAndActive(t *testing.T) {
	until := dates.New(2025, 3, 1)
	c := contribution(domain.FreqMonthly, dates.New(2025, 1, 1))
	c.Until = &until
	got := Upcoming(c, dates.New(2025, 1, 1), dates.New(2025, 12, 31))
	assert.Equal(t, []dates.Date{
		dates.New(2025, 1, 1),
		dates.New(2025, 2, 1),
		dates.New(2025, 3, 1),
	}, got)

	c.Active = false
	assert.Nil(t, Upcoming(c, dates.New(2025, 1, 1), dates.New(2025, 12, 31)))
}

func TestUpcomingDailyCoversWindow(t *testing.T) {
	c := contribution(domain.FreqDaily, dates.New(2025, 1, 1))
	got := Upcoming(c, dates.New(2025, 2, 1), dates.New(2025, 2, 3))
	assert.Len(t, got, 3)
	assert.Equal(t, dates.New(2025, 2, 1), got[0])
	assert.Equal(t, dates.New(2025, 2, 3), got[2])
}
