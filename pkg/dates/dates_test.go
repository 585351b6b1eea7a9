package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddMonthsClampsDay(t *testing.T) {
	tests := []struct {
		name   string
		start  Date
		months int
		want   Date
	}{
		{"plain step", New(2024, time.March, 15), 1, New(2024, time.April, 15)},
		{"jan 31 to feb", New(2024, time.January, 31), 1, New(2024, time.February, 29)},
		{"jan 31 non leap", New(2023, time.January, 31), 1, New(2023, time.February, 28)},
		{"year rollover", New(2023, time.November, 30), 3, New(2024, time.February, 29)},
		{"backwards", New(2024, time.March, 31), -1, New(2024, time.February, 29)},
		{"twelve months", New(2020, time.February, 29), 12, New(2021, time.February, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.start.AddMonths(tt.months))
		})
	}
}

func TestFullMonthsBetween(t *testing.T) {
	tests := []struct {
		name string
		from Date
		to   Date
		want int
	}{
		{"same day", New(2024, time.May, 1), New(2024, time.May, 1), 0},
		{"reversed", New(2024, time.June, 1), New(2024, time.May, 1), 0},
		{"exact months", New(2020, time.January, 15), New(2040, time.January, 15), 240},
		{"partial does not count", New(2024, time.January, 15), New(2024, time.February, 10), 0},
		{"clamped month end counts", New(2024, time.January, 31), New(2024, time.February, 29), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FullMonthsBetween(tt.from, tt.to))
		})
	}
}

func TestMonthsBetweenCountsPartial(t *testing.T) {
	assert.Equal(t, 1, MonthsBetween(New(2024, time.January, 15), New(2024, time.February, 10)))
	assert.Equal(t, 2, MonthsBetween(New(2024, time.January, 15), New(2024, time.March, 10)))
	assert.Equal(t, 0, MonthsBetween(New(2024, time.January, 15), New(2024, time.January, 15)))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 7, DaysBetween(New(2024, time.May, 1), New(2024, time.May, 8)))
	assert.Equal(t, -1, DaysBetween(New(2024, time.May, 2), New(2024, time.May, 1)))
}

func TestParseRoundTrip(t *testing.T) {
	d, err := ParseDate("2025-01-20")
	assert.NoError(t, err)
	assert.Equal(t, "2025-01-20", d.String())

	_, err = ParseDate("20-01-2025")
	assert.Error(t, err)
}
