package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/pkg/dates"
)

// FlowType splits recurring money movements into income and outgo.
type FlowType string

const (
	FlowEarning FlowType = "EARNING"
	FlowExpense FlowType = "EXPENSE"
)

// FlowFrequency is how often a periodic flow or contribution recurs.
type FlowFrequency string

const (
	FreqDaily       FlowFrequency = "DAILY"
	FreqWeekly      FlowFrequency = "WEEKLY"
	FreqBiweekly    FlowFrequency = "EVERY_TWO_WEEKS"
	FreqMonthly     FlowFrequency = "MONTHLY"
	FreqBimonthly   FlowFrequency = "EVERY_TWO_MONTHS"
	FreqQuarterly   FlowFrequency = "QUARTERLY"
	FreqFourMonthly FlowFrequency = "EVERY_FOUR_MONTHS"
	FreqSemiannual  FlowFrequency = "SEMIANNUALLY"
	FreqYearly      FlowFrequency = "YEARLY"
)

// MonthlyTimes converts a frequency into occurrences per month, using the
// fixed normalization constants for sub-monthly frequencies.
func (f FlowFrequency) MonthlyTimes() decimal.Decimal {
	switch f {
	case FreqDaily:
		return decimal.NewFromInt(30)
	case FreqWeekly:
		return decimal.NewFromFloat(4.33)
	case FreqBiweekly:
		return decimal.NewFromFloat(2.17)
	case FreqMonthly:
		return decimal.NewFromInt(1)
	case FreqBimonthly:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(2))
	case FreqQuarterly:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	case FreqFourMonthly:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(4))
	case FreqSemiannual:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(6))
	case FreqYearly:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(12))
	default:
		return decimal.Zero
	}
}

// MonthStep returns the calendar step in months for month-granular
// frequencies, or 0 for day-granular ones.
func (f FlowFrequency) MonthStep() int {
	switch f {
	case FreqMonthly:
		return 1
	case FreqBimonthly:
		return 2
	case FreqQuarterly:
		return 3
	case FreqFourMonthly:
		return 4
	case FreqSemiannual:
		return 6
	case FreqYearly:
		return 12
	default:
		return 0
	}
}

// PeriodicFlow is a recurring earning or expense the user declares (salary,
// rent, subscriptions). Linked flows are owned by a real-estate record and
// cannot be edited directly.
type PeriodicFlow struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	FlowType  FlowType        `json:"flow_type"`
	Frequency FlowFrequency   `json:"frequency"`
	Category  string          `json:"category,omitempty"`
	Enabled   bool            `json:"enabled"`
	Since     dates.Date      `json:"since"`
	Until     *dates.Date     `json:"until,omitempty"`
	Icon      string          `json:"icon,omitempty"`
	Linked    bool            `json:"linked"`

	// MaxAmount caps variable flows in forecasts.
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
}

// NextOccurrence finds the first occurrence on or after the given day, or nil
// when the flow has lapsed. Month-granular frequencies step on the calendar
// with day-of-month clamping; day-granular ones step in fixed day counts.
func (p PeriodicFlow) NextOccurrence(from dates.Date) *dates.Date {
	if p.Until != nil && p.Until.Before(from) {
		return nil
	}
	next := p.Since
	if step := p.Frequency.MonthStep(); step > 0 {
		for i := 1; next.Before(from); i++ {
			next = p.Since.AddMonths(step * i)
		}
	} else {
		days := 1
		switch p.Frequency {
		case FreqWeekly:
			days = 7
		case FreqBiweekly:
			days = 14
		}
		for next.Before(from) {
			next = next.AddDays(days)
		}
	}
	if p.Until != nil && p.Until.Before(next) {
		return nil
	}
	return &next
}

// PendingFlow is a one-off expected movement (a bonus, an invoice) that a
// forecast consumes on its date.
type PendingFlow struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	FlowType FlowType        `json:"flow_type"`
	Category string          `json:"category,omitempty"`
	Enabled  bool            `json:"enabled"`
	Date     *dates.Date     `json:"date,omitempty"`
}
