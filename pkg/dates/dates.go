// Package dates provides the calendar-month arithmetic used by the loan,
// occurrence and forecast engines. time.AddDate rolls Jan 31 + 1 month into
// March; schedules here clamp to the last day of the shorter month instead,
// which is how installment and contribution dates behave.
package dates

import (
	"encoding/json"
	"time"
)

// Date is a calendar date without a time zone. The zero value is invalid.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New builds a Date.
func New(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// FromTime truncates a time to its calendar date in the time's location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current local calendar date.
func Today() Date {
	return FromTime(time.Now())
}

// Time returns midnight UTC of the date, for formatting and storage.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// ParseDate reads a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return FromTime(t), nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Before reports d < other.
func (d Date) Before(other Date) bool {
	return d.compare(other) < 0
}

// After reports d > other.
func (d Date) After(other Date) bool {
	return d.compare(other) > 0
}

// Equal reports d == other.
func (d Date) Equal(other Date) bool {
	return d.compare(other) == 0
}

func (d Date) compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return d.Year - other.Year
	case d.Month != other.Month:
		return int(d.Month) - int(other.Month)
	default:
		return d.Day - other.Day
	}
}

// Min returns the earlier of a and b.
func Min(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths steps forward (or back) whole calendar months, clamping the day
// to the target month's last day.
func (d Date) AddMonths(months int) Date {
	total := int(d.Month) - 1 + months
	year := d.Year + total/12
	month := time.Month(total%12 + 1)
	if total < 0 && total%12 != 0 {
		year--
		month = time.Month(total%12 + 13)
	}
	day := d.Day
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return Date{Year: year, Month: month, Day: day}
}

// AddDays steps forward whole days.
func (d Date) AddDays(days int) Date {
	return FromTime(d.Time().AddDate(0, 0, days))
}

// AddYears steps forward whole years, clamping Feb 29.
func (d Date) AddYears(years int) Date {
	return d.AddMonths(years * 12)
}

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to Date) int {
	return int(to.Time().Sub(from.Time()).Hours() / 24)
}

// FullMonthsBetween counts complete calendar months from from to to,
// returning 0 when to <= from. A partial trailing month does not count.
func FullMonthsBetween(from, to Date) int {
	if !to.After(from) {
		return 0
	}
	months := (to.Year-from.Year)*12 + int(to.Month) - int(from.Month)
	if to.Day < from.Day && to.Day != daysInMonth(to.Year, to.Month) {
		// Clamped month-ends (e.g. Jan 31 -> Feb 28) still complete the month.
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// MonthsBetween counts months from from to to, with any partial trailing
// month counting as one. Returns 0 when to <= from.
func MonthsBetween(from, to Date) int {
	if !to.After(from) {
		return 0
	}
	full := FullMonthsBetween(from, to)
	if from.AddMonths(full).Before(to) {
		return full + 1
	}
	return full
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON reads a YYYY-MM-DD string; empty means unset.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
