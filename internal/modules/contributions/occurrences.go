package contributions

import (
	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// stepCap bounds calendar walks so a misconfigured contribution cannot spin
// for centuries. 2400 monthly steps covers 200 years.
const stepCap = 2400

// Upcoming lists the execution dates of a contribution inside [from, to],
// both inclusive. Inactive and lapsed contributions yield nothing.
func Upcoming(c domain.PeriodicContribution, from, to dates.Date) []dates.Date {
	if !c.Active || to.Before(from) {
		return nil
	}
	until := to
	if c.Until != nil && c.Until.Before(to) {
		until = *c.Until
	}
	if until.Before(from) {
		return nil
	}

	var out []dates.Date
	switch c.Frequency {
	case domain.FreqDaily:
		// daily orders execute every day of the window
		for d := maxDate(c.Since, from); !d.After(until) && len(out) < stepCap; d = d.AddDays(1) {
			out = append(out, d)
		}
	case domain.FreqWeekly, domain.FreqBiweekly:
		step := 7
		if c.Frequency == domain.FreqBiweekly {
			step = 14
		}
		d := c.Since
		for steps := 0; d.Before(from) && steps < stepCap; steps++ {
			d = d.AddDays(step)
		}
		for ; !d.After(until) && len(out) < stepCap; d = d.AddDays(step) {
			out = append(out, d)
		}
	default:
		// month-granular: walk the calendar from the anchor so a day-31
		// anchor clamps to short months instead of drifting
		monthStep := c.Frequency.MonthStep()
		if monthStep == 0 {
			return nil
		}
		for i := 0; i < stepCap; i++ {
			d := c.Since.AddMonths(monthStep * i)
			if d.After(until) {
				break
			}
			if !d.Before(from) {
				out = append(out, d)
			}
		}
	}
	return out
}

func maxDate(a, b dates.Date) dates.Date {
	if a.After(b) {
		return a
	}
	return b
}
