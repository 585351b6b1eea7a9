package forecast

import (
	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// walkCap bounds calendar walks, as in the contributions planner.
const walkCap = 2400

// countOccurrences counts executions of a recurring flow strictly after
// today and up to min(target, until). Month-granular frequencies step from
// the anchor with day-of-month clamping; day-granular ones step in fixed
// day counts.
func countOccurrences(since dates.Date, freq domain.FlowFrequency, until *dates.Date, today, target dates.Date) int {
	limit := target
	if until != nil && until.Before(limit) {
		limit = *until
	}
	if limit.Before(since) {
		return 0
	}

	if step := freq.MonthStep(); step > 0 {
		count := 0
		for k := 0; k < walkCap; k++ {
			d := since.AddMonths(step * k)
			if d.After(limit) {
				break
			}
			if d.After(today) {
				count++
			}
		}
		return count
	}

	days := 1
	switch freq {
	case domain.FreqDaily:
		// every day after today counts, regardless of the anchor
		if since.Before(today.AddDays(1)) {
			since = today.AddDays(1)
		}
	case domain.FreqWeekly:
		days = 7
	case domain.FreqBiweekly:
		days = 14
	default:
		return 0
	}
	d := since
	count := 0
	for steps := 0; !d.After(today) && steps < walkCap; steps++ {
		d = d.AddDays(days)
	}
	for ; !d.After(limit) && count < walkCap; d = d.AddDays(days) {
		count++
	}
	return count
}
