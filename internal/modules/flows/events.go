package flows

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// stepCap bounds occurrence walks for misconfigured flows.
const stepCap = 2400

// MoneyEvent is one dated movement inside a query window: an execution of a
// periodic flow, or a pending flow falling due.
type MoneyEvent struct {
	Date     dates.Date      `json:"date"`
	FlowID   uuid.UUID       `json:"flow_id"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	FlowType domain.FlowType `json:"flow_type"`
	Category string          `json:"category,omitempty"`
	Pending  bool            `json:"pending,omitempty"`
}

// Upcoming expands enabled flows into dated events inside [from, to], both
// inclusive, ordered by date. Pending flows contribute their single date.
func (s *Service) Upcoming(from, to dates.Date) ([]MoneyEvent, error) {
	periodic, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.GetAllPending()
	if err != nil {
		return nil, err
	}

	var events []MoneyEvent
	for _, f := range periodic {
		for _, date := range occurrences(f, from, to) {
			events = append(events, MoneyEvent{
				Date:     date,
				FlowID:   f.ID,
				Name:     f.Name,
				Amount:   f.Amount,
				Currency: f.Currency,
				FlowType: f.FlowType,
				Category: f.Category,
			})
		}
	}
	for _, p := range pending {
		if !p.Enabled || p.Date == nil || p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		events = append(events, MoneyEvent{
			Date:     *p.Date,
			FlowID:   p.ID,
			Name:     p.Name,
			Amount:   p.Amount,
			Currency: p.Currency,
			FlowType: p.FlowType,
			Category: p.Category,
			Pending:  true,
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events, nil
}

func occurrences(f domain.PeriodicFlow, from, to dates.Date) []dates.Date {
	if !f.Enabled || to.Before(from) {
		return nil
	}
	var out []dates.Date
	cursor := from
	for len(out) < stepCap {
		next := f.NextOccurrence(cursor)
		if next == nil || next.After(to) {
			break
		}
		out = append(out, *next)
		cursor = next.AddDays(1)
	}
	return out
}
