package contributions

import (
	"database/sql"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// ScheduledContribution is one dated execution in the upcoming plan.
type ScheduledContribution struct {
	Date       dates.Date                    `json:"date"`
	Amount     decimal.Decimal               `json:"amount"`
	Currency   string                        `json:"currency"`
	Target     string                        `json:"target"`
	TargetName string                        `json:"target_name,omitempty"`
	TargetType domain.ContributionTargetType `json:"target_type"`
	EntityID   uuid.UUID                     `json:"entity_id"`
}

// Service handles contribution business logic
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new contributions service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "contributions").Logger(),
	}
}

// SaveFetchedTx replaces the fetched standing orders for an entity on an
// open database transaction.
func (s *Service) SaveFetchedTx(tx *sql.Tx, entityID uuid.UUID, auto domain.AutoContributions) error {
	for i := range auto.Periodic {
		if auto.Periodic[i].ID == uuid.Nil {
			auto.Periodic[i].ID = uuid.New()
		}
	}
	return s.repo.ReplaceFetchedTx(tx, entityID, auto.Periodic)
}

// SaveManual stores a user-declared contribution
func (s *Service) SaveManual(c domain.PeriodicContribution) (*domain.PeriodicContribution, error) {
	if c.Target == "" {
		return nil, domain.NewMissingFields("target")
	}
	if c.Amount.Sign() <= 0 {
		return nil, &domain.InvalidFieldError{Field: "amount", Reason: "must be positive"}
	}
	if c.Frequency.MonthlyTimes().IsZero() {
		return nil, &domain.InvalidFieldError{Field: "frequency", Reason: "unknown frequency"}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Since.IsZero() {
		c.Since = dates.Today()
	}
	if err := s.repo.SaveManual(c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a manual contribution
func (s *Service) Delete(id uuid.UUID) error {
	return s.repo.Delete(id)
}

// Get returns stored contributions matching the query
func (s *Service) Get(q domain.ContributionQuery) ([]domain.PeriodicContribution, error) {
	return s.repo.GetByQuery(q)
}

// Plan expands all active contributions into dated executions inside the
// window, ordered by date.
func (s *Service) Plan(q domain.ContributionQuery, from, to dates.Date) ([]ScheduledContribution, error) {
	contributions, err := s.repo.GetByQuery(q)
	if err != nil {
		return nil, err
	}
	var plan []ScheduledContribution
	for _, c := range contributions {
		for _, date := range Upcoming(c, from, to) {
			plan = append(plan, ScheduledContribution{
				Date:       date,
				Amount:     c.Amount,
				Currency:   c.Currency,
				Target:     c.Target,
				TargetName: c.TargetName,
				TargetType: c.TargetType,
				EntityID:   c.EntityID,
			})
		}
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Date.Before(plan[j].Date) })
	return plan, nil
}

// MonthlyTotal sums active contributions normalized to a monthly amount.
func (s *Service) MonthlyTotal(q domain.ContributionQuery) (decimal.Decimal, error) {
	contributions, err := s.repo.GetByQuery(q)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range contributions {
		if !c.Active {
			continue
		}
		total = total.Add(c.Amount.Mul(c.Frequency.MonthlyTimes()))
	}
	return total, nil
}
