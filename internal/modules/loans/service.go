package loans

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/moneta/pkg/dates"
)

// Service evaluates loan calculations as of the current day.
type Service struct {
	log zerolog.Logger
	now func() time.Time
}

// NewService creates a new loans service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "loans").Logger(),
		now: time.Now,
	}
}

// Calculate runs the calculator against today's date.
func (s *Service) Calculate(p CalculationParams) (CalculationResult, error) {
	result, err := Calculate(p, dates.FromTime(s.now()))
	if err != nil {
		return CalculationResult{}, err
	}
	s.log.Debug().
		Str("interest_type", string(p.InterestType)).
		Str("payment", result.MonthlyPayment.String()).
		Msg("Loan calculated")
	return result, nil
}
