package savings

import (
	"github.com/rs/zerolog"
)

// Service runs savings projections.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new savings service
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log.With().Str("service", "savings").Logger()}
}

// Calculate runs every scenario of the request.
func (s *Service) Calculate(req Request) (Result, error) {
	result, err := Calculate(req)
	if err != nil {
		return Result{}, err
	}
	s.log.Debug().Int("scenarios", len(result.Scenarios)).Msg("Savings calculated")
	return result, nil
}
