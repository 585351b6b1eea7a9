package forecast

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// PositionSource yields the consolidated latest position per entity.
type PositionSource interface {
	Merged(q domain.PositionQuery) (map[uuid.UUID]domain.GlobalPosition, error)
}

// FlowSource yields the declared recurring and pending flows.
type FlowSource interface {
	GetAll() ([]domain.PeriodicFlow, error)
	GetAllPending() ([]domain.PendingFlow, error)
}

// ContributionSource yields the stored standing contributions.
type ContributionSource interface {
	Get(q domain.ContributionQuery) ([]domain.PeriodicContribution, error)
}

// PropertySource yields the owned properties with their linked flows.
type PropertySource interface {
	GetAll() ([]domain.RealEstate, error)
}

// Service gathers the engine's inputs from the other modules and runs it.
type Service struct {
	positions     PositionSource
	flows         FlowSource
	contributions ContributionSource
	properties    PropertySource
	capitalGains  decimal.Decimal
	log           zerolog.Logger
	now           func() time.Time
}

// NewService creates a new forecast service
func NewService(positions PositionSource, flows FlowSource, contributions ContributionSource, properties PropertySource, capitalGainsTax decimal.Decimal, log zerolog.Logger) *Service {
	return &Service{
		positions:     positions,
		flows:         flows,
		contributions: contributions,
		properties:    properties,
		capitalGains:  capitalGainsTax,
		log:           log.With().Str("service", "forecast").Logger(),
		now:           time.Now,
	}
}

// Forecast projects the stored state to the requested date.
func (s *Service) Forecast(req Request) (*Result, error) {
	positions, err := s.positions.Merged(domain.PositionQuery{})
	if err != nil {
		return nil, err
	}
	periodic, err := s.flows.GetAll()
	if err != nil {
		return nil, err
	}
	pending, err := s.flows.GetAllPending()
	if err != nil {
		return nil, err
	}
	contribs, err := s.contributions.Get(domain.ContributionQuery{})
	if err != nil {
		return nil, err
	}
	properties, err := s.properties.GetAll()
	if err != nil {
		return nil, err
	}

	result, err := Run(Input{
		Request:         req,
		Today:           dates.FromTime(s.now()),
		Positions:       positions,
		PeriodicFlows:   periodic,
		PendingFlows:    pending,
		Contributions:   contribs,
		Properties:      properties,
		CapitalGainsTax: s.capitalGains,
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("target_date", req.TargetDate.String()).
		Int("entities", len(result.Positions)).
		Int("currencies", len(result.CashDelta)).
		Msg("Forecast computed")
	return result, nil
}
