package exchange

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/clients/rates"
	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/events"
)

// RateSource fetches the current quote map for a base currency.
type RateSource interface {
	Rates(ctx context.Context, base string) (*rates.Quotes, error)
}

// Service keeps the rate cache fresh for the tracked currency set.
type Service struct {
	repo       *Repository
	source     RateSource
	events     *events.Manager
	currencies []string
	log        zerolog.Logger
}

// NewService creates a new exchange rate service
func NewService(repo *Repository, source RateSource, ev *events.Manager, currencies []string, log zerolog.Logger) *Service {
	if len(currencies) == 0 {
		currencies = []string{string(domain.CurrencyEUR), string(domain.CurrencyUSD)}
	}
	return &Service{
		repo:       repo,
		source:     source,
		events:     ev,
		currencies: currencies,
		log:        log.With().Str("service", "exchange").Logger(),
	}
}

// Refresh fetches quotes for every tracked base and stores the pairs among
// tracked currencies.
func (s *Service) Refresh(ctx context.Context) error {
	tracked := make(map[string]bool, len(s.currencies))
	for _, c := range s.currencies {
		tracked[c] = true
	}

	var updated []domain.ExchangeRate
	for _, base := range s.currencies {
		quotes, err := s.source.Rates(ctx, base)
		if err != nil {
			return err
		}
		for quote, rate := range quotes.Rates {
			if quote == quotes.Base || !tracked[quote] {
				continue
			}
			updated = append(updated, domain.ExchangeRate{
				Base:  quotes.Base,
				Quote: quote,
				Rate:  rate,
				Date:  quotes.Date,
			})
		}
	}
	if err := s.repo.Save(updated); err != nil {
		return err
	}

	s.events.Emit(events.RatesRefreshed, "exchange", map[string]interface{}{
		"pairs": len(updated),
	})
	s.log.Info().Int("pairs", len(updated)).Msg("Exchange rates refreshed")
	return nil
}

// GetAll returns the cached rates.
func (s *Service) GetAll() ([]domain.ExchangeRate, error) {
	return s.repo.GetAll()
}
