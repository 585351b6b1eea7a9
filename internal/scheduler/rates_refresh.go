package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RatesRefresher refreshes the cached exchange rates.
type RatesRefresher interface {
	Refresh(ctx context.Context) error
}

// RatesRefreshJob keeps the exchange rate cache fresh. The upstream feed
// publishes daily, so a few pulls per day are plenty.
type RatesRefreshJob struct {
	rates   RatesRefresher
	timeout time.Duration
	log     zerolog.Logger
}

// NewRatesRefreshJob creates a new rates refresh job
func NewRatesRefreshJob(rates RatesRefresher, log zerolog.Logger) *RatesRefreshJob {
	return &RatesRefreshJob{
		rates:   rates,
		timeout: time.Minute,
		log:     log.With().Str("job", "rates_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RatesRefreshJob) Name() string {
	return "rates_refresh"
}

// Run refreshes the rate cache once.
func (j *RatesRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.rates.Refresh(ctx)
}
