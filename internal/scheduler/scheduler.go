package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of background work with a stable name for logging.
type Job interface {
	Name() string
	Run() error
}

// Scheduler runs registered jobs on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	log     zerolog.Logger
}

// New creates an empty scheduler. Schedules use the six-field cron syntax
// with a leading seconds column, plus shorthands like "@hourly" and
// "@every 30s".
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		entries: map[string]cron.EntryID{},
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers a job under the given cron schedule.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	name := job.Name()
	id, err := s.cron.AddFunc(schedule, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.entries[name] = id

	s.log.Info().
		Str("job", name).
		Str("schedule", schedule).
		Msg("Job registered")
	return nil
}

func (s *Scheduler) run(job Job) {
	start := time.Now()
	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("Job failed")
		return
	}
	s.log.Debug().
		Str("job", job.Name()).
		Dur("elapsed", time.Since(start)).
		Msg("Job completed")
}

// RunNow runs a job once, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job now")
	return job.Run()
}

// Start begins dispatching schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.entries)).Msg("Scheduler started")
}

// Stop waits for any running job to finish before returning.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}
