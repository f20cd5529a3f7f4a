// Package scheduler re-runs ledger maintenance work, such as report cache
// warming and the history --watch refresh, on cron expressions.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of periodic work. A failed run is logged and retried
// at the next tick.
type Job interface {
	Run() error
	Name() string
}

// Scheduler fires registered jobs from a single cron runner
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New returns a stopped scheduler. Expressions may carry a leading seconds
// field and descriptors like "@every 1m" are accepted.
func New(log zerolog.Logger) *Scheduler {
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &Scheduler{
		cron: cron.New(cron.WithParser(parser)),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop blocks until in-flight jobs return
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob runs job on every tick of schedule, e.g. "@every 1m" for the
// default report refresh or "0 30 13 * * MON-FRI" for after the close.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	jobLog := s.log.With().Str("job", job.Name()).Logger()

	if _, err := s.cron.AddFunc(schedule, func() {
		jobLog.Debug().Msg("Running job")
		if err := job.Run(); err != nil {
			jobLog.Error().Err(err).Msg("Job failed")
			return
		}
		jobLog.Debug().Msg("Job completed")
	}); err != nil {
		return err
	}

	jobLog.Info().Str("schedule", schedule).Msg("Job registered")
	return nil
}

// RunNow runs job once on the caller's goroutine, so reports are warm
// before the first tick.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

// FuncJob turns a closure into a Job
type FuncJob struct {
	JobName string
	Fn      func() error
}

func (j FuncJob) Name() string { return j.JobName }

func (j FuncJob) Run() error { return j.Fn() }
