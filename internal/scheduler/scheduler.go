package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Job is invoked once per interval with the tick time.
type Job func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Name     string
	Interval time.Duration
	// Immediate runs the job once before the first interval elapses.
	Immediate bool
}

// Scheduler runs a background maintenance job on a fixed interval.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler. The interval must be positive.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if opts.Name == "" {
		opts.Name = "job"
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Str("job", opts.Name).Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run blocks, invoking job every interval until ctx is cancelled. Job errors
// are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if s.opts.Immediate {
		s.execute(ctx, job)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.execute(ctx, job)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	at := s.now()
	if err := job(ctx, at); err != nil {
		s.logger.Error().Err(err).Time("at", at).Msg("scheduled job failed")
		return
	}
	s.logger.Debug().Time("at", at).Msg("scheduled job completed")
}
