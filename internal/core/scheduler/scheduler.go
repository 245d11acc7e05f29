package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of periodic work. Errors are logged, not propagated: a failed
// cycle is retried on the next tick.
type Job func(ctx context.Context) error

// Scheduler runs a single job on a fixed interval until its context is
// cancelled. It is intentionally single-threaded: the next tick waits for the
// previous run to finish, so two cycles never overlap on the same store.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	logger   *zap.Logger
}

// New creates a Scheduler for the given job.
func New(name string, interval time.Duration, job Job, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger,
	}
}

// Run executes the job immediately and then on every interval tick, until ctx
// is cancelled. It always returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		zap.String("job", s.name),
		zap.Duration("interval", s.interval),
	)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped", zap.String("job", s.name))
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a single cycle, recovering panics so one bad cycle cannot
// kill the daemon.
func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled job panicked",
				zap.String("job", s.name),
				zap.Any("panic", r),
			)
		}
	}()

	start := time.Now()
	if err := s.job(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Scheduled job failed",
			zap.String("job", s.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("Scheduled job completed",
		zap.String("job", s.name),
		zap.Duration("duration", time.Since(start)),
	)
}
