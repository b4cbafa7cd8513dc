// Package scheduler runs background jobs on fixed intervals or at a fixed
// local time each day. Jobs receive the tick time so their work is anchored
// to when the run was due, not when it happened to start.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context, now time.Time)

// Scheduler owns the goroutines behind recurring jobs. Stop by cancelling
// the context passed to Every / DailyAt.
type Scheduler struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Every runs job once per interval until ctx is cancelled. The first run
// happens after one full interval, not immediately.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, name string, job Job) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info("job scheduled",
			zap.String("job", name),
			zap.Duration("interval", interval),
		)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("job stopped", zap.String("job", name))
				return
			case now := <-ticker.C:
				s.run(ctx, name, job, now)
			}
		}
	}()
}

// DailyAt runs job every day at the given local wall-clock time until ctx is
// cancelled. Each run resolves the next fire time fresh, so DST shifts move
// the schedule with the wall clock instead of drifting off it.
func (s *Scheduler) DailyAt(ctx context.Context, hour, minute int, name string, job Job) {
	go func() {
		s.logger.Info("job scheduled",
			zap.String("job", name),
			zap.Int("hour", hour),
			zap.Int("minute", minute),
		)
		for {
			next := nextDailyRun(time.Now(), hour, minute)
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("job stopped", zap.String("job", name))
				return
			case now := <-timer.C:
				s.run(ctx, name, job, now)
			}
		}
	}()
}

// run shields the scheduler loop from a panicking job.
func (s *Scheduler) run(ctx context.Context, name string, job Job, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked",
				zap.String("job", name),
				zap.Any("panic", r),
			)
		}
	}()
	job(ctx, now)
}

// nextDailyRun returns the first instant strictly after now that lands on
// the given wall-clock time in now's location.
func nextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
