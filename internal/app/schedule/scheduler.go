package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrNoJobs = errors.New("schedule: no jobs registered")

// Job is periodic maintenance work. Errors are logged and the job runs again on the next tick.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) error
}

// Scheduler runs jobs on fixed intervals until the context is cancelled.
type Scheduler struct {
	Jobs   []Job
	Logger *slog.Logger
	Clock  func() time.Time
}

func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.Jobs) == 0 {
		return ErrNoJobs
	}
	done := make(chan struct{}, len(s.Jobs))
	for _, job := range s.Jobs {
		go func(job Job) {
			defer func() { done <- struct{}{} }()
			s.loop(ctx, job)
		}(job)
	}
	for range s.Jobs {
		<-done
	}
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	interval := job.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	now := s.now()
	start := time.Now()
	err := job.Run(ctx, now)
	if s.Logger == nil {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.Logger.Error("scheduled job failed", "job", job.Name, "error", err)
		return
	}
	s.Logger.Debug("scheduled job finished", "job", job.Name, "duration", time.Since(start))
}

func (s *Scheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}
