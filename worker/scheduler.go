package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled task.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron specs such as "0 7 * * *" (07:00 daily).
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	parent  context.Context
}

// NewScheduler creates a scheduler in loc (nil means local time). Each run
// gets timeout (default 30m).
func NewScheduler(loc *time.Location, timeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		timeout: timeout,
		parent:  context.Background(),
	}
}

// AddJob registers job under name. Overlapping runs of the same job are skipped.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(s.parent, s.timeout)
		defer cancel()

		start := time.Now()
		slog.Info("scheduler: job started", "job", name)
		if err := job(ctx); err != nil {
			slog.Error("scheduler: job failed", "job", name, "error", err)
			return
		}
		slog.Info("scheduler: job finished", "job", name, "took", time.Since(start))
	}))
	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	slog.Info("scheduler: job added", "job", name, "spec", spec)
	return nil
}

// Next returns the next run time across all jobs, or zero if none.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// Start runs the cron loop until ctx is cancelled, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.parent = ctx
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
