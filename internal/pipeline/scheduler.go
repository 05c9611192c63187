package pipeline

// scheduler.go runs the pipeline periodically for the serve command.
//
// The first run starts immediately, then one every interval. A tick that
// arrives while a run is active (including one triggered over HTTP) is
// skipped, not queued.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler triggers pipeline runs on a fixed interval.
type Scheduler struct {
	pipeline *Pipeline
	interval time.Duration
	phases   Phases
	cron     *gocron.Scheduler
}

// NewScheduler creates a Scheduler. Start must be called to begin running.
func NewScheduler(p *Pipeline, interval time.Duration, phases Phases) *Scheduler {
	return &Scheduler{
		pipeline: p,
		interval: interval,
		phases:   phases,
		cron:     gocron.NewScheduler(time.UTC),
	}
}

// Start schedules the job and returns immediately. Scheduling ends when ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", s.interval)
	}

	_, err := s.cron.Every(s.interval).SingletonMode().Do(func() {
		s.runJob(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule pipeline: %w", err)
	}

	slog.Info("pipeline scheduler started", "interval", s.interval.String(), "phases", s.phases.names())
	s.cron.StartAsync()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops scheduling new runs.
func (s *Scheduler) Stop() {
	if s.cron.IsRunning() {
		s.cron.Stop()
		slog.Info("pipeline scheduler stopped")
	}
}

func (s *Scheduler) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	slog.Debug("scheduled pipeline run")

	result, err := s.pipeline.RunOnce(ctx, s.phases)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.Info("scheduled run skipped, a run is already active")
	case err != nil:
		slog.Error("scheduled run failed", "error", err)
	default:
		slog.Info("scheduled run completed", "run_id", result.RunID)
	}
}
