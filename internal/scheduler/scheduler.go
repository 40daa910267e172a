package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/elkingarcia11/market-data-api/internal/ports"
)

// Scheduler re-runs the backfill job on a cron spec. Runs are strictly
// sequential: a tick that fires while the previous run is still going is
// skipped rather than overlapped, since two processes must never write the
// same series file concurrently.
type Scheduler struct {
	cron   *cron.Cron
	logger ports.Logger
}

// New creates a scheduler.
func New(logger ports.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Register adds the backfill job under the given cron spec.
func (s *Scheduler) Register(ctx context.Context, spec string, run func(context.Context)) error {
	if _, err := s.cron.AddFunc(spec, func() {
		s.logger.Info(ctx, "Scheduled backfill starting", map[string]interface{}{"cron": spec})
		run(ctx)
	}); err != nil {
		return fmt.Errorf("register backfill schedule %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info(ctx, "Scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop(ctx context.Context) {
	<-s.cron.Stop().Done()
	s.logger.Info(ctx, "Scheduler stopped")
}
