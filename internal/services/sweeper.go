package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper runs housekeeping jobs, such as evicting idle sessions, on a cron
// schedule.
type Sweeper struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewSweeper(schedule string, logger *slog.Logger, jobs ...func()) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	for _, job := range jobs {
		if _, err := c.AddFunc(schedule, job); err != nil {
			return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
		}
	}
	return &Sweeper{cron: c, logger: logger}, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
