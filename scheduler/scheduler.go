package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultStandingsSpec recomputes the active season's standings every 15 minutes.
const DefaultStandingsSpec = "0 */15 * * * *"

// StandingsRecomputer is satisfied by services.RankingService.
type StandingsRecomputer interface {
	RecomputeActive(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// New registers the standings job under spec (six fields, seconds first).
// An empty spec uses DefaultStandingsSpec.
func New(spec string, rankings StandingsRecomputer, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultStandingsSpec
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		timeout: timeout,
	}

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := rankings.RecomputeActive(ctx); err != nil {
			s.logger.Error("Scheduler: standings recompute failed", slog.Any("error", err))
			return
		}
		s.logger.Debug("Scheduler: standings recomputed")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid standings schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for a running job up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler: running job did not finish before shutdown")
	}
}
