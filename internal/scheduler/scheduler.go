package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/openjob/internal/model"
)

// Runner executes one full pipeline cycle. Satisfied by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context) (model.RunResult, error)
}

// Scheduler owns the daemon loop: runs one cycle immediately, then ticks on
// an interval. Each day's cycle is independent; a failed cycle is logged and
// the next tick still fires.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs the pipeline at the given interval.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the loop. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("run failed", "error", err)
		return
	}

	s.logger.Info("run complete",
		"date", result.Date,
		"postings", len(result.Entries),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"pending", result.Pending,
	)
}
