package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// StaleReaper returns jobs stuck in processing past a timeout to pending.
// A job only stays processing that long when its owning process died
// mid-run; reaping keeps such jobs from being lost. Attempts are unchanged.
type StaleReaper struct {
	repo     repository.JobRepository
	clock    domain.Clock
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewStaleReaper(
	repo repository.JobRepository,
	clock domain.Clock,
	timeout, interval time.Duration,
	logger *zap.Logger,
) *StaleReaper {
	return &StaleReaper{repo: repo, clock: clock, timeout: timeout, interval: interval, logger: logger}
}

// Run ticks every interval and reaps stale claims.
// Stops cleanly when ctx is cancelled.
func (sr *StaleReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(sr.interval)
	defer ticker.Stop()

	sr.logger.Info("stale job reaper started",
		zap.Duration("interval", sr.interval), zap.Duration("timeout", sr.timeout))

	for {
		select {
		case <-ctx.Done():
			sr.logger.Info("stale job reaper stopping")
			return
		case <-ticker.C:
			sr.Reap(ctx)
		}
	}
}

// Reap performs one pass and returns how many jobs were released.
func (sr *StaleReaper) Reap(ctx context.Context) int64 {
	n, err := sr.repo.ReapStale(ctx, sr.clock.Now().Add(-sr.timeout))
	if err != nil {
		sr.logger.Error("reap stale jobs", zap.Error(err))
		return 0
	}
	if n > 0 {
		sr.logger.Warn("released stale processing jobs", zap.Int64("count", n))
	}
	return n
}
