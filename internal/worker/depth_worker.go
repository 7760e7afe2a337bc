package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// DepthWorker samples the number of pending jobs for the queue depth gauge.
type DepthWorker struct {
	repo     repository.JobRepository
	interval time.Duration
	observe  func(int)
	logger   *zap.Logger
}

func NewDepthWorker(
	repo repository.JobRepository,
	interval time.Duration,
	observe func(int),
	logger *zap.Logger,
) *DepthWorker {
	return &DepthWorker{repo: repo, interval: interval, observe: observe, logger: logger}
}

// Run ticks every interval and reports the pending count.
// Stops cleanly when ctx is cancelled.
func (dw *DepthWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(dw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := dw.repo.CountPending(ctx)
			if err != nil {
				dw.logger.Warn("count pending jobs", zap.Error(err))
				continue
			}
			dw.observe(n)
		}
	}
}
