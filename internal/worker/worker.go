package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// Worker is a single goroutine that repeatedly claims a due job, runs its
// handler, and records the outcome.
type Worker struct {
	name       string
	repo       repository.JobRepository
	registry   *Registry
	clock      domain.Clock
	backoff    Backoff
	poll       time.Duration
	jobTimeout time.Duration
	wake       <-chan struct{}
	logger     *zap.Logger
	hooks      MetricHooks
}

// Run blocks until ctx is cancelled. When the store has nothing due it
// sleeps for the poll interval or until a wake signal arrives.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	timer := time.NewTimer(w.poll)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping")
			return
		}

		job, err := w.repo.Claim(ctx, w.name, w.clock.Now())
		switch {
		case err == nil:
			w.process(ctx, job)
			continue
		case errors.Is(err, domain.ErrNotFound):
		case ctx.Err() != nil:
			continue
		default:
			w.logger.Error("claim failed", zap.Error(err))
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.poll)

		select {
		case <-ctx.Done():
		case <-w.wake:
		case <-timer.C:
		}
	}
}

func (w *Worker) process(ctx context.Context, job *domain.Job) {
	start := time.Now()
	log := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempt", job.Attempts+1),
	)

	// A claimed job runs to completion even during shutdown; the stale
	// reaper only exists for processes that die outright.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()

	runErr := w.registry.Dispatch(jobCtx, job)
	elapsed := time.Since(start)

	if runErr == nil {
		if err := w.repo.MarkCompleted(jobCtx, job.ID, w.name, w.clock.Now()); err != nil {
			log.Error("failed to mark job completed", zap.Error(err))
			return
		}
		w.hooks.OnCompleted(job.Type, elapsed)
		log.Info("job completed", zap.Duration("latency", elapsed))
		return
	}

	w.handleFailure(jobCtx, log, job, runErr)
}

// handleFailure counts the attempt and either schedules the next run or
// marks the job permanently failed once max_attempts is reached.
func (w *Worker) handleFailure(ctx context.Context, log *zap.Logger, job *domain.Job, runErr error) {
	attempts := job.Attempts + 1
	maxAttempts := job.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	now := w.clock.Now()

	if attempts < maxAttempts {
		delay := w.backoff.Delay(attempts)
		if err := w.repo.ScheduleRetry(ctx, job.ID, w.name, attempts, now.Add(delay), runErr.Error()); err != nil {
			log.Error("failed to schedule retry", zap.Error(err))
			return
		}
		w.hooks.OnRetried(job.Type)
		log.Warn("job failed, retry scheduled",
			zap.Error(runErr),
			zap.Int("attempts", attempts),
			zap.Duration("backoff", delay),
		)
		return
	}

	if err := w.repo.MarkFailed(ctx, job.ID, w.name, attempts, now, runErr.Error()); err != nil {
		log.Error("failed to mark job failed", zap.Error(err))
		return
	}
	w.hooks.OnFailed(job.Type)
	log.Error("job failed permanently", zap.Error(runErr), zap.Int("attempts", attempts))
}
