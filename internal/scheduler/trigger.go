// Package scheduler runs the periodic producers that feed the job queue.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

const lockPrefix = "escalation-engine:tick:"

// Enqueuer is satisfied by service.JobService.
type Enqueuer interface {
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.Job, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Trigger enqueues one job per cron tick. With a TickLock, only the instance
// that wins the tick enqueues; a lock failure falls back to enqueuing, since
// a duplicate sweep finds nothing left to escalate.
type Trigger struct {
	cron   *cron.Cron
	enq    Enqueuer
	lock   TickLock
	clock  domain.Clock
	logger *zap.Logger
	ctx    context.Context
}

// NewTrigger builds a trigger. lock may be nil.
func NewTrigger(enq Enqueuer, lock TickLock, clock domain.Clock, logger *zap.Logger) *Trigger {
	return &Trigger{
		cron:   cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
		enq:    enq,
		lock:   lock,
		clock:  clock,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Schedule registers jobType on spec, a five-field cron expression or a
// descriptor such as "@every 15m". An empty spec disables the job type.
func (t *Trigger) Schedule(spec string, jobType domain.JobType) error {
	if spec == "" {
		return nil
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q for %s: %w", spec, jobType, err)
	}
	t.cron.Schedule(sched, cron.FuncJob(func() {
		now := t.clock.Now()
		period := sched.Next(now).Sub(now).Round(time.Minute)
		if _, err := t.Fire(t.ctx, jobType, now, period); err != nil {
			t.logger.Error("scheduled enqueue failed",
				zap.String("job_type", string(jobType)), zap.Error(err))
		}
	}))
	t.logger.Info("job scheduled", zap.String("job_type", string(jobType)), zap.String("spec", spec))
	return nil
}

// Fire enqueues jobType for the tick at now unless another instance already
// claimed the same tick. Ticks are bucketed by period so instances whose
// timers are out of phase still agree on the key.
func (t *Trigger) Fire(ctx context.Context, jobType domain.JobType, now time.Time, period time.Duration) (bool, error) {
	if period < time.Minute {
		period = time.Minute
	}
	if t.lock != nil {
		key := fmt.Sprintf("%s%s:%d", lockPrefix, jobType, now.Truncate(period).Unix())
		won, err := t.lock.Acquire(ctx, key, period)
		switch {
		case err != nil:
			t.logger.Warn("tick lock unavailable, enqueuing anyway",
				zap.String("job_type", string(jobType)), zap.Error(err))
		case !won:
			t.logger.Debug("tick handled by another instance", zap.String("job_type", string(jobType)))
			return false, nil
		}
	}

	job, err := t.enq.Enqueue(ctx, domain.EnqueueRequest{Type: jobType})
	if err != nil {
		return false, err
	}
	t.logger.Info("scheduled job enqueued",
		zap.String("job_type", string(jobType)), zap.String("job_id", job.ID))
	return true, nil
}

// Start runs the cron loop until Stop. ctx scopes the enqueue calls.
func (t *Trigger) Start(ctx context.Context) {
	t.ctx = ctx
	t.cron.Start()
}

// Stop halts scheduling and waits for a running tick to finish.
func (t *Trigger) Stop() {
	<-t.cron.Stop().Done()
}
