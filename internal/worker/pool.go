package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/config"
	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnCompleted func(jobType domain.JobType, latency time.Duration)
	OnRetried   func(jobType domain.JobType)
	OnFailed    func(jobType domain.JobType)
}

func (h *MetricHooks) fill() {
	if h.OnCompleted == nil {
		h.OnCompleted = func(domain.JobType, time.Duration) {}
	}
	if h.OnRetried == nil {
		h.OnRetried = func(domain.JobType) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.JobType) {}
	}
}

// Pool manages the lifecycle of all workers. Workers coordinate only through
// the job store's atomic claim, so several pools (processes) can share one
// database.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates cfg.WorkerCount identical workers. wake may be nil when
// LISTEN/NOTIFY is disabled; workers then rely on polling alone.
func NewPool(
	cfg *config.Config,
	repo repository.JobRepository,
	registry *Registry,
	clock domain.Clock,
	wake <-chan struct{},
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	hooks.fill()
	instance := cfg.InstanceID
	if instance == "" {
		instance = "worker"
	}

	workers := make([]*Worker, cfg.WorkerCount)
	for i := range workers {
		name := fmt.Sprintf("%s-%d", instance, i)
		workers[i] = &Worker{
			name:       name,
			repo:       repo,
			registry:   registry,
			clock:      clock,
			backoff:    Backoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
			poll:       cfg.PollInterval,
			jobTimeout: cfg.JobTimeout,
			wake:       wake,
			logger:     logger.With(zap.Int("worker_id", i), zap.String("worker", name)),
			hooks:      hooks,
		}
	}

	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
