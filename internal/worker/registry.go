package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// Handler executes one job. A nil return completes the job; any error counts
// as a failed attempt. Handlers must tolerate being run more than once for
// the same job.
type Handler func(ctx context.Context, job *domain.Job) error

// Registry maps job types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.JobType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.JobType]Handler)}
}

// Register installs h for jobType, replacing any previous handler.
func (r *Registry) Register(jobType domain.JobType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
}

// Dispatch runs the handler for job.Type. Panics are converted to errors so
// a bad payload cannot take down the worker.
func (r *Registry) Dispatch(ctx context.Context, job *domain.Job) (err error) {
	r.mu.RLock()
	h, ok := r.handlers[job.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w for job type %q", domain.ErrNoHandler, job.Type)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, job)
}
