package repository

import (
	"context"
	"time"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// JobRepository is the durable job store. It holds no policy: the runner
// decides retry timing and terminal failure.
// The pgx implementation is in pg_job_repo.go.
// Tests use a hand-written mock (mock_job_repo.go).
type JobRepository interface {
	Enqueue(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error)

	// Claim atomically moves the oldest due pending job to processing.
	// Returns domain.ErrNotFound when nothing is due.
	Claim(ctx context.Context, workerID string, now time.Time) (*domain.Job, error)

	// The three outcomes below apply only while workerID still holds the
	// claim; otherwise they return domain.ErrConflict.
	MarkCompleted(ctx context.Context, id, workerID string, at time.Time) error
	ScheduleRetry(ctx context.Context, id, workerID string, attempts int, nextRun time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id, workerID string, attempts int, at time.Time, errMsg string) error

	// Reset returns a failed job to pending with attempts cleared.
	Reset(ctx context.Context, id string, at time.Time) error
	// ReapStale returns processing jobs locked before cutoff to pending.
	ReapStale(ctx context.Context, cutoff time.Time) (int64, error)
	CountPending(ctx context.Context) (int, error)
}
