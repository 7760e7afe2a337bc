package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// JobService is the producer and operator surface of the job queue.
// HTTP handlers and the cron trigger depend on this service, not on the
// repository.
type JobService struct {
	repo   repository.JobRepository
	clock  domain.Clock
	logger *zap.Logger
}

func NewJobService(repo repository.JobRepository, clock domain.Clock, logger *zap.Logger) *JobService {
	return &JobService{repo: repo, clock: clock, logger: logger}
}

// Enqueue validates and inserts a pending job. An absent payload becomes {},
// an absent schedule means now, and max attempts defaults to
// domain.DefaultMaxAttempts.
func (s *JobService) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	payload := req.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}
	scheduledAt := now
	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	}

	job, err := repository.NewJob(req.Type, payload, scheduledAt, now)
	if err != nil {
		return nil, err
	}
	if req.MaxAttempts > 0 {
		job.MaxAttempts = req.MaxAttempts
	}

	if err := s.repo.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.Debug("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
		zap.Time("scheduled_at", job.ScheduledAt),
	)
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns jobs newest first, clamping the limit.
func (s *JobService) List(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	if f.Status != nil && !f.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidPayload, *f.Status)
	}
	if f.Type != nil && !f.Type.IsValid() {
		return nil, domain.ErrInvalidJobType
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return s.repo.List(ctx, f)
}

// Reset returns a failed job to pending with attempts cleared, for operators
// who fixed the underlying cause.
func (s *JobService) Reset(ctx context.Context, id string) (*domain.Job, error) {
	if err := s.repo.Reset(ctx, id, s.clock.Now()); err != nil {
		return nil, err
	}
	s.logger.Info("failed job reset by operator", zap.String("job_id", id))
	return s.repo.GetByID(ctx, id)
}

func (s *JobService) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}
