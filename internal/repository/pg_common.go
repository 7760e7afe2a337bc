package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx so job inserts can join
// a caller's transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// insertJob writes a job row and signals listeners. Inside a transaction the
// NOTIFY is delivered on commit.
func insertJob(ctx context.Context, q querier, job *domain.Job) error {
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	_, err := q.Exec(ctx, `
		WITH ins AS (
			INSERT INTO job_queue (id, job_type, payload, status, attempts, max_attempts, scheduled_at, created_at)
			VALUES ($1, $2, $3, 'pending', 0, $4, $5, $6)
			RETURNING id
		)
		SELECT pg_notify('job_queue', id::text) FROM ins`,
		job.ID, job.Type, payload, job.MaxAttempts, job.ScheduledAt, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// NewJob builds a pending job ready for insertion.
func NewJob(jobType domain.JobType, payload any, scheduledAt, now time.Time) (*domain.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	return &domain.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Payload:     raw,
		Status:      domain.JobPending,
		MaxAttempts: domain.DefaultMaxAttempts,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}, nil
}
