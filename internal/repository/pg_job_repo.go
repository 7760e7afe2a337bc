package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

const jobColumns = `id, job_type, payload, status, attempts, max_attempts, scheduled_at,
	locked_by, locked_at, processed_at, failed_at, error, created_at`

type pgJobRepository struct {
	pool *pgxpool.Pool
}

// NewPgJobRepository returns a JobRepository backed by PostgreSQL.
func NewPgJobRepository(pool *pgxpool.Pool) JobRepository {
	return &pgJobRepository{pool: pool}
}

func (r *pgJobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	return insertJob(ctx, r.pool, job)
}

func (r *pgJobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM job_queue WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *pgJobRepository) List(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	var conditions []string
	var args []any
	if f.Status != nil {
		args = append(args, *f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != nil {
		args = append(args, *f.Type)
		conditions = append(conditions, fmt.Sprintf("job_type = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, f.Limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM job_queue%s
		ORDER BY created_at DESC
		LIMIT $%d`, jobColumns, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// Claim uses the conditional UPDATE as the mutex: SKIP LOCKED keeps
// concurrent claimers off the same row and the outer status predicate
// rejects a row another claimer already moved.
func (r *pgJobRepository) Claim(ctx context.Context, workerID string, now time.Time) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE job_queue
		SET status = 'processing', locked_by = $1, locked_at = $2
		WHERE id = (
			SELECT id FROM job_queue
			WHERE status = 'pending' AND scheduled_at <= $2
			ORDER BY scheduled_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		) AND status = 'pending'
		RETURNING `+jobColumns, workerID, now)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (r *pgJobRepository) MarkCompleted(ctx context.Context, id, workerID string, at time.Time) error {
	return r.transition(ctx, "mark completed", `
		UPDATE job_queue
		SET status = 'completed', processed_at = $3, locked_by = NULL, locked_at = NULL
		WHERE id = $1 AND status = 'processing' AND locked_by = $2`, id, workerID, at)
}

func (r *pgJobRepository) ScheduleRetry(ctx context.Context, id, workerID string, attempts int, nextRun time.Time, errMsg string) error {
	return r.transition(ctx, "schedule retry", `
		UPDATE job_queue
		SET status = 'pending', attempts = $3, scheduled_at = $4, error = $5,
		    locked_by = NULL, locked_at = NULL
		WHERE id = $1 AND status = 'processing' AND locked_by = $2`, id, workerID, attempts, nextRun, errMsg)
}

func (r *pgJobRepository) MarkFailed(ctx context.Context, id, workerID string, attempts int, at time.Time, errMsg string) error {
	return r.transition(ctx, "mark failed", `
		UPDATE job_queue
		SET status = 'failed', attempts = $3, failed_at = $4, error = $5,
		    locked_by = NULL, locked_at = NULL
		WHERE id = $1 AND status = 'processing' AND locked_by = $2`, id, workerID, attempts, at, errMsg)
}

func (r *pgJobRepository) Reset(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE job_queue
		SET status = 'pending', attempts = 0, scheduled_at = $2, failed_at = NULL, error = NULL
		WHERE id = $1 AND status = 'failed'`, id, at)
	if err != nil {
		return fmt.Errorf("reset job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrJobNotFailed
	}
	_, _ = r.pool.Exec(ctx, `SELECT pg_notify('job_queue', $1)`, id)
	return nil
}

func (r *pgJobRepository) ReapStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE job_queue
		SET status = 'pending', locked_by = NULL, locked_at = NULL
		WHERE status = 'processing' AND locked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reap stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgJobRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM job_queue WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return n, nil
}

// transition runs an update guarded on status and owner. Zero affected rows
// means the claim was reaped, and possibly re-claimed by another worker.
func (r *pgJobRepository) transition(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return nil
}

// ---- helpers ----

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.ScheduledAt,
		&j.LockedBy, &j.LockedAt, &j.ProcessedAt, &j.FailedAt, &j.Error, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var result []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, rows.Err()
}
