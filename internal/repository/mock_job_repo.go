package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// MockJobRepository is a hand-written, in-memory JobRepository used in unit
// tests. Claim runs under the mutex, so concurrent claimers observe the same
// single-winner semantics as the SQL implementation.
type MockJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job

	// Optional error overrides, set in tests to simulate failure paths.
	EnqueueErr error
	ClaimErr   error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{jobs: make(map[string]*domain.Job)}
}

func (m *MockJobRepository) Enqueue(_ context.Context, job *domain.Job) error {
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(job)
	return nil
}

// put stores a copy of job; callers hold mu.
func (m *MockJobRepository) put(job *domain.Job) {
	clone := *job
	clone.Status = domain.JobPending
	clone.Attempts = 0
	if clone.MaxAttempts == 0 {
		clone.MaxAttempts = domain.DefaultMaxAttempts
	}
	m.jobs[job.ID] = &clone
}

func (m *MockJobRepository) GetByID(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *j
	return &clone, nil
}

func (m *MockJobRepository) List(_ context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Job
	for _, j := range m.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.Type != nil && j.Type != *f.Type {
			continue
		}
		clone := *j
		result = append(result, &clone)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].CreatedAt.After(result[b].CreatedAt) })
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (m *MockJobRepository) Claim(_ context.Context, workerID string, now time.Time) (*domain.Job, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var next *domain.Job
	for _, j := range m.jobs {
		if j.Status != domain.JobPending || j.ScheduledAt.After(now) {
			continue
		}
		if next == nil || j.ScheduledAt.Before(next.ScheduledAt) {
			next = j
		}
	}
	if next == nil {
		return nil, domain.ErrNotFound
	}
	next.Status = domain.JobProcessing
	next.LockedBy = &workerID
	lockedAt := now
	next.LockedAt = &lockedAt
	clone := *next
	return &clone, nil
}

func (m *MockJobRepository) MarkCompleted(_ context.Context, id, workerID string, at time.Time) error {
	return m.update(id, workerID, func(j *domain.Job) {
		j.Status = domain.JobCompleted
		j.ProcessedAt = &at
	})
}

func (m *MockJobRepository) ScheduleRetry(_ context.Context, id, workerID string, attempts int, nextRun time.Time, errMsg string) error {
	return m.update(id, workerID, func(j *domain.Job) {
		j.Status = domain.JobPending
		j.Attempts = attempts
		j.ScheduledAt = nextRun
		j.Error = &errMsg
	})
}

func (m *MockJobRepository) MarkFailed(_ context.Context, id, workerID string, attempts int, at time.Time, errMsg string) error {
	return m.update(id, workerID, func(j *domain.Job) {
		j.Status = domain.JobFailed
		j.Attempts = attempts
		j.FailedAt = &at
		j.Error = &errMsg
	})
}

// update applies fn to a job workerID still holds, mirroring the SQL guard.
func (m *MockJobRepository) update(id, workerID string, fn func(*domain.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != domain.JobProcessing || j.LockedBy == nil || *j.LockedBy != workerID {
		return domain.ErrConflict
	}
	fn(j)
	j.LockedBy = nil
	j.LockedAt = nil
	return nil
}

func (m *MockJobRepository) Reset(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != domain.JobFailed {
		return domain.ErrJobNotFailed
	}
	j.Status = domain.JobPending
	j.Attempts = 0
	j.ScheduledAt = at
	j.FailedAt = nil
	j.Error = nil
	return nil
}

func (m *MockJobRepository) ReapStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, j := range m.jobs {
		if j.Status == domain.JobProcessing && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
			j.Status = domain.JobPending
			j.LockedBy = nil
			j.LockedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *MockJobRepository) CountPending(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status == domain.JobPending {
			n++
		}
	}
	return n, nil
}

// Jobs returns copies of every stored job, optionally filtered by type.
func (m *MockJobRepository) Jobs(jobType domain.JobType) []*domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Job
	for _, j := range m.jobs {
		if jobType != "" && j.Type != jobType {
			continue
		}
		clone := *j
		result = append(result, &clone)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].CreatedAt.Before(result[b].CreatedAt) })
	return result
}
