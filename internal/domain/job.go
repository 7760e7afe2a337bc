package domain

import (
	"encoding/json"
	"time"
)

// JobType selects the handler that executes a job.
type JobType string

const (
	JobEscalationCheck  JobType = "escalation_check"
	JobPMGeneration     JobType = "pm_generation"
	JobNotificationSend JobType = "notification_send"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobEscalationCheck, JobPMGeneration, JobNotificationSend:
		return true
	}
	return false
}

// JobStatus tracks the lifecycle of a queued job.
//
//	pending -> processing -> completed
//	                      -> pending (retry, attempts < max_attempts)
//	                      -> failed  (attempts == max_attempts)
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// DefaultMaxAttempts applies when a producer does not set one.
const DefaultMaxAttempts = 3

// Job is one row of the durable job queue.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LockedBy    *string         `json:"locked_by,omitempty"`
	LockedAt    *time.Time      `json:"locked_at,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	FailedAt    *time.Time      `json:"failed_at,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EnqueueRequest is the inbound payload for creating a job.
type EnqueueRequest struct {
	Type        JobType         `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

func (r *EnqueueRequest) Validate() error {
	if !r.Type.IsValid() {
		return ErrInvalidJobType
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return ErrInvalidPayload
	}
	if r.MaxAttempts < 0 {
		return ErrInvalidPayload
	}
	return nil
}

// EscalationCheckPayload optionally scopes a sweep to one warehouse.
type EscalationCheckPayload struct {
	WarehouseID *string `json:"warehouseId,omitempty"`
}

// PMGenerationPayload optionally scopes preventive work order generation.
type PMGenerationPayload struct {
	WarehouseID *string `json:"warehouseId,omitempty"`
}

// JobFilter holds query parameters for job listing.
type JobFilter struct {
	Status *JobStatus
	Type   *JobType
	Limit  int
}
