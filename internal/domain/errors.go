package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidJobType      = errors.New("invalid job type: must be escalation_check, pm_generation, or notification_send")
	ErrInvalidPayload      = errors.New("invalid job payload")
	ErrNoHandler           = errors.New("no handler registered")
	ErrJobNotFailed        = errors.New("only failed jobs can be reset")
	ErrInvalidPriority     = errors.New("invalid priority: must be low, medium, high, or critical")
	ErrInvalidType         = errors.New("invalid notification type")
	ErrInvalidTimeOfDay    = errors.New("invalid time of day: must be HH:MM")
	ErrInvalidSubscription = errors.New("invalid push subscription")
	ErrSubscriptionGone    = errors.New("push subscription is no longer valid")
	ErrInvalidRule         = errors.New("invalid escalation rule")
)
