package repository

import (
	"context"
	"time"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// NotificationRepository persists the in-app inbox.
type NotificationRepository interface {
	// CreateIfAbsent inserts n unless a row with the same ID exists.
	// created reports whether this call wrote the row.
	CreateIfAbsent(ctx context.Context, n *domain.Notification) (created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, filter domain.InboxFilter) ([]*domain.Notification, int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// PreferenceRepository persists per-user, per-type delivery preferences.
type PreferenceRepository interface {
	// Get returns domain.ErrNotFound when the user has no row for the type.
	Get(ctx context.Context, userID string, t domain.NotificationType) (*domain.NotificationPreference, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.NotificationPreference, error)
	Upsert(ctx context.Context, p *domain.NotificationPreference) (*domain.NotificationPreference, error)
	Delete(ctx context.Context, userID string, t domain.NotificationType) error
}

// SubscriptionRepository is the push subscription registry's store.
type SubscriptionRepository interface {
	// Upsert registers by endpoint; an existing endpoint is reassigned and
	// reactivated.
	Upsert(ctx context.Context, s *domain.PushSubscription) (*domain.PushSubscription, error)
	GetByID(ctx context.Context, id string) (*domain.PushSubscription, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*domain.PushSubscription, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}
