// Package provider adapts third-party delivery services to the notification
// dispatcher. Each transport sits behind a small interface so the dispatcher
// can be tested without network calls.
package provider

import (
	"context"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// PushMessage is the JSON document delivered to the service worker.
type PushMessage struct {
	Title              string          `json:"title"`
	Body               string          `json:"body"`
	Tag                string          `json:"tag"`
	RequireInteraction bool            `json:"requireInteraction,omitempty"`
	Data               PushMessageData `json:"data"`
}

type PushMessageData struct {
	NotificationID string                  `json:"notificationId"`
	Type           domain.NotificationType `json:"type"`
	Priority       domain.Priority         `json:"priority"`
	WorkOrderID    *string                 `json:"workOrderId,omitempty"`
	EquipmentID    *string                 `json:"equipmentId,omitempty"`
	PartID         *string                 `json:"partId,omitempty"`
}

// NewPushMessage renders the push document for an inbox notification.
func NewPushMessage(n *domain.Notification) PushMessage {
	return PushMessage{
		Title:              n.Title,
		Body:               n.Message,
		Tag:                string(n.Type) + ":" + n.ID,
		RequireInteraction: n.Priority == domain.PriorityCritical,
		Data: PushMessageData{
			NotificationID: n.ID,
			Type:           n.Type,
			Priority:       n.Priority,
			WorkOrderID:    n.WorkOrderID,
			EquipmentID:    n.EquipmentID,
			PartID:         n.PartID,
		},
	}
}

// Pusher delivers one Web Push message to one subscription. It returns
// domain.ErrSubscriptionGone when the push service reports the subscription
// as permanently invalid.
type Pusher interface {
	Push(ctx context.Context, sub *domain.PushSubscription, n *domain.Notification) error
}

// Emailer sends a plain email.
type Emailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Texter sends an SMS.
type Texter interface {
	SendSMS(ctx context.Context, phone, message string) error
}
