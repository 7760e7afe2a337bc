package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NotificationType categorizes inbox notifications; preferences key on it.
type NotificationType string

const (
	TypeWorkOrderAssigned NotificationType = "wo_assigned"
	TypeWorkOrderOverdue  NotificationType = "wo_overdue"
	TypePartLowStock      NotificationType = "part_low_stock"
	TypePMDue             NotificationType = "pm_due"
	TypeEquipmentAlert    NotificationType = "equipment_alert"
	TypePMEscalation      NotificationType = "pm_escalation"
	TypeSystemAlert       NotificationType = "system_alert"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeWorkOrderAssigned, TypeWorkOrderOverdue, TypePartLowStock, TypePMDue,
		TypeEquipmentAlert, TypePMEscalation, TypeSystemAlert:
		return true
	}
	return false
}

// Channel is a delivery channel for a notification.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Notification is the persisted inbox record.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Priority    Priority         `json:"priority"`
	Read        bool             `json:"read"`
	WorkOrderID *string          `json:"work_order_id,omitempty"`
	EquipmentID *string          `json:"equipment_id,omitempty"`
	PartID      *string          `json:"part_id,omitempty"`
	Metadata    json.RawMessage  `json:"metadata,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Expired reports whether the notification should no longer be pushed.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}

// NotificationIntent is the payload of a notification_send job.
type NotificationIntent struct {
	UserID         string           `json:"userId" validate:"required"`
	Type           NotificationType `json:"type" validate:"required"`
	Title          string           `json:"title" validate:"required,max=255"`
	Message        string           `json:"message" validate:"required,max=4096"`
	Priority       Priority         `json:"priority" validate:"required"`
	WorkOrderID    *string          `json:"workOrderId,omitempty"`
	EquipmentID    *string          `json:"equipmentId,omitempty"`
	PartID         *string          `json:"partId,omitempty"`
	Metadata       json.RawMessage  `json:"metadata,omitempty"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	NotificationID *string          `json:"notificationId,omitempty"`
}

func (i *NotificationIntent) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !i.Type.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, ErrInvalidType)
	}
	if !i.Priority.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, ErrInvalidPriority)
	}
	return nil
}

// ToNotification builds the inbox row for the intent.
func (i *NotificationIntent) ToNotification(id string, now time.Time) *Notification {
	return &Notification{
		ID:          id,
		UserID:      i.UserID,
		Type:        i.Type,
		Title:       i.Title,
		Message:     i.Message,
		Priority:    i.Priority,
		WorkOrderID: i.WorkOrderID,
		EquipmentID: i.EquipmentID,
		PartID:      i.PartID,
		Metadata:    i.Metadata,
		ExpiresAt:   i.ExpiresAt,
		CreatedAt:   now,
	}
}

// InboxFilter holds query parameters for a user's notification inbox.
type InboxFilter struct {
	UnreadOnly bool
	Page       int
	Limit      int
}
