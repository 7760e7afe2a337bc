package domain

import "time"

type WorkOrderType string

const (
	WorkOrderCorrective WorkOrderType = "corrective"
	WorkOrderPreventive WorkOrderType = "preventive"
	WorkOrderEmergency  WorkOrderType = "emergency"
)

func (t WorkOrderType) IsValid() bool {
	switch t {
	case WorkOrderCorrective, WorkOrderPreventive, WorkOrderEmergency:
		return true
	}
	return false
}

type WorkOrderStatus string

const (
	WorkOrderNew        WorkOrderStatus = "new"
	WorkOrderAssigned   WorkOrderStatus = "assigned"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderVerified   WorkOrderStatus = "verified"
	WorkOrderClosed     WorkOrderStatus = "closed"
)

// IsOpen reports whether the work order is still eligible for escalation.
func (s WorkOrderStatus) IsOpen() bool {
	switch s {
	case WorkOrderCompleted, WorkOrderVerified, WorkOrderClosed:
		return false
	}
	return true
}

// Priority is shared by work orders and notifications.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// WorkOrder is owned by the surrounding application. The engine only writes
// Escalated, EscalationLevel and AssignedTo.
type WorkOrder struct {
	ID              string          `json:"id"`
	Number          string          `json:"wo_number"`
	Type            WorkOrderType   `json:"type"`
	Status          WorkOrderStatus `json:"status"`
	Priority        Priority        `json:"priority"`
	Description     string          `json:"description"`
	AssignedTo      *string         `json:"assigned_to,omitempty"`
	WarehouseID     *string         `json:"warehouse_id,omitempty"`
	EquipmentID     *string         `json:"equipment_id,omitempty"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Escalated       bool            `json:"escalated"`
	EscalationLevel int             `json:"escalation_level"`
	CreatedAt       time.Time       `json:"created_at"`

	// LastEscalatedAt is derived from escalation_history, not stored on the row.
	LastEscalatedAt *time.Time `json:"last_escalated_at,omitempty"`
}

// ReferencePoint is the instant the escalation timeout is measured from:
// creation, or the most recent escalation if there was one.
func (w *WorkOrder) ReferencePoint() time.Time {
	if w.LastEscalatedAt != nil && w.LastEscalatedAt.After(w.CreatedAt) {
		return *w.LastEscalatedAt
	}
	return w.CreatedAt
}

// Role names used for escalation recipient lookup.
type Role string

const (
	RoleTechnician Role = "technician"
	RoleSupervisor Role = "supervisor"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
)

// Contact carries the delivery addresses of a user.
type Contact struct {
	UserID string
	Email  string
	Phone  *string
}
