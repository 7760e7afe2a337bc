package domain

import (
	"fmt"
	"time"
)

type EscalationAction string

const (
	ActionNotifySupervisor EscalationAction = "notify_supervisor"
	ActionNotifyManager    EscalationAction = "notify_manager"
	ActionAutoReassign     EscalationAction = "auto_reassign"
)

func (a EscalationAction) IsValid() bool {
	switch a {
	case ActionNotifySupervisor, ActionNotifyManager, ActionAutoReassign:
		return true
	}
	return false
}

// FallbackRole is the warehouse role notified when a rule names no explicit
// recipient.
func (a EscalationAction) FallbackRole() Role {
	if a == ActionNotifyManager {
		return RoleManager
	}
	return RoleSupervisor
}

// EscalationRule maps (work order type, priority) to a timeout and an action.
type EscalationRule struct {
	ID            string           `json:"id"`
	WorkOrderType WorkOrderType    `json:"work_order_type"`
	Priority      Priority         `json:"priority"`
	TimeoutHours  int              `json:"timeout_hours"`
	Action        EscalationAction `json:"escalation_action"`
	EscalateTo    *string          `json:"escalate_to,omitempty"`
	WarehouseID   *string          `json:"warehouse_id,omitempty"`
	Active        bool             `json:"active"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// SameScope reports whether both rules cover the same (type, priority,
// warehouse) slot. At most one active rule may hold a slot.
func (r *EscalationRule) SameScope(o *EscalationRule) bool {
	if r.WorkOrderType != o.WorkOrderType || r.Priority != o.Priority {
		return false
	}
	if r.WarehouseID == nil || o.WarehouseID == nil {
		return r.WarehouseID == nil && o.WarehouseID == nil
	}
	return *r.WarehouseID == *o.WarehouseID
}

// CreateRuleRequest is the body of POST /api/v1/escalation-rules.
type CreateRuleRequest struct {
	WorkOrderType WorkOrderType    `json:"work_order_type"`
	Priority      Priority         `json:"priority"`
	TimeoutHours  int              `json:"timeout_hours" validate:"gte=1,lte=8760"`
	Action        EscalationAction `json:"escalation_action"`
	EscalateTo    *string          `json:"escalate_to" validate:"omitempty,uuid"`
	WarehouseID   *string          `json:"warehouse_id" validate:"omitempty,uuid"`
}

func (r *CreateRuleRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if !r.WorkOrderType.IsValid() {
		return fmt.Errorf("%w: unknown work order type %q", ErrInvalidRule, r.WorkOrderType)
	}
	if !r.Priority.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidRule, ErrInvalidPriority)
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("%w: unknown escalation action %q", ErrInvalidRule, r.Action)
	}
	return nil
}

// UpdateRuleRequest is the body of PUT /api/v1/escalation-rules/{id}. Omitted
// fields keep their value; an empty escalate_to clears the recipient. The
// scope fields are fixed once a rule exists.
type UpdateRuleRequest struct {
	TimeoutHours *int              `json:"timeout_hours" validate:"omitempty,gte=1,lte=8760"`
	Action       *EscalationAction `json:"escalation_action"`
	EscalateTo   *string           `json:"escalate_to" validate:"omitempty,uuid"`
	Active       *bool             `json:"active"`
}

func (r *UpdateRuleRequest) Validate() error {
	if r.EscalateTo != nil && *r.EscalateTo == "" {
		cleared := *r
		cleared.EscalateTo = nil
		return cleared.Validate()
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if r.Action != nil && !r.Action.IsValid() {
		return fmt.Errorf("%w: unknown escalation action %q", ErrInvalidRule, *r.Action)
	}
	return nil
}

func (r *EscalationRule) Timeout() time.Duration {
	return time.Duration(r.TimeoutHours) * time.Hour
}

// Matches reports whether the rule applies to the work order. A rule scoped
// to another warehouse never matches.
func (r *EscalationRule) Matches(wo *WorkOrder) bool {
	if !r.Active || r.WorkOrderType != wo.Type || r.Priority != wo.Priority {
		return false
	}
	if r.WarehouseID == nil {
		return true
	}
	return wo.WarehouseID != nil && *wo.WarehouseID == *r.WarehouseID
}

// EscalationHistory is an append-only record of one escalation step.
type EscalationHistory struct {
	ID              string           `json:"id"`
	WorkOrderID     string           `json:"work_order_id"`
	RuleID          *string          `json:"rule_id,omitempty"`
	EscalationLevel int              `json:"escalation_level"`
	EscalatedFrom   *string          `json:"escalated_from,omitempty"`
	EscalatedTo     *string          `json:"escalated_to,omitempty"`
	Action          EscalationAction `json:"action"`
	Reason          string           `json:"reason"`
	EscalatedAt     time.Time        `json:"escalated_at"`
}

// Escalation is the outcome of deciding to escalate one work order: the
// history row, the work order's new assignee, and the notification to emit
// (nil when no recipient could be resolved).
type Escalation struct {
	History      EscalationHistory
	NewAssignee  *string
	Notification *NotificationIntent
}

// EscalationReason renders the human-readable history reason.
func EscalationReason(rule *EscalationRule, elapsed time.Duration) string {
	return fmt.Sprintf("open for %s, exceeding %dh timeout for %s/%s",
		elapsed.Truncate(time.Minute), rule.TimeoutHours, rule.WorkOrderType, rule.Priority)
}
