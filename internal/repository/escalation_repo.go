package repository

import (
	"context"
	"time"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// DecideFunc inspects a work order re-read under its row lock and returns the
// escalation to apply, or nil when the work order no longer qualifies.
type DecideFunc func(wo *domain.WorkOrder) (*domain.Escalation, error)

// EscalationRepository reads rules and open work orders and applies
// escalations atomically.
type EscalationRepository interface {
	ListActiveRules(ctx context.Context) ([]*domain.EscalationRule, error)
	// ListOpenWorkOrders returns non-terminal work orders with
	// LastEscalatedAt populated. A nil warehouseID means all warehouses.
	ListOpenWorkOrders(ctx context.Context, warehouseID *string) ([]*domain.WorkOrder, error)
	ListHistory(ctx context.Context, workOrderID string) ([]*domain.EscalationHistory, error)

	// Escalate locks the work order, calls decide, and in the same
	// transaction updates the work order, appends history and enqueues the
	// notification job. Returns nil, nil when decide declines.
	Escalate(ctx context.Context, workOrderID string, now time.Time, decide DecideFunc) (*domain.Escalation, error)
}

// RuleRepository manages escalation rules. Create and Update return
// domain.ErrConflict when the write would leave two active rules in one
// (type, priority, warehouse) scope.
type RuleRepository interface {
	List(ctx context.Context, activeOnly bool) ([]*domain.EscalationRule, error)
	Get(ctx context.Context, id string) (*domain.EscalationRule, error)
	Create(ctx context.Context, rule *domain.EscalationRule) (*domain.EscalationRule, error)
	Update(ctx context.Context, rule *domain.EscalationRule) (*domain.EscalationRule, error)
}

// Directory resolves users for escalation routing and channel delivery.
type Directory interface {
	// ResolveRole returns an active user holding role in the warehouse, or
	// nil when there is none.
	ResolveRole(ctx context.Context, warehouseID *string, role domain.Role) (*string, error)
	LookupContact(ctx context.Context, userID string) (*domain.Contact, error)
}
