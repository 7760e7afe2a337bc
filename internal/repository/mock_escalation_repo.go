package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// MockEscalationRepository is an in-memory EscalationRepository. Escalate
// holds the mutex for its whole duration, standing in for the row lock, and
// enqueues notification jobs into Jobs as the SQL transaction would.
type MockEscalationRepository struct {
	mu         sync.Mutex
	rules      []*domain.EscalationRule
	workOrders map[string]*domain.WorkOrder
	history    []*domain.EscalationHistory
	Jobs       *MockJobRepository

	// Optional error overrides.
	ListRulesErr      error
	ListWorkOrdersErr error
	EscalateErr       map[string]error
}

func NewMockEscalationRepository(jobs *MockJobRepository) *MockEscalationRepository {
	return &MockEscalationRepository{
		workOrders:  make(map[string]*domain.WorkOrder),
		Jobs:        jobs,
		EscalateErr: make(map[string]error),
	}
}

func (m *MockEscalationRepository) AddRule(rule *domain.EscalationRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *rule
	m.rules = append(m.rules, &clone)
}

func (m *MockEscalationRepository) AddWorkOrder(wo *domain.WorkOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *wo
	m.workOrders[wo.ID] = &clone
}

// WorkOrder returns a copy of the stored work order.
func (m *MockEscalationRepository) WorkOrder(id string) *domain.WorkOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	wo, ok := m.workOrders[id]
	if !ok {
		return nil
	}
	clone := *wo
	clone.LastEscalatedAt = m.lastEscalatedAt(id)
	return &clone
}

func (m *MockEscalationRepository) ListActiveRules(_ context.Context) ([]*domain.EscalationRule, error) {
	if m.ListRulesErr != nil {
		return nil, m.ListRulesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.EscalationRule
	for _, r := range m.rules {
		if r.Active {
			clone := *r
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockEscalationRepository) ListOpenWorkOrders(_ context.Context, warehouseID *string) ([]*domain.WorkOrder, error) {
	if m.ListWorkOrdersErr != nil {
		return nil, m.ListWorkOrdersErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.WorkOrder
	for _, wo := range m.workOrders {
		if !wo.Status.IsOpen() {
			continue
		}
		if warehouseID != nil && (wo.WarehouseID == nil || *wo.WarehouseID != *warehouseID) {
			continue
		}
		clone := *wo
		clone.LastEscalatedAt = m.lastEscalatedAt(wo.ID)
		result = append(result, &clone)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].CreatedAt.Before(result[b].CreatedAt) })
	return result, nil
}

func (m *MockEscalationRepository) ListHistory(_ context.Context, workOrderID string) ([]*domain.EscalationHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.EscalationHistory
	for _, h := range m.history {
		if h.WorkOrderID == workOrderID {
			clone := *h
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockEscalationRepository) Escalate(
	ctx context.Context,
	workOrderID string,
	now time.Time,
	decide DecideFunc,
) (*domain.Escalation, error) {
	if err := m.EscalateErr[workOrderID]; err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.workOrders[workOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	wo := *stored
	wo.LastEscalatedAt = m.lastEscalatedAt(workOrderID)

	esc, err := decide(&wo)
	if err != nil || esc == nil {
		return nil, err
	}

	var job *domain.Job
	if esc.Notification != nil {
		job, err = NewJob(domain.JobNotificationSend, esc.Notification, now, now)
		if err != nil {
			return nil, err
		}
	}

	h := esc.History
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	stored.Escalated = true
	stored.EscalationLevel = h.EscalationLevel
	if esc.NewAssignee != nil {
		assignee := *esc.NewAssignee
		stored.AssignedTo = &assignee
	}
	m.history = append(m.history, &h)
	if job != nil {
		if err := m.Jobs.Enqueue(ctx, job); err != nil {
			return nil, err
		}
	}
	return esc, nil
}

// lastEscalatedAt scans history; callers hold mu.
func (m *MockEscalationRepository) lastEscalatedAt(workOrderID string) *time.Time {
	var last *time.Time
	for _, h := range m.history {
		if h.WorkOrderID != workOrderID {
			continue
		}
		if last == nil || h.EscalatedAt.After(*last) {
			at := h.EscalatedAt
			last = &at
		}
	}
	return last
}

// MockDirectory is an in-memory Directory keyed by warehouse and role.
type MockDirectory struct {
	mu       sync.RWMutex
	roles    map[string]string
	contacts map[string]*domain.Contact

	ResolveErr error
}

func NewMockDirectory() *MockDirectory {
	return &MockDirectory{
		roles:    make(map[string]string),
		contacts: make(map[string]*domain.Contact),
	}
}

func roleKey(warehouseID *string, role domain.Role) string {
	if warehouseID == nil {
		return "*/" + string(role)
	}
	return *warehouseID + "/" + string(role)
}

func (d *MockDirectory) SetRole(warehouseID *string, role domain.Role, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[roleKey(warehouseID, role)] = userID
}

func (d *MockDirectory) SetContact(c domain.Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[c.UserID] = &c
}

func (d *MockDirectory) ResolveRole(_ context.Context, warehouseID *string, role domain.Role) (*string, error) {
	if d.ResolveErr != nil {
		return nil, d.ResolveErr
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id, ok := d.roles[roleKey(warehouseID, role)]; ok {
		return &id, nil
	}
	return nil, nil
}

func (d *MockDirectory) LookupContact(_ context.Context, userID string) (*domain.Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contacts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

// MockRuleRepository is the RuleRepository view over a
// MockEscalationRepository, so rules written through it are the ones the
// sweep reads.
type MockRuleRepository struct {
	m *MockEscalationRepository
}

func (m *MockEscalationRepository) Rules() *MockRuleRepository {
	return &MockRuleRepository{m: m}
}

func (r *MockRuleRepository) List(_ context.Context, activeOnly bool) ([]*domain.EscalationRule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*domain.EscalationRule
	for _, rule := range r.m.rules {
		if activeOnly && !rule.Active {
			continue
		}
		clone := *rule
		result = append(result, &clone)
	}
	return result, nil
}

func (r *MockRuleRepository) Get(_ context.Context, id string) (*domain.EscalationRule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rule := range r.m.rules {
		if rule.ID == id {
			clone := *rule
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockRuleRepository) Create(_ context.Context, rule *domain.EscalationRule) (*domain.EscalationRule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rule.Active && r.scopeTaken(rule) {
		return nil, domain.ErrConflict
	}
	clone := *rule
	if clone.ID == "" {
		clone.ID = uuid.New().String()
	}
	clone.UpdatedAt = clone.CreatedAt
	r.m.rules = append(r.m.rules, &clone)
	out := clone
	return &out, nil
}

func (r *MockRuleRepository) Update(_ context.Context, rule *domain.EscalationRule) (*domain.EscalationRule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, stored := range r.m.rules {
		if stored.ID != rule.ID {
			continue
		}
		if rule.Active && r.scopeTaken(stored) {
			return nil, domain.ErrConflict
		}
		stored.TimeoutHours = rule.TimeoutHours
		stored.Action = rule.Action
		stored.EscalateTo = rule.EscalateTo
		stored.Active = rule.Active
		stored.UpdatedAt = rule.UpdatedAt
		clone := *stored
		return &clone, nil
	}
	return nil, domain.ErrNotFound
}

// scopeTaken mirrors the partial unique index on active rules.
func (r *MockRuleRepository) scopeTaken(rule *domain.EscalationRule) bool {
	for _, other := range r.m.rules {
		if other.Active && other.ID != rule.ID && other.SameScope(rule) {
			return true
		}
	}
	return false
}
