package escalation_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/escalation"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

var (
	created     = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	warehouseA  = "wh-a"
	warehouseB  = "wh-b"
	managerA    = "user-manager-a"
	supervisorA = "user-supervisor-a"
	techA       = "user-tech-a"
)

type fixture struct {
	jobs   *repository.MockJobRepository
	repo   *repository.MockEscalationRepository
	dir    *repository.MockDirectory
	now    time.Time
	engine func(maxLevel int) *escalation.Engine
}

func newFixture() *fixture {
	f := &fixture{
		jobs: repository.NewMockJobRepository(),
		dir:  repository.NewMockDirectory(),
	}
	f.repo = repository.NewMockEscalationRepository(f.jobs)
	f.dir.SetRole(&warehouseA, domain.RoleManager, managerA)
	f.dir.SetRole(&warehouseA, domain.RoleSupervisor, supervisorA)
	f.engine = func(maxLevel int) *escalation.Engine {
		clock := domain.ClockFunc(func() time.Time { return f.now })
		return escalation.NewEngine(f.repo, f.dir, clock, maxLevel, zap.NewNop(), escalation.Hooks{})
	}
	return f
}

func emergencyRule(id string, hours int, action domain.EscalationAction) *domain.EscalationRule {
	return &domain.EscalationRule{
		ID:            id,
		WorkOrderType: domain.WorkOrderEmergency,
		Priority:      domain.PriorityCritical,
		TimeoutHours:  hours,
		Action:        action,
		Active:        true,
	}
}

func emergencyWorkOrder(id string) *domain.WorkOrder {
	return &domain.WorkOrder{
		ID:          id,
		Number:      "WO-1001",
		Type:        domain.WorkOrderEmergency,
		Status:      domain.WorkOrderAssigned,
		Priority:    domain.PriorityCritical,
		AssignedTo:  &techA,
		WarehouseID: &warehouseA,
		CreatedAt:   created,
	}
}

func notificationIntents(t *testing.T, jobs *repository.MockJobRepository) []domain.NotificationIntent {
	t.Helper()
	var out []domain.NotificationIntent
	for _, j := range jobs.Jobs(domain.JobNotificationSend) {
		var in domain.NotificationIntent
		require.NoError(t, json.Unmarshal(j.Payload, &in))
		out = append(out, in)
	}
	return out
}

func TestSweep_EscalatesOnlyAfterTimeout(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifyManager))
	f.repo.AddWorkOrder(emergencyWorkOrder("wo-1"))
	ctx := context.Background()

	f.now = created.Add(time.Hour + 59*time.Minute)
	res, err := f.engine(0).Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Escalated)
	assert.Empty(t, f.jobs.Jobs(domain.JobNotificationSend))

	f.now = created.Add(2*time.Hour + time.Minute)
	res, err = f.engine(0).Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)

	wo := f.repo.WorkOrder("wo-1")
	assert.True(t, wo.Escalated)
	assert.Equal(t, 1, wo.EscalationLevel)
	require.NotNil(t, wo.AssignedTo)
	assert.Equal(t, techA, *wo.AssignedTo)

	history, err := f.repo.ListHistory(ctx, "wo-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].EscalationLevel)
	assert.Equal(t, domain.ActionNotifyManager, history[0].Action)
	require.NotNil(t, history[0].EscalatedFrom)
	assert.Equal(t, techA, *history[0].EscalatedFrom)
	require.NotNil(t, history[0].EscalatedTo)
	assert.Equal(t, managerA, *history[0].EscalatedTo)

	intents := notificationIntents(t, f.jobs)
	require.Len(t, intents, 1)
	assert.Equal(t, managerA, intents[0].UserID)
	assert.Equal(t, domain.TypeWorkOrderOverdue, intents[0].Type)
	assert.Equal(t, "Work order escalated (level 1)", intents[0].Title)
	assert.Equal(t, domain.PriorityCritical, intents[0].Priority)
	require.NotNil(t, intents[0].WorkOrderID)
	assert.Equal(t, "wo-1", *intents[0].WorkOrderID)
	assert.NoError(t, intents[0].Validate())
}

func TestSweep_IsIdempotentWithinTimeout(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifyManager))
	f.repo.AddWorkOrder(emergencyWorkOrder("wo-1"))
	ctx := context.Background()

	f.now = created.Add(2*time.Hour + time.Minute)
	_, err := f.engine(0).Sweep(ctx, nil)
	require.NoError(t, err)

	f.now = f.now.Add(30 * time.Minute)
	res, err := f.engine(0).Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Escalated)

	history, _ := f.repo.ListHistory(ctx, "wo-1")
	assert.Len(t, history, 1)
	assert.Len(t, f.jobs.Jobs(domain.JobNotificationSend), 1)
	assert.Equal(t, 1, f.repo.WorkOrder("wo-1").EscalationLevel)
}

func TestSweep_ReescalatesFromLastEscalation(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifyManager))
	f.repo.AddWorkOrder(emergencyWorkOrder("wo-1"))
	ctx := context.Background()

	first := created.Add(2*time.Hour + time.Minute)
	f.now = first
	_, err := f.engine(0).Sweep(ctx, nil)
	require.NoError(t, err)

	// Measured from the first escalation, not from creation.
	f.now = first.Add(time.Hour + 59*time.Minute)
	res, err := f.engine(0).Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Escalated)

	f.now = first.Add(2 * time.Hour)
	res, err = f.engine(0).Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)
	assert.Equal(t, 2, f.repo.WorkOrder("wo-1").EscalationLevel)

	intents := notificationIntents(t, f.jobs)
	require.Len(t, intents, 2)
	assert.Equal(t, "Work order escalated (level 2)", intents[1].Title)
}

func TestSweep_LevelCap(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 1, domain.ActionNotifySupervisor))
	wo := emergencyWorkOrder("wo-1")
	wo.EscalationLevel = 3
	wo.Escalated = true
	f.repo.AddWorkOrder(wo)

	f.now = created.Add(10 * time.Hour)
	res, err := f.engine(3).Sweep(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Escalated)

	res, err = f.engine(0).Sweep(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)
	assert.Equal(t, 4, f.repo.WorkOrder("wo-1").EscalationLevel)
}

func TestSelectRule_Precedence(t *testing.T) {
	wo := emergencyWorkOrder("wo-1")

	global4 := emergencyRule("r-global-4", 4, domain.ActionNotifySupervisor)
	global2 := emergencyRule("r-global-2", 2, domain.ActionNotifySupervisor)
	local6 := emergencyRule("r-local-6", 6, domain.ActionNotifyManager)
	local6.WarehouseID = &warehouseA
	other1 := emergencyRule("r-other-1", 1, domain.ActionNotifyManager)
	other1.WarehouseID = &warehouseB
	tieB := emergencyRule("r-b", 2, domain.ActionNotifySupervisor)
	tieA := emergencyRule("r-a", 2, domain.ActionNotifySupervisor)

	tests := []struct {
		name  string
		rules []*domain.EscalationRule
		want  string
	}{
		{"none", nil, ""},
		{"warehouse rule beats shorter global", []*domain.EscalationRule{global2, local6, global4}, "r-local-6"},
		{"shortest global timeout", []*domain.EscalationRule{global4, global2}, "r-global-2"},
		{"other warehouse never matches", []*domain.EscalationRule{other1, global4}, "r-global-4"},
		{"only other warehouse", []*domain.EscalationRule{other1}, ""},
		{"id breaks ties", []*domain.EscalationRule{tieB, tieA}, "r-a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := escalation.SelectRule(tc.rules, wo)
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.ID)
		})
	}
}

func TestSweep_NoRecipientStillEscalates(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifyManager))
	wo := emergencyWorkOrder("wo-1")
	wo.WarehouseID = &warehouseB
	f.repo.AddWorkOrder(wo)

	f.now = created.Add(3 * time.Hour)
	res, err := f.engine(0).Sweep(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)

	history, _ := f.repo.ListHistory(context.Background(), "wo-1")
	require.Len(t, history, 1)
	assert.Nil(t, history[0].EscalatedTo)
	assert.Empty(t, f.jobs.Jobs(domain.JobNotificationSend))
}

func TestSweep_UnmatchedWorkOrder(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifyManager))
	wo := emergencyWorkOrder("wo-1")
	wo.Priority = domain.PriorityLow
	f.repo.AddWorkOrder(wo)

	var unmatched int
	clock := domain.ClockFunc(func() time.Time { return created.Add(48 * time.Hour) })
	engine := escalation.NewEngine(f.repo, f.dir, clock, 0, zap.NewNop(), escalation.Hooks{
		OnUnmatched: func() { unmatched++ },
	})

	res, err := engine.Sweep(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unmatched)
	assert.Equal(t, 1, unmatched)
	assert.Equal(t, 0, f.repo.WorkOrder("wo-1").EscalationLevel)
}

func TestSweep_ClosedWorkOrdersIgnored(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifyManager))
	wo := emergencyWorkOrder("wo-1")
	wo.Status = domain.WorkOrderCompleted
	f.repo.AddWorkOrder(wo)

	f.now = created.Add(10 * time.Hour)
	res, err := f.engine(0).Sweep(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Checked)
	assert.Empty(t, f.jobs.Jobs(domain.JobNotificationSend))
}

func TestSweep_AutoReassign(t *testing.T) {
	f := newFixture()
	target := "user-senior-tech"
	rule := emergencyRule("r1", 2, domain.ActionAutoReassign)
	rule.EscalateTo = &target
	f.repo.AddRule(rule)
	f.repo.AddWorkOrder(emergencyWorkOrder("wo-1"))

	f.now = created.Add(2 * time.Hour)
	res, err := f.engine(0).Sweep(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)

	wo := f.repo.WorkOrder("wo-1")
	require.NotNil(t, wo.AssignedTo)
	assert.Equal(t, target, *wo.AssignedTo)

	intents := notificationIntents(t, f.jobs)
	require.Len(t, intents, 1)
	assert.Equal(t, target, intents[0].UserID)
	assert.Contains(t, intents[0].Message, "reassigned to you")
}

func TestSweep_WarehouseScope(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifySupervisor))
	f.repo.AddWorkOrder(emergencyWorkOrder("wo-a"))
	other := emergencyWorkOrder("wo-b")
	other.WarehouseID = &warehouseB
	f.repo.AddWorkOrder(other)

	f.now = created.Add(3 * time.Hour)
	res, err := f.engine(0).Sweep(context.Background(), &warehouseA)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, f.repo.WorkOrder("wo-a").EscalationLevel)
	assert.Equal(t, 0, f.repo.WorkOrder("wo-b").EscalationLevel)
}

func TestSweep_ListFailureFailsJob(t *testing.T) {
	f := newFixture()
	f.repo.ListWorkOrdersErr = errors.New("connection refused")

	err := f.engine(0).Handle(context.Background(), &domain.Job{Type: domain.JobEscalationCheck})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSweep_IsolatesPerWorkOrderFailures(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifySupervisor))
	f.repo.AddWorkOrder(emergencyWorkOrder("wo-1"))
	second := emergencyWorkOrder("wo-2")
	second.CreatedAt = created.Add(time.Minute)
	f.repo.AddWorkOrder(second)
	f.repo.EscalateErr["wo-1"] = errors.New("deadlock detected")

	f.now = created.Add(3 * time.Hour)
	res, err := f.engine(0).Sweep(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, f.repo.WorkOrder("wo-1").EscalationLevel)
	assert.Equal(t, 1, f.repo.WorkOrder("wo-2").EscalationLevel)

	// Every attempted escalation failing fails the job so it is retried.
	f.repo.EscalateErr["wo-2"] = errors.New("deadlock detected")
	f.now = f.now.Add(3 * time.Hour)
	_, err = f.engine(0).Sweep(context.Background(), nil)
	require.Error(t, err)
}

func TestHandle_InvalidPayload(t *testing.T) {
	f := newFixture()
	err := f.engine(0).Handle(context.Background(), &domain.Job{
		Type:    domain.JobEscalationCheck,
		Payload: json.RawMessage(`{"warehouseId": 7}`),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestHandle_ScopedPayload(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifySupervisor))
	other := emergencyWorkOrder("wo-b")
	other.WarehouseID = &warehouseB
	f.repo.AddWorkOrder(other)

	f.now = created.Add(3 * time.Hour)
	err := f.engine(0).Handle(context.Background(), &domain.Job{
		Type:    domain.JobEscalationCheck,
		Payload: json.RawMessage(`{"warehouseId":"wh-a"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.repo.WorkOrder("wo-b").EscalationLevel)
}

func TestSweep_ConcurrentSweepsEscalateOnce(t *testing.T) {
	f := newFixture()
	f.repo.AddRule(emergencyRule("r1", 2, domain.ActionNotifyManager))
	f.repo.AddWorkOrder(emergencyWorkOrder("wo-1"))
	f.now = created.Add(2*time.Hour + time.Minute)
	ctx := context.Background()

	const sweeps = 16
	results := make([]escalation.Result, sweeps)
	errs := make([]error, sweeps)
	var wg sync.WaitGroup
	for i := 0; i < sweeps; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.engine(0).Sweep(ctx, nil)
		}(i)
	}
	wg.Wait()

	escalated := 0
	for i := range results {
		require.NoError(t, errs[i])
		escalated += results[i].Escalated
	}
	assert.Equal(t, 1, escalated)

	history, err := f.repo.ListHistory(ctx, "wo-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, f.repo.WorkOrder("wo-1").EscalationLevel)
	assert.Len(t, f.jobs.Jobs(domain.JobNotificationSend), 1)
}
