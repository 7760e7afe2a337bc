package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/escalation"
	"github.com/maintenancehub/escalation-engine/internal/repository"
	"github.com/maintenancehub/escalation-engine/internal/service"
)

const (
	warehouseNorth = "7b1c2f0e-6a44-4d4b-9d0e-2c8f7e51a001"
	managerNorth   = "0f3e9d4a-1b2c-4e5f-8a9b-c0d1e2f3a4b5"
)

func newEscalationService() (*service.EscalationService, *repository.MockEscalationRepository) {
	repo := repository.NewMockEscalationRepository(repository.NewMockJobRepository())
	return service.NewEscalationService(repo, repo.Rules(), fixedClock(), zap.NewNop()), repo
}

func highCorrective() domain.CreateRuleRequest {
	return domain.CreateRuleRequest{
		WorkOrderType: domain.WorkOrderCorrective,
		Priority:      domain.PriorityHigh,
		TimeoutHours:  8,
		Action:        domain.ActionNotifySupervisor,
	}
}

func TestEscalationService_CreateRuleEnforcesOneActivePerScope(t *testing.T) {
	svc, repo := newEscalationService()
	ctx := context.Background()

	def, err := svc.CreateRule(ctx, highCorrective())
	require.NoError(t, err)
	assert.True(t, def.Active)
	assert.Equal(t, fixedNow, def.CreatedAt)

	_, err = svc.CreateRule(ctx, highCorrective())
	assert.ErrorIs(t, err, domain.ErrConflict)

	scoped := highCorrective()
	scoped.TimeoutHours = 4
	scoped.Action = domain.ActionNotifyManager
	scoped.WarehouseID = strPtr(warehouseNorth)
	scoped.EscalateTo = strPtr(managerNorth)
	north, err := svc.CreateRule(ctx, scoped)
	require.NoError(t, err, "a warehouse rule coexists with the default")

	active, err := repo.ListActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	wo := &domain.WorkOrder{Type: domain.WorkOrderCorrective, Priority: domain.PriorityHigh, WarehouseID: strPtr(warehouseNorth)}
	picked := escalation.SelectRule(active, wo)
	require.NotNil(t, picked)
	assert.Equal(t, north.ID, picked.ID)

	wo.WarehouseID = strPtr("another-warehouse")
	picked = escalation.SelectRule(active, wo)
	require.NotNil(t, picked)
	assert.Equal(t, def.ID, picked.ID)
}

func TestEscalationService_CreateRuleValidates(t *testing.T) {
	svc, _ := newEscalationService()
	req := highCorrective()
	req.TimeoutHours = 0
	_, err := svc.CreateRule(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestEscalationService_UpdateAndDeactivate(t *testing.T) {
	svc, _ := newEscalationService()
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, highCorrective())
	require.NoError(t, err)

	hours := 2
	action := domain.ActionAutoReassign
	updated, err := svc.UpdateRule(ctx, rule.ID, domain.UpdateRuleRequest{
		TimeoutHours: &hours,
		Action:       &action,
		EscalateTo:   strPtr(managerNorth),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.TimeoutHours)
	assert.Equal(t, domain.ActionAutoReassign, updated.Action)
	require.NotNil(t, updated.EscalateTo)

	updated, err = svc.UpdateRule(ctx, rule.ID, domain.UpdateRuleRequest{EscalateTo: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, updated.EscalateTo)
	assert.Equal(t, 2, updated.TimeoutHours, "omitted fields keep their value")

	require.NoError(t, svc.DeactivateRule(ctx, rule.ID))
	active, err := svc.ListRules(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	// The freed scope accepts a replacement, and the retired rule cannot
	// come back while the replacement is active.
	_, err = svc.CreateRule(ctx, highCorrective())
	require.NoError(t, err)
	_, err = svc.UpdateRule(ctx, rule.ID, domain.UpdateRuleRequest{Active: boolPtr(true)})
	assert.ErrorIs(t, err, domain.ErrConflict)

	all, err := svc.ListRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, svc.DeactivateRule(ctx, "missing"), domain.ErrNotFound)
}
