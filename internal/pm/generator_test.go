package pm_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/pm"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

func TestGenerator_NotifiesAssignees(t *testing.T) {
	now := time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC)
	tech := "user-tech"
	conveyor := "3d2f1a0b-9c8e-4f7d-a6b5-c4d3e2f1a0b9"
	jobs := repository.NewMockJobRepository()
	repo := &repository.MockPMRepository{
		Jobs: jobs,
		Due: []*domain.WorkOrder{
			{ID: "wo-1", Number: "PM-1", Type: domain.WorkOrderPreventive, Priority: domain.PriorityMedium, AssignedTo: &tech, EquipmentID: &conveyor, DueDate: &now, Description: "Lubricate conveyor"},
			{ID: "wo-2", Number: "PM-2", Type: domain.WorkOrderPreventive, Priority: domain.PriorityMedium},
		},
	}
	gen := pm.NewGenerator(repo, domain.ClockFunc(func() time.Time { return now }), zap.NewNop())

	require.NoError(t, gen.Handle(context.Background(), &domain.Job{Type: domain.JobPMGeneration}))

	sent := jobs.Jobs(domain.JobNotificationSend)
	require.Len(t, sent, 1)
	var intent domain.NotificationIntent
	require.NoError(t, json.Unmarshal(sent[0].Payload, &intent))
	assert.Equal(t, tech, intent.UserID)
	assert.Equal(t, domain.TypePMDue, intent.Type)
	assert.Contains(t, intent.Message, "2026-05-04")
	assert.Contains(t, intent.Message, "Lubricate conveyor")
	require.NotNil(t, intent.EquipmentID)
	assert.Equal(t, conveyor, *intent.EquipmentID)
	assert.NoError(t, intent.Validate())
}

func TestGenerator_Errors(t *testing.T) {
	repo := &repository.MockPMRepository{Jobs: repository.NewMockJobRepository(), GenerateErr: errors.New("timeout")}
	gen := pm.NewGenerator(repo, domain.RealClock{}, zap.NewNop())

	err := gen.Handle(context.Background(), &domain.Job{Type: domain.JobPMGeneration})
	require.Error(t, err)

	err = gen.Handle(context.Background(), &domain.Job{Type: domain.JobPMGeneration, Payload: json.RawMessage(`[`)})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
