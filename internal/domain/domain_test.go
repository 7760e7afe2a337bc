package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.TimeOfDay
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:00", 480, false},
		{"22:30", 1350, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"8:00", 0, true},
		{"08:60", 0, true},
		{"ab:cd", 0, true},
		{"+1:30", 0, true},
		{"-0:30", 0, true},
		{"08:+5", 0, true},
		{" 8:00", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := domain.ParseTimeOfDay(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidTimeOfDay)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.in, got.String())
		})
	}
}

func TestEscalationRule_Matches(t *testing.T) {
	wh := "wh-1"
	wo := &domain.WorkOrder{
		Type:        domain.WorkOrderEmergency,
		Priority:    domain.PriorityCritical,
		WarehouseID: &wh,
	}

	tests := []struct {
		name string
		rule domain.EscalationRule
		want bool
	}{
		{"global default", domain.EscalationRule{WorkOrderType: domain.WorkOrderEmergency, Priority: domain.PriorityCritical, Active: true}, true},
		{"same warehouse", domain.EscalationRule{WorkOrderType: domain.WorkOrderEmergency, Priority: domain.PriorityCritical, WarehouseID: strPtr("wh-1"), Active: true}, true},
		{"other warehouse", domain.EscalationRule{WorkOrderType: domain.WorkOrderEmergency, Priority: domain.PriorityCritical, WarehouseID: strPtr("wh-2"), Active: true}, false},
		{"inactive", domain.EscalationRule{WorkOrderType: domain.WorkOrderEmergency, Priority: domain.PriorityCritical}, false},
		{"wrong priority", domain.EscalationRule{WorkOrderType: domain.WorkOrderEmergency, Priority: domain.PriorityHigh, Active: true}, false},
		{"wrong type", domain.EscalationRule{WorkOrderType: domain.WorkOrderCorrective, Priority: domain.PriorityCritical, Active: true}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rule.Matches(wo))
		})
	}
}

func TestWorkOrder_ReferencePoint(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	wo := &domain.WorkOrder{CreatedAt: created}

	assert.Equal(t, created, wo.ReferencePoint())

	later := created.Add(3 * time.Hour)
	wo.LastEscalatedAt = &later
	assert.Equal(t, later, wo.ReferencePoint())

	// History older than creation (imported data) never moves the reference
	// point backwards.
	earlier := created.Add(-time.Hour)
	wo.LastEscalatedAt = &earlier
	assert.Equal(t, created, wo.ReferencePoint())
}

func TestWorkOrderStatus_IsOpen(t *testing.T) {
	open := []domain.WorkOrderStatus{domain.WorkOrderNew, domain.WorkOrderAssigned, domain.WorkOrderInProgress}
	closed := []domain.WorkOrderStatus{domain.WorkOrderCompleted, domain.WorkOrderVerified, domain.WorkOrderClosed}
	for _, s := range open {
		assert.True(t, s.IsOpen(), s)
	}
	for _, s := range closed {
		assert.False(t, s.IsOpen(), s)
	}
}

func TestNotificationIntent_Validate(t *testing.T) {
	valid := domain.NotificationIntent{
		UserID:   "user-1",
		Type:     domain.TypeWorkOrderOverdue,
		Title:    "Work order escalated",
		Message:  "WO-1 is overdue",
		Priority: domain.PriorityHigh,
	}
	require.NoError(t, valid.Validate())

	missingUser := valid
	missingUser.UserID = ""
	assert.ErrorIs(t, missingUser.Validate(), domain.ErrInvalidPayload)

	badType := valid
	badType.Type = "fax"
	err := badType.Validate()
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	badPriority := valid
	badPriority.Priority = "urgent"
	assert.ErrorIs(t, badPriority.Validate(), domain.ErrInvalidPriority)
}

func TestEnqueueRequest_Validate(t *testing.T) {
	ok := domain.EnqueueRequest{Type: domain.JobEscalationCheck, Payload: json.RawMessage(`{}`)}
	require.NoError(t, ok.Validate())

	bad := domain.EnqueueRequest{Type: "cleanup"}
	assert.True(t, errors.Is(bad.Validate(), domain.ErrInvalidJobType))

	malformed := domain.EnqueueRequest{Type: domain.JobNotificationSend, Payload: json.RawMessage(`{"userId":`)}
	assert.ErrorIs(t, malformed.Validate(), domain.ErrInvalidPayload)
}

func TestRegisterSubscriptionRequest_Validate(t *testing.T) {
	var req domain.RegisterSubscriptionRequest
	req.Endpoint = "https://fcm.googleapis.com/fcm/send/abc"
	req.Keys.P256dh = "BNcRd"
	req.Keys.Auth = "tBHI"
	require.NoError(t, req.Validate())

	insecure := req
	insecure.Endpoint = "http://push.example.com/abc"
	assert.ErrorIs(t, insecure.Validate(), domain.ErrInvalidSubscription)

	noKeys := req
	noKeys.Keys.Auth = ""
	assert.ErrorIs(t, noKeys.Validate(), domain.ErrInvalidSubscription)
}

func TestUpsertPreferenceRequest_Validate(t *testing.T) {
	r := domain.UpsertPreferenceRequest{QuietHoursStart: strPtr("22:00"), QuietHoursEnd: strPtr("07:00")}
	require.NoError(t, r.Validate())

	half := domain.UpsertPreferenceRequest{QuietHoursStart: strPtr("22:00")}
	assert.ErrorIs(t, half.Validate(), domain.ErrInvalidTimeOfDay)

	bad := domain.UpsertPreferenceRequest{QuietHoursStart: strPtr("25:00"), QuietHoursEnd: strPtr("07:00")}
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvalidTimeOfDay)

	cleared := domain.UpsertPreferenceRequest{QuietHoursStart: strPtr(""), QuietHoursEnd: strPtr("")}
	require.NoError(t, cleared.Validate())
	assert.True(t, cleared.ClearsQuietHours())
	assert.False(t, r.ClearsQuietHours())
}

func TestCreateRuleRequest_Validate(t *testing.T) {
	valid := domain.CreateRuleRequest{
		WorkOrderType: domain.WorkOrderEmergency,
		Priority:      domain.PriorityCritical,
		TimeoutHours:  2,
		Action:        domain.ActionNotifyManager,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *domain.CreateRuleRequest)
	}{
		{"zero timeout", func(r *domain.CreateRuleRequest) { r.TimeoutHours = 0 }},
		{"unknown type", func(r *domain.CreateRuleRequest) { r.WorkOrderType = "cosmetic" }},
		{"unknown priority", func(r *domain.CreateRuleRequest) { r.Priority = "urgent" }},
		{"unknown action", func(r *domain.CreateRuleRequest) { r.Action = "page_everyone" }},
		{"recipient not a uuid", func(r *domain.CreateRuleRequest) { r.EscalateTo = strPtr("bob") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			assert.ErrorIs(t, r.Validate(), domain.ErrInvalidRule)
		})
	}
}

func TestUpdateRuleRequest_Validate(t *testing.T) {
	hours := 0
	assert.ErrorIs(t, (&domain.UpdateRuleRequest{TimeoutHours: &hours}).Validate(), domain.ErrInvalidRule)

	bad := domain.EscalationAction("page_everyone")
	assert.ErrorIs(t, (&domain.UpdateRuleRequest{Action: &bad}).Validate(), domain.ErrInvalidRule)

	assert.NoError(t, (&domain.UpdateRuleRequest{EscalateTo: strPtr("")}).Validate())
	assert.NoError(t, (&domain.UpdateRuleRequest{}).Validate())
}

func TestEscalationRule_SameScope(t *testing.T) {
	wh1, wh2 := "wh-1", "wh-2"
	base := domain.EscalationRule{WorkOrderType: domain.WorkOrderCorrective, Priority: domain.PriorityHigh}

	other := base
	assert.True(t, base.SameScope(&other))

	scoped := base
	scoped.WarehouseID = &wh1
	assert.False(t, base.SameScope(&scoped), "warehouse rule and default coexist")

	sameWh := scoped
	sameWh.WarehouseID = strPtr(wh1)
	assert.True(t, scoped.SameScope(&sameWh))

	otherWh := scoped
	otherWh.WarehouseID = &wh2
	assert.False(t, scoped.SameScope(&otherWh))

	otherPriority := base
	otherPriority.Priority = domain.PriorityLow
	assert.False(t, base.SameScope(&otherPriority))
}
