package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/notify"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

func strPtr(s string) *string { return &s }

func quietPref(userID, start, end string) *domain.NotificationPreference {
	return &domain.NotificationPreference{
		UserID:           userID,
		NotificationType: domain.TypeWorkOrderOverdue,
		Enabled:          true,
		PushEnabled:      true,
		EmailEnabled:     true,
		SMSEnabled:       false,
		QuietHoursStart:  strPtr(start),
		QuietHoursEnd:    strPtr(end),
	}
}

func TestInQuietHours(t *testing.T) {
	tod := func(s string) domain.TimeOfDay {
		v, err := domain.ParseTimeOfDay(s)
		require.NoError(t, err)
		return v
	}

	tests := []struct {
		start, end, at string
		want           bool
	}{
		{"22:00", "08:00", "21:59", false},
		{"22:00", "08:00", "22:00", true},
		{"22:00", "08:00", "23:30", true},
		{"22:00", "08:00", "00:00", true},
		{"22:00", "08:00", "07:59", true},
		{"22:00", "08:00", "08:00", false},
		{"12:00", "13:00", "12:30", true},
		{"12:00", "13:00", "13:00", false},
		{"12:00", "13:00", "11:59", false},
		{"09:00", "09:00", "09:00", false},
	}
	for _, tc := range tests {
		t.Run(tc.start+"-"+tc.end+"@"+tc.at, func(t *testing.T) {
			assert.Equal(t, tc.want, notify.InQuietHours(tod(tc.start), tod(tc.end), tod(tc.at)))
		})
	}
}

func TestResolver_DefaultAllow(t *testing.T) {
	r := notify.NewResolver(repository.NewMockPreferenceRepository(), time.UTC, zap.NewNop())

	d, err := r.Resolve(context.Background(), "user-1", domain.TypeWorkOrderOverdue, domain.PriorityLow, time.Now())
	require.NoError(t, err)
	assert.True(t, d.DeliverNow)
	assert.Equal(t, notify.Channels{Push: true, Email: true, SMS: true}, d.Channels)
	assert.Nil(t, d.DeferUntil)
}

func TestResolver_Disabled(t *testing.T) {
	prefs := repository.NewMockPreferenceRepository()
	p := quietPref("user-1", "22:00", "08:00")
	p.Enabled = false
	_, err := prefs.Upsert(context.Background(), p)
	require.NoError(t, err)

	r := notify.NewResolver(prefs, time.UTC, zap.NewNop())
	d, err := r.Resolve(context.Background(), "user-1", domain.TypeWorkOrderOverdue, domain.PriorityCritical, time.Now())
	require.NoError(t, err)
	assert.False(t, d.DeliverNow)
	assert.Nil(t, d.DeferUntil)
	assert.Empty(t, d.Channels.Enabled())
}

func TestResolver_QuietHours(t *testing.T) {
	prefs := repository.NewMockPreferenceRepository()
	_, err := prefs.Upsert(context.Background(), quietPref("user-1", "22:00", "08:00"))
	require.NoError(t, err)
	r := notify.NewResolver(prefs, time.UTC, zap.NewNop())
	ctx := context.Background()

	lateEvening := time.Date(2026, 3, 2, 23, 15, 0, 0, time.UTC)
	d, err := r.Resolve(ctx, "user-1", domain.TypeWorkOrderOverdue, domain.PriorityHigh, lateEvening)
	require.NoError(t, err)
	assert.False(t, d.DeliverNow)
	require.NotNil(t, d.DeferUntil)
	assert.Equal(t, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), *d.DeferUntil)
	assert.Equal(t, notify.Channels{Push: true, Email: true}, d.Channels)

	earlyMorning := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)
	d, err = r.Resolve(ctx, "user-1", domain.TypeWorkOrderOverdue, domain.PriorityLow, earlyMorning)
	require.NoError(t, err)
	require.NotNil(t, d.DeferUntil)
	assert.Equal(t, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), *d.DeferUntil)

	d, err = r.Resolve(ctx, "user-1", domain.TypeWorkOrderOverdue, domain.PriorityCritical, lateEvening)
	require.NoError(t, err)
	assert.True(t, d.DeliverNow)
	assert.Nil(t, d.DeferUntil)

	midday := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	d, err = r.Resolve(ctx, "user-1", domain.TypeWorkOrderOverdue, domain.PriorityLow, midday)
	require.NoError(t, err)
	assert.True(t, d.DeliverNow)

	// Preferences are per type.
	d, err = r.Resolve(ctx, "user-1", domain.TypePMDue, domain.PriorityLow, lateEvening)
	require.NoError(t, err)
	assert.True(t, d.DeliverNow)
}

func TestResolver_QuietHoursInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	prefs := repository.NewMockPreferenceRepository()
	_, err := prefs.Upsert(context.Background(), quietPref("user-1", "22:00", "08:00"))
	require.NoError(t, err)
	r := notify.NewResolver(prefs, loc, zap.NewNop())

	// 20:00 UTC is 23:00 local.
	now := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	d, err := r.Resolve(context.Background(), "user-1", domain.TypeWorkOrderOverdue, domain.PriorityMedium, now)
	require.NoError(t, err)
	require.NotNil(t, d.DeferUntil)
	assert.Equal(t, time.Date(2026, 3, 3, 5, 0, 0, 0, time.UTC), *d.DeferUntil)
}

func TestResolver_InvalidQuietHoursFailOpen(t *testing.T) {
	prefs := repository.NewMockPreferenceRepository()
	_, err := prefs.Upsert(context.Background(), quietPref("user-1", "10pm", "08:00"))
	require.NoError(t, err)
	r := notify.NewResolver(prefs, time.UTC, zap.NewNop())

	d, err := r.Resolve(context.Background(), "user-1", domain.TypeWorkOrderOverdue, domain.PriorityLow,
		time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, d.DeliverNow)
}

func TestResolver_LookupError(t *testing.T) {
	prefs := repository.NewMockPreferenceRepository()
	prefs.GetErr = errors.New("connection reset")
	r := notify.NewResolver(prefs, time.UTC, zap.NewNop())

	_, err := r.Resolve(context.Background(), "user-1", domain.TypeWorkOrderOverdue, domain.PriorityLow, time.Now())
	assert.Error(t, err)
}
