// Package notify turns notification intents into inbox rows and channel
// deliveries, honouring per-user preferences.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// Channels lists which delivery channels are enabled.
type Channels struct {
	Push  bool
	Email bool
	SMS   bool
}

func (c Channels) Enabled() []domain.Channel {
	var out []domain.Channel
	if c.Push {
		out = append(out, domain.ChannelPush)
	}
	if c.Email {
		out = append(out, domain.ChannelEmail)
	}
	if c.SMS {
		out = append(out, domain.ChannelSMS)
	}
	return out
}

// Decision is the resolver's verdict for one notification.
// DeliverNow is false both when delivery is disabled and when it is
// deferred; DeferUntil distinguishes the two.
type Decision struct {
	DeliverNow bool
	Channels   Channels
	DeferUntil *time.Time
}

// Resolver applies notification preferences. Quiet hours are wall-clock
// times evaluated in loc.
type Resolver struct {
	prefs  repository.PreferenceRepository
	loc    *time.Location
	logger *zap.Logger
}

func NewResolver(prefs repository.PreferenceRepository, loc *time.Location, logger *zap.Logger) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{prefs: prefs, loc: loc, logger: logger}
}

var allChannels = Channels{Push: true, Email: true, SMS: true}

func (r *Resolver) Resolve(
	ctx context.Context,
	userID string,
	t domain.NotificationType,
	priority domain.Priority,
	now time.Time,
) (Decision, error) {
	pref, err := r.prefs.Get(ctx, userID, t)
	if errors.Is(err, domain.ErrNotFound) {
		return Decision{DeliverNow: true, Channels: allChannels}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("load preference: %w", err)
	}
	if !pref.Enabled {
		return Decision{}, nil
	}

	d := Decision{
		DeliverNow: true,
		Channels: Channels{
			Push:  pref.PushEnabled,
			Email: pref.EmailEnabled,
			SMS:   pref.SMSEnabled,
		},
	}
	if priority == domain.PriorityCritical || pref.QuietHoursStart == nil || pref.QuietHoursEnd == nil {
		return d, nil
	}

	start, errStart := domain.ParseTimeOfDay(*pref.QuietHoursStart)
	end, errEnd := domain.ParseTimeOfDay(*pref.QuietHoursEnd)
	if err := errors.Join(errStart, errEnd); err != nil {
		r.logger.Warn("ignoring invalid quiet hours",
			zap.String("user_id", userID),
			zap.String("notification_type", string(t)),
			zap.Error(err),
		)
		return d, nil
	}

	local := now.In(r.loc)
	if !InQuietHours(start, end, domain.TimeOfDayOf(local)) {
		return d, nil
	}
	until := nextOccurrence(local, end).UTC()
	d.DeliverNow = false
	d.DeferUntil = &until
	return d, nil
}

// InQuietHours reports whether tod lies in [start, end). The window wraps
// past midnight when end < start; start == end is an empty window.
func InQuietHours(start, end, tod domain.TimeOfDay) bool {
	if start == end {
		return false
	}
	if start < end {
		return tod >= start && tod < end
	}
	return tod >= start || tod < end
}

// nextOccurrence returns the first instant after local whose wall clock
// reads tod.
func nextOccurrence(local time.Time, tod domain.TimeOfDay) time.Time {
	y, m, d := local.Date()
	at := time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, local.Location())
	if !at.After(local) {
		at = time.Date(y, m, d+1, tod.Hour(), tod.Minute(), 0, 0, local.Location())
	}
	return at
}
