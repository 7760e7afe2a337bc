package domain

import (
	"fmt"
	"time"
)

// NotificationPreference controls delivery of one notification type to one
// user. The absence of a row means every channel is enabled.
type NotificationPreference struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	NotificationType NotificationType `json:"notification_type"`
	Enabled          bool             `json:"enabled"`
	EmailEnabled     bool             `json:"email_enabled"`
	PushEnabled      bool             `json:"push_enabled"`
	SMSEnabled       bool             `json:"sms_enabled"`
	QuietHoursStart  *string          `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd    *string          `json:"quiet_hours_end,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// UpsertPreferenceRequest is the inbound payload for setting a preference.
type UpsertPreferenceRequest struct {
	Enabled         *bool   `json:"enabled"`
	EmailEnabled    *bool   `json:"email_enabled"`
	PushEnabled     *bool   `json:"push_enabled"`
	SMSEnabled      *bool   `json:"sms_enabled"`
	QuietHoursStart *string `json:"quiet_hours_start"`
	QuietHoursEnd   *string `json:"quiet_hours_end"`
}

// ClearsQuietHours reports whether the request removes the quiet window,
// expressed as empty start and end.
func (r *UpsertPreferenceRequest) ClearsQuietHours() bool {
	return r.QuietHoursStart != nil && r.QuietHoursEnd != nil &&
		*r.QuietHoursStart == "" && *r.QuietHoursEnd == ""
}

func (r *UpsertPreferenceRequest) Validate() error {
	if (r.QuietHoursStart == nil) != (r.QuietHoursEnd == nil) {
		return fmt.Errorf("%w: quiet hours need both start and end", ErrInvalidTimeOfDay)
	}
	if r.ClearsQuietHours() {
		return nil
	}
	for _, s := range []*string{r.QuietHoursStart, r.QuietHoursEnd} {
		if s == nil {
			continue
		}
		if _, err := ParseTimeOfDay(*s); err != nil {
			return err
		}
	}
	return nil
}

// TimeOfDay is a wall-clock time expressed as minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[0:2]) || !isDigits(s[3:5]) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return TimeOfDay(h*60 + m), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// TimeOfDayOf returns the wall-clock time of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}
