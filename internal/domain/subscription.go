package domain

import (
	"fmt"
	"time"
)

// PushSubscription is one browser/device endpoint registered for Web Push.
type PushSubscription struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Endpoint  string     `json:"endpoint"`
	P256dhKey string     `json:"p256dh_key"`
	AuthKey   string     `json:"auth_key"`
	UserAgent string     `json:"user_agent"`
	Active    bool       `json:"active"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RegisterSubscriptionRequest mirrors the browser PushSubscription JSON.
type RegisterSubscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url,startswith=https://"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
	UserAgent string `json:"user_agent" validate:"max=512"`
}

func (r *RegisterSubscriptionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}
	return nil
}
