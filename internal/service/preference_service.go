package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

type PreferenceService struct {
	repo  repository.PreferenceRepository
	clock domain.Clock
}

func NewPreferenceService(repo repository.PreferenceRepository, clock domain.Clock) *PreferenceService {
	return &PreferenceService{repo: repo, clock: clock}
}

func (s *PreferenceService) List(ctx context.Context, userID string) ([]*domain.NotificationPreference, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns the stored preference, or the default-allow preference when
// the user never set one.
func (s *PreferenceService) Get(ctx context.Context, userID string, t domain.NotificationType) (*domain.NotificationPreference, error) {
	if !t.IsValid() {
		return nil, domain.ErrInvalidType
	}
	p, err := s.repo.Get(ctx, userID, t)
	if errors.Is(err, domain.ErrNotFound) {
		return defaultPreference(userID, t), nil
	}
	return p, err
}

// Upsert applies the request on top of the current preference; fields the
// request omits keep their current value.
func (s *PreferenceService) Upsert(
	ctx context.Context,
	userID string,
	t domain.NotificationType,
	req domain.UpsertPreferenceRequest,
) (*domain.NotificationPreference, error) {
	if !t.IsValid() {
		return nil, domain.ErrInvalidType
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, userID, t)
	if err != nil {
		return nil, fmt.Errorf("load preference: %w", err)
	}
	if req.Enabled != nil {
		p.Enabled = *req.Enabled
	}
	if req.EmailEnabled != nil {
		p.EmailEnabled = *req.EmailEnabled
	}
	if req.PushEnabled != nil {
		p.PushEnabled = *req.PushEnabled
	}
	if req.SMSEnabled != nil {
		p.SMSEnabled = *req.SMSEnabled
	}
	if req.ClearsQuietHours() {
		p.QuietHoursStart, p.QuietHoursEnd = nil, nil
	} else if req.QuietHoursStart != nil {
		p.QuietHoursStart = req.QuietHoursStart
		p.QuietHoursEnd = req.QuietHoursEnd
	}

	now := s.clock.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return s.repo.Upsert(ctx, p)
}

// Delete removes the preference so the default-allow behaviour applies again.
func (s *PreferenceService) Delete(ctx context.Context, userID string, t domain.NotificationType) error {
	if !t.IsValid() {
		return domain.ErrInvalidType
	}
	return s.repo.Delete(ctx, userID, t)
}

func defaultPreference(userID string, t domain.NotificationType) *domain.NotificationPreference {
	return &domain.NotificationPreference{
		UserID:           userID,
		NotificationType: t,
		Enabled:          true,
		EmailEnabled:     true,
		PushEnabled:      true,
		SMSEnabled:       true,
	}
}
