package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// SubscriptionService is the push subscription registry.
type SubscriptionService struct {
	repo   repository.SubscriptionRepository
	clock  domain.Clock
	logger *zap.Logger
}

func NewSubscriptionService(repo repository.SubscriptionRepository, clock domain.Clock, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{repo: repo, clock: clock, logger: logger}
}

// Register upserts by endpoint. A browser re-subscribing with the same
// endpoint, possibly under another user, reactivates the existing row.
func (s *SubscriptionService) Register(
	ctx context.Context,
	userID string,
	req domain.RegisterSubscriptionRequest,
) (*domain.PushSubscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", domain.ErrInvalidSubscription)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.repo.Upsert(ctx, &domain.PushSubscription{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.Keys.P256dh,
		AuthKey:   req.Keys.Auth,
		UserAgent: req.UserAgent,
		Active:    true,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("register push subscription: %w", err)
	}
	s.logger.Info("push subscription registered",
		zap.String("user_id", userID), zap.String("subscription_id", sub.ID))
	return sub, nil
}

func (s *SubscriptionService) List(ctx context.Context, userID string, activeOnly bool) ([]*domain.PushSubscription, error) {
	return s.repo.ListByUser(ctx, userID, activeOnly)
}

func (s *SubscriptionService) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *SubscriptionService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
