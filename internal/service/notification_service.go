package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// InboxService reads and acknowledges a user's in-app notifications.
type InboxService struct {
	repo   repository.NotificationRepository
	logger *zap.Logger
}

func NewInboxService(repo repository.NotificationRepository, logger *zap.Logger) *InboxService {
	return &InboxService{repo: repo, logger: logger}
}

// List returns one page of the inbox, newest first, and the total count.
func (s *InboxService) List(ctx context.Context, userID string, f domain.InboxFilter) ([]*domain.Notification, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return s.repo.ListByUser(ctx, userID, f)
}

func (s *InboxService) Get(ctx context.Context, id string) (*domain.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *InboxService) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}

func (s *InboxService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("inbox marked read", zap.String("user_id", userID), zap.Int64("count", n))
	return n, nil
}
