package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// EscalationService exposes the escalation audit trail and manages the rules
// the sweep applies.
type EscalationService struct {
	repo   repository.EscalationRepository
	rules  repository.RuleRepository
	clock  domain.Clock
	logger *zap.Logger
}

func NewEscalationService(
	repo repository.EscalationRepository,
	rules repository.RuleRepository,
	clock domain.Clock,
	logger *zap.Logger,
) *EscalationService {
	return &EscalationService{repo: repo, rules: rules, clock: clock, logger: logger}
}

// History returns a work order's escalation steps in level order.
func (s *EscalationService) History(ctx context.Context, workOrderID string) ([]*domain.EscalationHistory, error) {
	return s.repo.ListHistory(ctx, workOrderID)
}

func (s *EscalationService) ListRules(ctx context.Context, activeOnly bool) ([]*domain.EscalationRule, error) {
	return s.rules.List(ctx, activeOnly)
}

func (s *EscalationService) GetRule(ctx context.Context, id string) (*domain.EscalationRule, error) {
	return s.rules.Get(ctx, id)
}

// CreateRule adds an active rule. A second active rule in the same
// (type, priority, warehouse) scope is rejected with ErrConflict.
func (s *EscalationService) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (*domain.EscalationRule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	rule, err := s.rules.Create(ctx, &domain.EscalationRule{
		WorkOrderType: req.WorkOrderType,
		Priority:      req.Priority,
		TimeoutHours:  req.TimeoutHours,
		Action:        req.Action,
		EscalateTo:    req.EscalateTo,
		WarehouseID:   req.WarehouseID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("escalation rule created",
		zap.String("rule_id", rule.ID),
		zap.String("work_order_type", string(rule.WorkOrderType)),
		zap.String("priority", string(rule.Priority)),
	)
	return rule, nil
}

// UpdateRule applies req on top of the stored rule.
func (s *EscalationService) UpdateRule(ctx context.Context, id string, req domain.UpdateRuleRequest) (*domain.EscalationRule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rule, err := s.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TimeoutHours != nil {
		rule.TimeoutHours = *req.TimeoutHours
	}
	if req.Action != nil {
		rule.Action = *req.Action
	}
	if req.EscalateTo != nil {
		if *req.EscalateTo == "" {
			rule.EscalateTo = nil
		} else {
			to := *req.EscalateTo
			rule.EscalateTo = &to
		}
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	rule.UpdatedAt = s.clock.Now()

	updated, err := s.rules.Update(ctx, rule)
	if err != nil {
		return nil, err
	}
	s.logger.Info("escalation rule updated", zap.String("rule_id", id), zap.Bool("active", updated.Active))
	return updated, nil
}

// DeactivateRule retires a rule. Rules are never deleted because history
// rows reference them.
func (s *EscalationService) DeactivateRule(ctx context.Context, id string) error {
	inactive := false
	if _, err := s.UpdateRule(ctx, id, domain.UpdateRuleRequest{Active: &inactive}); err != nil {
		return fmt.Errorf("deactivate escalation rule: %w", err)
	}
	return nil
}
