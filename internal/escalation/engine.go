package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// Hooks carries metric callbacks; nil fields are no-ops.
type Hooks struct {
	OnEscalated func(action domain.EscalationAction)
	OnUnmatched func()
}

// Result summarizes one sweep.
type Result struct {
	Checked   int
	Escalated int
	Unmatched int
	Failed    int
}

// Engine sweeps open work orders and escalates those whose matching rule's
// timeout has elapsed since creation or the previous escalation.
type Engine struct {
	repo     repository.EscalationRepository
	dir      repository.Directory
	clock    domain.Clock
	maxLevel int
	logger   *zap.Logger
	hooks    Hooks
}

// NewEngine builds an engine. maxLevel caps escalation_level; 0 leaves it
// unbounded.
func NewEngine(
	repo repository.EscalationRepository,
	dir repository.Directory,
	clock domain.Clock,
	maxLevel int,
	logger *zap.Logger,
	hooks Hooks,
) *Engine {
	if hooks.OnEscalated == nil {
		hooks.OnEscalated = func(domain.EscalationAction) {}
	}
	if hooks.OnUnmatched == nil {
		hooks.OnUnmatched = func() {}
	}
	return &Engine{repo: repo, dir: dir, clock: clock, maxLevel: maxLevel, logger: logger, hooks: hooks}
}

// Handle is the escalation_check job handler.
func (e *Engine) Handle(ctx context.Context, job *domain.Job) error {
	var p domain.EscalationCheckPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}
	_, err := e.Sweep(ctx, p.WarehouseID)
	return err
}

// Sweep evaluates every open work order once. Failures on individual work
// orders are logged and do not stop the sweep; an error is returned only when
// the sweep cannot start or every attempted escalation failed.
func (e *Engine) Sweep(ctx context.Context, warehouseID *string) (Result, error) {
	var res Result

	rules, err := e.repo.ListActiveRules(ctx)
	if err != nil {
		return res, fmt.Errorf("load escalation rules: %w", err)
	}
	workOrders, err := e.repo.ListOpenWorkOrders(ctx, warehouseID)
	if err != nil {
		return res, fmt.Errorf("load open work orders: %w", err)
	}

	now := e.clock.Now()
	var errs []error
	attempted := 0

	for _, wo := range workOrders {
		res.Checked++
		log := e.logger.With(zap.String("work_order_id", wo.ID))

		rule := SelectRule(rules, wo)
		if rule == nil {
			res.Unmatched++
			e.hooks.OnUnmatched()
			log.Debug("no escalation rule matches",
				zap.String("type", string(wo.Type)), zap.String("priority", string(wo.Priority)))
			continue
		}
		if !e.due(wo, rule, now) {
			continue
		}

		attempted++
		recipient, err := e.recipient(ctx, wo, rule)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("work order %s: %w", wo.ID, err))
			continue
		}

		esc, err := e.repo.Escalate(ctx, wo.ID, now, e.decide(rule, recipient, now))
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("work order %s: %w", wo.ID, err))
			continue
		}
		if esc == nil {
			// Another sweep got there first, or the work order changed.
			continue
		}

		res.Escalated++
		e.hooks.OnEscalated(rule.Action)
		if esc.Notification == nil {
			log.Warn("escalated without a recipient; no notification sent",
				zap.String("rule_id", rule.ID), zap.String("action", string(rule.Action)))
		}
		log.Info("work order escalated",
			zap.Int("level", esc.History.EscalationLevel),
			zap.String("action", string(rule.Action)),
			zap.String("rule_id", rule.ID),
		)
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		e.logger.Warn("escalation sweep had failures",
			zap.Int("failed", res.Failed), zap.Int("attempted", attempted), zap.Error(joined))
		if res.Failed == attempted {
			return res, fmt.Errorf("all %d escalations failed: %w", attempted, joined)
		}
	}

	e.logger.Info("escalation sweep finished",
		zap.Int("checked", res.Checked),
		zap.Int("escalated", res.Escalated),
		zap.Int("unmatched", res.Unmatched),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// due reports whether wo has breached rule's timeout and is below the level cap.
func (e *Engine) due(wo *domain.WorkOrder, rule *domain.EscalationRule, now time.Time) bool {
	if !wo.Status.IsOpen() {
		return false
	}
	if e.maxLevel > 0 && wo.EscalationLevel >= e.maxLevel {
		return false
	}
	return now.Sub(wo.ReferencePoint()) >= rule.Timeout()
}

// recipient resolves who is notified: the rule's explicit target, otherwise
// the warehouse supervisor or manager. A nil result is not an error.
func (e *Engine) recipient(ctx context.Context, wo *domain.WorkOrder, rule *domain.EscalationRule) (*string, error) {
	if rule.EscalateTo != nil {
		return rule.EscalateTo, nil
	}
	id, err := e.dir.ResolveRole(ctx, wo.WarehouseID, rule.Action.FallbackRole())
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}
	return id, nil
}

// decide re-evaluates the locked work order so a concurrent sweep or a
// status change since listing is honoured.
func (e *Engine) decide(rule *domain.EscalationRule, recipient *string, now time.Time) repository.DecideFunc {
	return func(wo *domain.WorkOrder) (*domain.Escalation, error) {
		if !rule.Matches(wo) || !e.due(wo, rule, now) {
			return nil, nil
		}

		level := wo.EscalationLevel + 1
		elapsed := now.Sub(wo.ReferencePoint())
		ruleID := rule.ID

		esc := &domain.Escalation{
			History: domain.EscalationHistory{
				WorkOrderID:     wo.ID,
				RuleID:          &ruleID,
				EscalationLevel: level,
				EscalatedFrom:   wo.AssignedTo,
				EscalatedTo:     recipient,
				Action:          rule.Action,
				Reason:          domain.EscalationReason(rule, elapsed),
				EscalatedAt:     now,
			},
		}
		if rule.Action == domain.ActionAutoReassign && rule.EscalateTo != nil {
			esc.NewAssignee = rule.EscalateTo
		}
		if recipient != nil {
			esc.Notification = notificationFor(wo, rule, level, elapsed, *recipient)
		}
		return esc, nil
	}
}

func notificationFor(wo *domain.WorkOrder, rule *domain.EscalationRule, level int, elapsed time.Duration, userID string) *domain.NotificationIntent {
	label := wo.Number
	if label == "" {
		label = wo.ID
	}
	message := fmt.Sprintf("Work order %s (%s, %s priority) has been open for %s, exceeding the %dh escalation timeout.",
		label, wo.Type, wo.Priority, elapsed.Truncate(time.Minute), rule.TimeoutHours)
	if rule.Action == domain.ActionAutoReassign && rule.EscalateTo != nil {
		message += " It has been reassigned to you."
	}

	meta, _ := json.Marshal(map[string]any{
		"escalationLevel": level,
		"ruleId":          rule.ID,
		"action":          rule.Action,
	})
	woID := wo.ID
	return &domain.NotificationIntent{
		UserID:      userID,
		Type:        domain.TypeWorkOrderOverdue,
		Title:       fmt.Sprintf("Work order escalated (level %d)", level),
		Message:     message,
		Priority:    wo.Priority,
		WorkOrderID: &woID,
		Metadata:    meta,
	}
}
