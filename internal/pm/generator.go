// Package pm turns due preventive maintenance schedules into work orders.
package pm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

type Generator struct {
	repo   repository.PMRepository
	clock  domain.Clock
	logger *zap.Logger
}

func NewGenerator(repo repository.PMRepository, clock domain.Clock, logger *zap.Logger) *Generator {
	return &Generator{repo: repo, clock: clock, logger: logger}
}

// Handle is the pm_generation job handler.
func (g *Generator) Handle(ctx context.Context, job *domain.Job) error {
	var p domain.PMGenerationPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}

	created, err := g.repo.GenerateDue(ctx, g.clock.Now(), p.WarehouseID, dueNotification)
	if err != nil {
		return fmt.Errorf("generate pm work orders: %w", err)
	}
	if len(created) > 0 {
		g.logger.Info("preventive work orders generated", zap.Int("count", len(created)))
	}
	return nil
}

// dueNotification tells the assignee about a generated work order.
// Unassigned work orders produce no notification.
func dueNotification(wo *domain.WorkOrder) *domain.NotificationIntent {
	if wo.AssignedTo == nil {
		return nil
	}
	woID := wo.ID
	message := fmt.Sprintf("Preventive maintenance %s is due", wo.Number)
	if wo.DueDate != nil {
		message += " on " + wo.DueDate.Format("2006-01-02")
	}
	if wo.Description != "" {
		message += ": " + wo.Description
	}
	return &domain.NotificationIntent{
		UserID:      *wo.AssignedTo,
		Type:        domain.TypePMDue,
		Title:       "Preventive maintenance due",
		Message:     message,
		Priority:    wo.Priority,
		WorkOrderID: &woID,
		EquipmentID: wo.EquipmentID,
	}
}
