package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// NotifyFunc builds the notification for a generated work order, or nil for
// none.
type NotifyFunc func(wo *domain.WorkOrder) *domain.NotificationIntent

// PMRepository turns due preventive maintenance schedules into work orders.
type PMRepository interface {
	// GenerateDue creates one preventive work order per due schedule,
	// advances each schedule, and enqueues the notify result, all in one
	// transaction.
	GenerateDue(ctx context.Context, now time.Time, warehouseID *string, notify NotifyFunc) ([]*domain.WorkOrder, error)
}

type pgPMRepository struct {
	pool *pgxpool.Pool
}

// NewPgPMRepository returns a PMRepository backed by PostgreSQL.
func NewPgPMRepository(pool *pgxpool.Pool) PMRepository {
	return &pgPMRepository{pool: pool}
}

var pmIntervals = map[string]string{
	"daily":     "1 day",
	"weekly":    "7 days",
	"monthly":   "1 month",
	"quarterly": "3 months",
	"annually":  "1 year",
}

func (r *pgPMRepository) GenerateDue(ctx context.Context, now time.Time, warehouseID *string, notify NotifyFunc) ([]*domain.WorkOrder, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `
		SELECT id, warehouse_id, equipment_id, assigned_to, description, frequency, next_due_at
		FROM pm_schedules
		WHERE active AND next_due_at <= $1
		  AND ($2::uuid IS NULL OR warehouse_id = $2::uuid)
		ORDER BY next_due_at ASC
		FOR UPDATE SKIP LOCKED`, now, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("select due pm schedules: %w", err)
	}

	type schedule struct {
		id, description, frequency string
		warehouseID, equipmentID   *string
		assignedTo                 *string
		dueAt                      time.Time
	}
	var due []schedule
	for rows.Next() {
		var s schedule
		if err := rows.Scan(&s.id, &s.warehouseID, &s.equipmentID, &s.assignedTo, &s.description, &s.frequency, &s.dueAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pm schedule: %w", err)
		}
		due = append(due, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	created := make([]*domain.WorkOrder, 0, len(due))
	for _, s := range due {
		status := domain.WorkOrderNew
		if s.assignedTo != nil {
			status = domain.WorkOrderAssigned
		}
		dueAt := s.dueAt
		wo := &domain.WorkOrder{
			ID:          uuid.New().String(),
			Number:      "PM-" + now.Format("20060102") + "-" + s.id[:8],
			Type:        domain.WorkOrderPreventive,
			Status:      status,
			Priority:    domain.PriorityMedium,
			Description: s.description,
			AssignedTo:  s.assignedTo,
			WarehouseID: s.warehouseID,
			EquipmentID: s.equipmentID,
			DueDate:     &dueAt,
			CreatedAt:   now,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO work_orders
				(id, wo_number, type, description, status, priority, assigned_to, warehouse_id, equipment_id, due_date, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
			wo.ID, wo.Number, wo.Type, wo.Description, wo.Status, wo.Priority,
			wo.AssignedTo, wo.WarehouseID, wo.EquipmentID, wo.DueDate, wo.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("insert pm work order: %w", err)
		}

		// Advance past now so a schedule that fell far behind yields one
		// work order, not a backlog.
		if _, err := tx.Exec(ctx, `
			UPDATE pm_schedules
			SET next_due_at = next_due_at + $2::interval * GREATEST(1, CEIL(EXTRACT(EPOCH FROM ($3::timestamptz - next_due_at)) / EXTRACT(EPOCH FROM $2::interval)))
			WHERE id = $1`, s.id, pmIntervals[s.frequency], now); err != nil {
			return nil, fmt.Errorf("advance pm schedule: %w", err)
		}

		if intent := notify(wo); intent != nil {
			job, err := NewJob(domain.JobNotificationSend, intent, now, now)
			if err != nil {
				return nil, err
			}
			if err := insertJob(ctx, tx, job); err != nil {
				return nil, err
			}
		}
		created = append(created, wo)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pm generation: %w", err)
	}
	return created, nil
}
