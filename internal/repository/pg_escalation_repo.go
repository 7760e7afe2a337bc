package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

const workOrderColumns = `wo.id, wo.wo_number, wo.type, wo.status, wo.priority, wo.description,
	wo.assigned_to, wo.warehouse_id, wo.due_date, wo.escalated, wo.escalation_level, wo.created_at`

type pgEscalationRepository struct {
	pool *pgxpool.Pool
}

// NewPgEscalationRepository returns an EscalationRepository backed by PostgreSQL.
func NewPgEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &pgEscalationRepository{pool: pool}
}

func (r *pgEscalationRepository) ListActiveRules(ctx context.Context) ([]*domain.EscalationRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM escalation_rules WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("list escalation rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *pgEscalationRepository) ListOpenWorkOrders(ctx context.Context, warehouseID *string) ([]*domain.WorkOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workOrderColumns+`, h.last_escalated_at
		FROM work_orders wo
		LEFT JOIN LATERAL (
			SELECT MAX(escalated_at) AS last_escalated_at
			FROM escalation_history WHERE work_order_id = wo.id
		) h ON TRUE
		WHERE wo.status NOT IN ('completed', 'verified', 'closed')
		  AND wo.deleted_at IS NULL
		  AND ($1::uuid IS NULL OR wo.warehouse_id = $1::uuid)
		ORDER BY wo.created_at ASC`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list open work orders: %w", err)
	}
	defer rows.Close()

	var result []*domain.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work order: %w", err)
		}
		result = append(result, wo)
	}
	return result, rows.Err()
}

func (r *pgEscalationRepository) ListHistory(ctx context.Context, workOrderID string) ([]*domain.EscalationHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, work_order_id, rule_id, escalation_level, escalated_from, escalated_to,
		       action, reason, escalated_at
		FROM escalation_history
		WHERE work_order_id = $1
		ORDER BY escalation_level ASC`, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("list escalation history: %w", err)
	}
	defer rows.Close()

	var result []*domain.EscalationHistory
	for rows.Next() {
		var h domain.EscalationHistory
		if err := rows.Scan(
			&h.ID, &h.WorkOrderID, &h.RuleID, &h.EscalationLevel, &h.EscalatedFrom, &h.EscalatedTo,
			&h.Action, &h.Reason, &h.EscalatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan escalation history: %w", err)
		}
		result = append(result, &h)
	}
	return result, rows.Err()
}

func (r *pgEscalationRepository) Escalate(
	ctx context.Context,
	workOrderID string,
	now time.Time,
	decide DecideFunc,
) (*domain.Escalation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The row lock serializes concurrent sweeps over the same work order; the
	// second one re-reads the history written by the first and declines.
	row := tx.QueryRow(ctx, `
		SELECT `+workOrderColumns+`,
		       (SELECT MAX(escalated_at) FROM escalation_history WHERE work_order_id = wo.id)
		FROM work_orders wo
		WHERE wo.id = $1 AND wo.deleted_at IS NULL
		FOR UPDATE OF wo`, workOrderID)
	wo, err := scanWorkOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock work order: %w", err)
	}

	esc, err := decide(wo)
	if err != nil || esc == nil {
		return nil, err
	}

	h := &esc.History
	if h.ID == "" {
		h.ID = uuid.New().String()
	}

	if _, err := tx.Exec(ctx, `
		UPDATE work_orders
		SET escalated = TRUE, escalation_level = $2,
		    assigned_to = COALESCE($3, assigned_to), updated_at = $4
		WHERE id = $1`,
		wo.ID, h.EscalationLevel, esc.NewAssignee, now,
	); err != nil {
		return nil, fmt.Errorf("update work order: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO escalation_history
			(id, work_order_id, rule_id, escalation_level, escalated_from, escalated_to, action, reason, escalated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		h.ID, h.WorkOrderID, h.RuleID, h.EscalationLevel, h.EscalatedFrom, h.EscalatedTo,
		h.Action, h.Reason, h.EscalatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert escalation history: %w", err)
	}

	if esc.Notification != nil {
		job, err := NewJob(domain.JobNotificationSend, esc.Notification, now, now)
		if err != nil {
			return nil, err
		}
		if err := insertJob(ctx, tx, job); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit escalation: %w", err)
	}
	return esc, nil
}

func scanWorkOrder(row pgx.Row) (*domain.WorkOrder, error) {
	var wo domain.WorkOrder
	err := row.Scan(
		&wo.ID, &wo.Number, &wo.Type, &wo.Status, &wo.Priority, &wo.Description,
		&wo.AssignedTo, &wo.WarehouseID, &wo.DueDate, &wo.Escalated, &wo.EscalationLevel, &wo.CreatedAt,
		&wo.LastEscalatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &wo, nil
}
