package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

const (
	ruleColumns = `id, work_order_type, priority, timeout_hours, escalation_action,
	escalate_to, warehouse_id, active, created_at, updated_at`

	activeScopeIndex = "uq_escalation_rules_active_scope"
	uniqueViolation  = "23505"
)

type pgRuleRepository struct {
	pool *pgxpool.Pool
}

// NewPgRuleRepository returns a RuleRepository backed by PostgreSQL.
func NewPgRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &pgRuleRepository{pool: pool}
}

func (r *pgRuleRepository) List(ctx context.Context, activeOnly bool) ([]*domain.EscalationRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM escalation_rules
		WHERE ($1 = FALSE OR active)
		ORDER BY work_order_type, priority, created_at`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list escalation rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *pgRuleRepository) Get(ctx context.Context, id string) (*domain.EscalationRule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM escalation_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get escalation rule: %w", err)
	}
	return rule, nil
}

func (r *pgRuleRepository) Create(ctx context.Context, rule *domain.EscalationRule) (*domain.EscalationRule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO escalation_rules
			(work_order_type, priority, timeout_hours, escalation_action, escalate_to, warehouse_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		RETURNING `+ruleColumns,
		rule.WorkOrderType, rule.Priority, rule.TimeoutHours, rule.Action,
		rule.EscalateTo, rule.WarehouseID, rule.Active, rule.CreatedAt)
	created, err := scanRule(row)
	if err != nil {
		return nil, ruleWriteError("create escalation rule", err)
	}
	return created, nil
}

func (r *pgRuleRepository) Update(ctx context.Context, rule *domain.EscalationRule) (*domain.EscalationRule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE escalation_rules
		SET timeout_hours = $2, escalation_action = $3, escalate_to = $4, active = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+ruleColumns,
		rule.ID, rule.TimeoutHours, rule.Action, rule.EscalateTo, rule.Active, rule.UpdatedAt)
	updated, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, ruleWriteError("update escalation rule", err)
	}
	return updated, nil
}

// ruleWriteError maps a second active rule in one scope to ErrConflict.
func ruleWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeScopeIndex {
		return fmt.Errorf("%s: %w: an active rule already covers this type, priority and warehouse", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanRule(row pgx.Row) (*domain.EscalationRule, error) {
	var rule domain.EscalationRule
	err := row.Scan(
		&rule.ID, &rule.WorkOrderType, &rule.Priority, &rule.TimeoutHours, &rule.Action,
		&rule.EscalateTo, &rule.WarehouseID, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func scanRules(rows pgx.Rows) ([]*domain.EscalationRule, error) {
	var result []*domain.EscalationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escalation rule: %w", err)
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
