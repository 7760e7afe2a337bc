package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

const preferenceColumns = `id, user_id, notification_type, enabled, email_enabled, push_enabled, sms_enabled,
	quiet_hours_start, quiet_hours_end, created_at, updated_at`

type pgPreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPgPreferenceRepository returns a PreferenceRepository backed by PostgreSQL.
func NewPgPreferenceRepository(pool *pgxpool.Pool) PreferenceRepository {
	return &pgPreferenceRepository{pool: pool}
}

func (r *pgPreferenceRepository) Get(ctx context.Context, userID string, t domain.NotificationType) (*domain.NotificationPreference, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+preferenceColumns+` FROM notification_preferences
		WHERE user_id = $1 AND notification_type = $2`, userID, t)
	p, err := scanPreference(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return p, nil
}

func (r *pgPreferenceRepository) ListByUser(ctx context.Context, userID string) ([]*domain.NotificationPreference, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+preferenceColumns+` FROM notification_preferences
		WHERE user_id = $1 ORDER BY notification_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var result []*domain.NotificationPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *pgPreferenceRepository) Upsert(ctx context.Context, p *domain.NotificationPreference) (*domain.NotificationPreference, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO notification_preferences
			(id, user_id, notification_type, enabled, email_enabled, push_enabled, sms_enabled,
			 quiet_hours_start, quiet_hours_end, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
		ON CONFLICT (user_id, notification_type) DO UPDATE SET
			enabled           = EXCLUDED.enabled,
			email_enabled     = EXCLUDED.email_enabled,
			push_enabled      = EXCLUDED.push_enabled,
			sms_enabled       = EXCLUDED.sms_enabled,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end   = EXCLUDED.quiet_hours_end,
			updated_at        = EXCLUDED.updated_at
		RETURNING `+preferenceColumns,
		p.ID, p.UserID, p.NotificationType, p.Enabled, p.EmailEnabled, p.PushEnabled, p.SMSEnabled,
		p.QuietHoursStart, p.QuietHoursEnd, p.UpdatedAt,
	)
	saved, err := scanPreference(row)
	if err != nil {
		return nil, fmt.Errorf("upsert preference: %w", err)
	}
	return saved, nil
}

func (r *pgPreferenceRepository) Delete(ctx context.Context, userID string, t domain.NotificationType) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notification_preferences WHERE user_id = $1 AND notification_type = $2`, userID, t)
	if err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPreference(row pgx.Row) (*domain.NotificationPreference, error) {
	var p domain.NotificationPreference
	err := row.Scan(
		&p.ID, &p.UserID, &p.NotificationType, &p.Enabled, &p.EmailEnabled, &p.PushEnabled, &p.SMSEnabled,
		&p.QuietHoursStart, &p.QuietHoursEnd, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
