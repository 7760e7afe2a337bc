package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

const subscriptionColumns = `id, user_id, endpoint, p256dh_key, auth_key, user_agent, active, last_used, created_at`

type pgSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPgSubscriptionRepository returns a SubscriptionRepository backed by PostgreSQL.
func NewPgSubscriptionRepository(pool *pgxpool.Pool) SubscriptionRepository {
	return &pgSubscriptionRepository{pool: pool}
}

func (r *pgSubscriptionRepository) Upsert(ctx context.Context, s *domain.PushSubscription) (*domain.PushSubscription, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh_key, auth_key, user_agent, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id    = EXCLUDED.user_id,
			p256dh_key = EXCLUDED.p256dh_key,
			auth_key   = EXCLUDED.auth_key,
			user_agent = EXCLUDED.user_agent,
			active     = TRUE
		RETURNING `+subscriptionColumns,
		s.ID, s.UserID, s.Endpoint, s.P256dhKey, s.AuthKey, s.UserAgent, s.CreatedAt,
	)
	saved, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("upsert push subscription: %w", err)
	}
	return saved, nil
}

func (r *pgSubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.PushSubscription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE id = $1`, id)
	s, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *pgSubscriptionRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*domain.PushSubscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM push_subscriptions
		WHERE user_id = $1 AND (NOT $2 OR active)
		ORDER BY created_at ASC`, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var result []*domain.PushSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *pgSubscriptionRepository) Deactivate(ctx context.Context, id string) error {
	return r.exec(ctx, "deactivate push subscription",
		`UPDATE push_subscriptions SET active = FALSE WHERE id = $1`, id)
}

func (r *pgSubscriptionRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete push subscription",
		`DELETE FROM push_subscriptions WHERE id = $1`, id)
}

func (r *pgSubscriptionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "touch push subscription",
		`UPDATE push_subscriptions SET last_used = $2 WHERE id = $1`, id, at)
}

func (r *pgSubscriptionRepository) exec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.PushSubscription, error) {
	var s domain.PushSubscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.UserAgent, &s.Active, &s.LastUsed, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
