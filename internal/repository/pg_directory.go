package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

type pgDirectory struct {
	pool *pgxpool.Pool
}

// NewPgDirectory returns a Directory over the profiles table.
func NewPgDirectory(pool *pgxpool.Pool) Directory {
	return &pgDirectory{pool: pool}
}

// ResolveRole picks the longest-standing active holder of the role so the
// same person is chosen on every sweep.
func (d *pgDirectory) ResolveRole(ctx context.Context, warehouseID *string, role domain.Role) (*string, error) {
	var id string
	err := d.pool.QueryRow(ctx, `
		SELECT id FROM profiles
		WHERE active AND role = $1
		  AND ($2::uuid IS NULL OR warehouse_id = $2::uuid)
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, role, warehouseID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", role, err)
	}
	return &id, nil
}

func (d *pgDirectory) LookupContact(ctx context.Context, userID string) (*domain.Contact, error) {
	c := domain.Contact{UserID: userID}
	err := d.pool.QueryRow(ctx, `
		SELECT email, phone_number FROM profiles WHERE id = $1 AND active`, userID).Scan(&c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup contact: %w", err)
	}
	return &c, nil
}
