package checkin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorgeteixe/hackackathon/internal/errs"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

// Repository handles check-in persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a check-in repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByEmail returns the person and the fields check-in needs, nil when
// absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Person, error) {
	const q = `SELECT email, role, full_name, badge_code, shirt_size, accepted_at
		FROM persons WHERE email = $1`
	var p models.Person
	err := r.pool.QueryRow(ctx, q, email).Scan(&p.Email, &p.Role, &p.FullName, &p.Badge, &p.ShirtSize, &p.AcceptedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return &p, nil
}

// AssignBadge binds a badge code one-shot. The badge_code IS NULL guard
// keeps the first binding immutable and the unique constraint turns a
// duplicate code into a conflict.
func (r *Repository) AssignBadge(ctx context.Context, email, badge string) error {
	const q = `UPDATE persons SET badge_code = $2 WHERE email = $1 AND badge_code IS NULL`
	tag, err := r.pool.Exec(ctx, q, email, badge)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: badge %s already assigned", errs.ErrConflict, badge)
		}
		return fmt.Errorf("assign badge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s already has a badge", errs.ErrConflict, email)
	}
	return nil
}
