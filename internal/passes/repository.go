package passes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorgeteixe/hackackathon/internal/errs"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

// Repository persists pass types and issued passes in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListTypes(ctx context.Context) ([]models.PassType, error) {
	const q = `
		SELECT id, name, valid_from
		FROM pass_types
		ORDER BY valid_from ASC, name ASC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pass types: %w", err)
	}
	defer rows.Close()

	var types []models.PassType
	for rows.Next() {
		var t models.PassType
		if err := rows.Scan(&t.ID, &t.Name, &t.ValidFrom); err != nil {
			return nil, fmt.Errorf("scan pass type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *Repository) CreateType(ctx context.Context, name string, validFrom time.Time) (*models.PassType, error) {
	const q = `
		INSERT INTO pass_types (name, valid_from)
		VALUES ($1, $2)
		RETURNING id, name, valid_from`

	var t models.PassType
	err := r.pool.QueryRow(ctx, q, name, validFrom).Scan(&t.ID, &t.Name, &t.ValidFrom)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: pass type %q already exists", errs.ErrConflict, name)
		}
		return nil, fmt.Errorf("create pass type: %w", err)
	}
	return &t, nil
}

func (r *Repository) GetPersonByBadge(ctx context.Context, badge string) (*models.Person, error) {
	const q = `
		SELECT email, full_name, badge_code
		FROM persons
		WHERE badge_code = $1`

	var p models.Person
	err := r.pool.QueryRow(ctx, q, badge).Scan(&p.Email, &p.FullName, &p.Badge)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person by badge: %w", err)
	}
	return &p, nil
}

func (r *Repository) HasPassOfType(ctx context.Context, email string, typeID uuid.UUID) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM passes
			WHERE person_email = $1 AND pass_type_id = $2
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, q, email, typeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pass: %w", err)
	}
	return exists, nil
}

func (r *Repository) CreatePass(ctx context.Context, email string, typeID uuid.UUID, at time.Time) (*models.Pass, error) {
	const q = `
		INSERT INTO passes (person_email, pass_type_id, issued_at)
		VALUES ($1, $2, $3)
		RETURNING id, person_email, pass_type_id, issued_at`

	var p models.Pass
	err := r.pool.QueryRow(ctx, q, email, typeID, at).Scan(&p.ID, &p.PersonEmail, &p.PassTypeID, &p.IssuedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: pass already issued at that instant", errs.ErrConflict)
		}
		return nil, fmt.Errorf("create pass: %w", err)
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
