// Package auth authenticates staff accounts for the on-site desk and
// operator endpoints. Participants never hold accounts; their actions are
// gated by emailed tokens instead.
package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorgeteixe/hackackathon/internal/models"
)

// Repository handles staff_users persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a staff user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByEmail returns a staff user by email, nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.StaffUser, error) {
	const q = `SELECT id, email, password_hash, full_name, role, created_at
		FROM staff_users WHERE email = $1`
	var u models.StaffUser
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a staff user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.StaffRole) (*models.StaffUser, error) {
	const q = `INSERT INTO staff_users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	u := &models.StaffUser{Email: email, PasswordHash: passwordHash, FullName: fullName, Role: role}
	if err := r.pool.QueryRow(ctx, q, email, passwordHash, fullName, role).Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}
