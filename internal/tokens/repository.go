// Package tokens is the store for single-use, typed, expiring tokens.
// Tokens gate workflow steps: a token is valid while it is unexpired and
// unconsumed, and consumption is permanent.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorgeteixe/hackackathon/internal/errs"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

// Repository handles token persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a token repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Issue creates a new token of the given kind for a person. The expiry
// must be strictly in the future.
func (r *Repository) Issue(ctx context.Context, kind models.TokenKind, email string, expiresAt time.Time) (*models.Token, error) {
	if !expiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: token expiry %s is not in the future", errs.ErrValidation, expiresAt.Format(time.RFC3339))
	}
	t := &models.Token{
		ID:          uuid.New(),
		Kind:        kind,
		PersonEmail: email,
		ExpiresAt:   expiresAt,
	}
	const q = `INSERT INTO tokens (id, kind, person_email, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, used_at`
	if err := r.pool.QueryRow(ctx, q, t.ID, t.Kind, t.PersonEmail, t.ExpiresAt).Scan(&t.CreatedAt, &t.UsedAt); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	return t, nil
}

// Lookup returns the token with the given identifier and kind, or nil
// when no such token exists. Exact match only.
func (r *Repository) Lookup(ctx context.Context, id uuid.UUID, kind models.TokenKind) (*models.Token, error) {
	const q = `SELECT id, kind, person_email, created_at, expires_at, used_at
		FROM tokens WHERE id = $1 AND kind = $2`
	var t models.Token
	err := r.pool.QueryRow(ctx, q, id, kind).Scan(&t.ID, &t.Kind, &t.PersonEmail, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	return &t, nil
}

// CountLive returns how many of the given persons hold a live (unexpired,
// unconsumed) token of the given kind. Used to warn before a batch issues
// duplicates.
func (r *Repository) CountLive(ctx context.Context, kind models.TokenKind, emails []string, now time.Time) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	const q = `SELECT COUNT(DISTINCT person_email) FROM tokens
		WHERE kind = $1 AND person_email = ANY($2) AND expires_at > $3 AND used_at IS NULL`
	var n int
	if err := r.pool.QueryRow(ctx, q, kind, emails, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("count live tokens: %w", err)
	}
	return n, nil
}
