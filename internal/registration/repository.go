package registration

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
	"github.com/jorgeteixe/hackackathon/internal/tokens"
)

const personColumns = `email, role, full_name, notes, badge_code, dietary_restrictions, dietary_details,
	company, phone, birth_date, shirt_size, study_level, study_name, study_center, study_year,
	city, wants_credits, motivation, cv_key, share_cv,
	registered_at, email_verified_at, accepted_at, seat_confirmed_at, seat_rejected_at, verify_email_error`

func scanPerson(row pgx.Row) (*models.Person, error) {
	var p models.Person
	err := row.Scan(&p.Email, &p.Role, &p.FullName, &p.Notes, &p.Badge, &p.Dietary, &p.DietaryDetails,
		&p.Company, &p.Phone, &p.BirthDate, &p.ShirtSize, &p.StudyLevel, &p.StudyName, &p.StudyCenter, &p.StudyYear,
		&p.City, &p.WantsCredits, &p.Motivation, &p.CVKey, &p.ShareCV,
		&p.RegisteredAt, &p.EmailVerifiedAt, &p.AcceptedAt, &p.SeatConfirmedAt, &p.SeatRejectedAt, &p.VerifyEmailError)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Repository is the pgx-backed Store. Token operations delegate to the
// token store; the token-gated lifecycle writes are single statements so
// the timestamp and the consumption commit or fail together.
type Repository struct {
	pool   *pgxpool.Pool
	tokens *tokens.Repository
}

// NewRepository creates the workflow repository.
func NewRepository(pool *pgxpool.Pool, tokenRepo *tokens.Repository) *Repository {
	return &Repository{pool: pool, tokens: tokenRepo}
}

// GetParticipant returns a participant by email, nil when absent.
func (r *Repository) GetParticipant(ctx context.Context, email string) (*models.Person, error) {
	q := `SELECT ` + personColumns + ` FROM persons WHERE email = $1`
	p, err := scanPerson(r.pool.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// CreateParticipant inserts a new participant row. A duplicate email is a
// re-registration and reported as a conflict.
func (r *Repository) CreateParticipant(ctx context.Context, p *models.Person) error {
	const q = `INSERT INTO persons (email, role, full_name, notes, dietary_restrictions, dietary_details,
		phone, birth_date, shirt_size, study_level, study_name, study_center, study_year,
		city, wants_credits, motivation, share_cv, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	dietary := p.Dietary
	if dietary == nil {
		dietary = []string{}
	}
	_, err := r.pool.Exec(ctx, q,
		p.Email, p.Role, p.FullName, p.Notes, dietary, p.DietaryDetails,
		p.Phone, p.BirthDate, p.ShirtSize, p.StudyLevel, p.StudyName, p.StudyCenter, p.StudyYear,
		p.City, p.WantsCredits, p.Motivation, p.ShareCV, p.RegisteredAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s already registered", errs.ErrConflict, p.Email)
	}
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// SetCVKey records the stored CV object key.
func (r *Repository) SetCVKey(ctx context.Context, email, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE persons SET cv_key = $2 WHERE email = $1`, email, key)
	return err
}

// RecordVerifyEmailError stores the verification-mail failure reason.
func (r *Repository) RecordVerifyEmailError(ctx context.Context, email, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE persons SET verify_email_error = $2 WHERE email = $1`, email, reason)
	return err
}

// GetPersons returns the persons matching the given emails.
func (r *Repository) GetPersons(ctx context.Context, emails []string) ([]models.Person, error) {
	q := `SELECT ` + personColumns + ` FROM persons WHERE email = ANY($1)`
	rows, err := r.pool.Query(ctx, q, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// MarkAccepted sets accepted_at for the given participants, skipping any
// that raced into a different state, and reports how many were updated.
func (r *Repository) MarkAccepted(ctx context.Context, emails []string, at time.Time) (int, error) {
	const q = `UPDATE persons SET accepted_at = $2
		WHERE email = ANY($1) AND email_verified_at IS NOT NULL AND accepted_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, emails, at)
	if err != nil {
		return 0, fmt.Errorf("mark accepted: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListAwaitingSeatConfirmation returns accepted participants who have
// neither confirmed nor rejected their seat.
func (r *Repository) ListAwaitingSeatConfirmation(ctx context.Context) ([]models.Person, error) {
	q := `SELECT ` + personColumns + ` FROM persons
		WHERE role = 'participant' AND accepted_at IS NOT NULL
		  AND seat_confirmed_at IS NULL AND seat_rejected_at IS NULL
		ORDER BY registered_at`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// IssueToken delegates to the token store.
func (r *Repository) IssueToken(ctx context.Context, kind models.TokenKind, email string, expiresAt time.Time) (*models.Token, error) {
	return r.tokens.Issue(ctx, kind, email, expiresAt)
}

// LookupToken delegates to the token store.
func (r *Repository) LookupToken(ctx context.Context, id uuid.UUID, kind models.TokenKind) (*models.Token, error) {
	return r.tokens.Lookup(ctx, id, kind)
}

// CountLiveTokens delegates to the token store.
func (r *Repository) CountLiveTokens(ctx context.Context, kind models.TokenKind, emails []string, now time.Time) (int, error) {
	return r.tokens.CountLive(ctx, kind, emails, now)
}

// MarkEmailVerified consumes the token and sets email_verified_at in one
// statement. The used_at IS NULL guard turns a concurrent replay into a
// zero-row update instead of a double spend.
func (r *Repository) MarkEmailVerified(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error) {
	const q = `WITH consumed AS (
			UPDATE tokens SET used_at = $2
			WHERE id = $1 AND used_at IS NULL
			RETURNING person_email
		)
		UPDATE persons p SET email_verified_at = $2, verify_email_error = ''
		FROM consumed c
		WHERE p.email = c.person_email AND p.email_verified_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, tokenID, at)
	if err != nil {
		return false, fmt.Errorf("mark email verified: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSeatConfirmed consumes the token and sets seat_confirmed_at in one
// statement, with the same replay behavior as MarkEmailVerified.
func (r *Repository) MarkSeatConfirmed(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error) {
	const q = `WITH consumed AS (
			UPDATE tokens SET used_at = $2
			WHERE id = $1 AND used_at IS NULL
			RETURNING person_email
		)
		UPDATE persons p SET seat_confirmed_at = $2
		FROM consumed c
		WHERE p.email = c.person_email
		  AND p.seat_confirmed_at IS NULL AND p.seat_rejected_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, tokenID, at)
	if err != nil {
		return false, fmt.Errorf("mark seat confirmed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSeatRejected sets seat_rejected_at. The token is deliberately not
// consumed: rejection stays honored however stale the link.
func (r *Repository) MarkSeatRejected(ctx context.Context, email string, at time.Time) error {
	const q = `UPDATE persons SET seat_rejected_at = $2
		WHERE email = $1 AND seat_rejected_at IS NULL AND seat_confirmed_at IS NULL`
	_, err := r.pool.Exec(ctx, q, email, at)
	if err != nil {
		return fmt.Errorf("mark seat rejected: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
