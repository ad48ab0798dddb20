package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorgeteixe/hackackathon/internal/models"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, person_email, entered_at, left_at, created_at`

func scanRecord(row pgx.Row) (*models.AttendanceRecord, error) {
	var r models.AttendanceRecord
	err := row.Scan(&r.ID, &r.PersonEmail, &r.EnteredAt, &r.LeftAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
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

func (r *Repository) HasOpenRecord(ctx context.Context, email string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM attendance
			WHERE person_email = $1 AND entered_at IS NOT NULL AND left_at IS NULL
		)`

	var open bool
	if err := r.pool.QueryRow(ctx, q, email).Scan(&open); err != nil {
		return false, fmt.Errorf("check open record: %w", err)
	}
	return open, nil
}

func (r *Repository) CreateEntry(ctx context.Context, email string, at time.Time) (*models.AttendanceRecord, error) {
	const q = `
		INSERT INTO attendance (person_email, entered_at)
		VALUES ($1, $2)
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, q, email, at))
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	return rec, nil
}

func (r *Repository) CreateExitOnly(ctx context.Context, email string, at time.Time) (*models.AttendanceRecord, error) {
	const q = `
		INSERT INTO attendance (person_email, left_at)
		VALUES ($1, $2)
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, q, email, at))
	if err != nil {
		return nil, fmt.Errorf("create exit-only record: %w", err)
	}
	return rec, nil
}

func (r *Repository) CloseNewestOpen(ctx context.Context, email string, at time.Time) (*models.AttendanceRecord, bool, error) {
	const q = `
		UPDATE attendance SET left_at = $2
		WHERE id = (
			SELECT id FROM attendance
			WHERE person_email = $1 AND entered_at IS NOT NULL AND left_at IS NULL
			ORDER BY entered_at DESC
			LIMIT 1
		)
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, q, email, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("close open record: %w", err)
	}
	return rec, true, nil
}

func (r *Repository) ListRecords(ctx context.Context, email string) ([]models.AttendanceRecord, error) {
	const q = `
		SELECT ` + recordColumns + `
		FROM attendance
		WHERE person_email = $1
		ORDER BY COALESCE(entered_at, left_at) DESC, created_at DESC`

	rows, err := r.pool.Query(ctx, q, email)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.PersonEmail, &rec.EnteredAt, &rec.LeftAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) GetRecord(ctx context.Context, id uuid.UUID) (*models.AttendanceRecord, error) {
	const q = `
		SELECT ` + recordColumns + `
		FROM attendance
		WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	return rec, nil
}

func (r *Repository) UpdateRecord(ctx context.Context, id uuid.UUID, enteredAt, leftAt *time.Time) (*models.AttendanceRecord, error) {
	const q = `
		UPDATE attendance
		SET entered_at = COALESCE($2, entered_at),
		    left_at    = COALESCE($3, left_at)
		WHERE id = $1
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, q, id, enteredAt, leftAt))
	if err != nil {
		return nil, fmt.Errorf("update attendance record: %w", err)
	}
	return rec, nil
}
