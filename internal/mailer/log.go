package mailer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorgeteixe/hackackathon/internal/models"
)

// LogRepository handles email_logs persistence.
type LogRepository struct {
	pool *pgxpool.Pool
}

// NewLogRepository creates an email log repository.
func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Record inserts one delivery attempt.
func (r *LogRepository) Record(ctx context.Context, log *models.EmailLog) error {
	const q = `INSERT INTO email_logs (template, recipient, subject, status, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, log.Template, log.Recipient, log.Subject, log.Status, log.Error).
		Scan(&log.ID, &log.CreatedAt)
}

// ListRecent returns the newest delivery attempts, up to limit.
func (r *LogRepository) ListRecent(ctx context.Context, limit int) ([]models.EmailLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, template, recipient, subject, status, error, created_at
		FROM email_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.Template, &el.Recipient, &el.Subject, &el.Status, &el.Error, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}
