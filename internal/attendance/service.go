// Package attendance keeps the badge scan ledger: entry and exit scans
// at the hall door, the per-person time-inside total, and the live
// occupancy gauge. Scans are never dropped: an odd scan is recorded
// with a warning instead of an error, because the desk cannot hold up
// the queue to reconcile history.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/internal/errs"
	"github.com/jorgeteixe/hackackathon/internal/live"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

// Store is the attendance persistence boundary.
type Store interface {
	GetPersonByBadge(ctx context.Context, badge string) (*models.Person, error)
	HasOpenRecord(ctx context.Context, email string) (bool, error)
	CreateEntry(ctx context.Context, email string, at time.Time) (*models.AttendanceRecord, error)
	CreateExitOnly(ctx context.Context, email string, at time.Time) (*models.AttendanceRecord, error)
	// CloseNewestOpen stamps the exit on the most recent open record and
	// reports whether one existed.
	CloseNewestOpen(ctx context.Context, email string, at time.Time) (*models.AttendanceRecord, bool, error)
	ListRecords(ctx context.Context, email string) ([]models.AttendanceRecord, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*models.AttendanceRecord, error)
	UpdateRecord(ctx context.Context, id uuid.UUID, enteredAt, leftAt *time.Time) (*models.AttendanceRecord, error)
}

// Feed receives desk events for the live dashboard; nil disables it.
type Feed interface {
	Publish(event live.Event)
}

// ScanResult is the response to one entry or exit scan. Warnings flag
// odd sequences (double entry, exit with nothing open) that staff may
// want to fix later via record editing.
type ScanResult struct {
	Record   *models.AttendanceRecord `json:"record"`
	Person   string                   `json:"person"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// History is the full ledger view for one badge.
type History struct {
	Email    string                    `json:"email"`
	Person   string                    `json:"person"`
	Records  []models.AttendanceRecord `json:"records"`
	Total    string                    `json:"total_inside"`
	Presence models.PresenceState      `json:"presence"`
}

// Service implements the attendance ledger.
type Service struct {
	store  Store
	gauge  Gauge
	feed   Feed
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the attendance service. Gauge and feed may be nil.
func NewService(store Store, gauge Gauge, feed Feed, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gauge: gauge, feed: feed, logger: logger, now: time.Now}
}

func (s *Service) personForBadge(ctx context.Context, badge string) (*models.Person, error) {
	p, err := s.store.GetPersonByBadge(ctx, badge)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no badge %s", errs.ErrNotFound, badge)
	}
	return p, nil
}

// RecordEntry appends an entry scan. A scan while already inside is
// recorded anyway, with a warning, so the ledger reflects what the door
// actually saw.
func (s *Service) RecordEntry(ctx context.Context, badge string) (*ScanResult, error) {
	p, err := s.personForBadge(ctx, badge)
	if err != nil {
		return nil, err
	}
	result := &ScanResult{Person: p.FullName}

	open, err := s.store.HasOpenRecord(ctx, p.Email)
	if err != nil {
		return nil, err
	}
	if open {
		result.Warnings = append(result.Warnings, "already inside: previous entry has no exit")
	}

	at := s.now()
	rec, err := s.store.CreateEntry(ctx, p.Email, at)
	if err != nil {
		return nil, err
	}
	result.Record = rec

	s.bumpGauge(ctx, badge, s.gaugeEnter)
	if s.feed != nil {
		s.feed.Publish(live.Event{Type: live.EventEntry, Badge: badge, Email: p.Email, Name: p.FullName, At: at})
	}
	return result, nil
}

// RecordExit closes the newest open record. With nothing open it stores
// an exit-only record and warns, rather than losing the scan.
func (s *Service) RecordExit(ctx context.Context, badge string) (*ScanResult, error) {
	p, err := s.personForBadge(ctx, badge)
	if err != nil {
		return nil, err
	}
	result := &ScanResult{Person: p.FullName}

	at := s.now()
	rec, closed, err := s.store.CloseNewestOpen(ctx, p.Email, at)
	if err != nil {
		return nil, err
	}
	if !closed {
		rec, err = s.store.CreateExitOnly(ctx, p.Email, at)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, "no open entry: exit recorded on its own")
	}
	result.Record = rec

	s.bumpGauge(ctx, badge, s.gaugeLeave)
	if s.feed != nil {
		s.feed.Publish(live.Event{Type: live.EventExit, Badge: badge, Email: p.Email, Name: p.FullName, At: at})
	}
	return result, nil
}

// HistoryFor returns the ledger, total closed time inside, and derived
// presence for one badge.
func (s *Service) HistoryFor(ctx context.Context, badge string) (*History, error) {
	p, err := s.personForBadge(ctx, badge)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, p.Email)
	if err != nil {
		return nil, err
	}
	var newest *models.AttendanceRecord
	if len(records) > 0 {
		newest = &records[0]
	}
	return &History{
		Email:    p.Email,
		Person:   p.FullName,
		Records:  records,
		Total:    models.TotalDuration(records).String(),
		Presence: models.PresenceOf(newest),
	}, nil
}

// Edit fills in a missing half of a record. Halves already set are
// immutable: fixing a wrong timestamp means deleting in the database,
// not rewriting through the API.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, enteredAt, leftAt *time.Time) (*models.AttendanceRecord, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: no attendance record %s", errs.ErrNotFound, id)
	}
	if enteredAt != nil && rec.EnteredAt != nil {
		return nil, fmt.Errorf("%w: entry already set", errs.ErrValidation)
	}
	if leftAt != nil && rec.LeftAt != nil {
		return nil, fmt.Errorf("%w: exit already set", errs.ErrValidation)
	}
	if enteredAt == nil && leftAt == nil {
		return nil, fmt.Errorf("%w: nothing to change", errs.ErrValidation)
	}

	entry, exit := rec.EnteredAt, rec.LeftAt
	if enteredAt != nil {
		entry = enteredAt
	}
	if leftAt != nil {
		exit = leftAt
	}
	if entry != nil && exit != nil && exit.Before(*entry) {
		return nil, fmt.Errorf("%w: exit before entry", errs.ErrValidation)
	}
	return s.store.UpdateRecord(ctx, id, enteredAt, leftAt)
}

// Occupancy returns the live headcount from the gauge.
func (s *Service) Occupancy(ctx context.Context) (int64, error) {
	if s.gauge == nil {
		return 0, fmt.Errorf("%w: occupancy gauge not configured", errs.ErrPreconditionFailed)
	}
	return s.gauge.Count(ctx)
}

func (s *Service) gaugeEnter(ctx context.Context) error { return s.gauge.Enter(ctx) }
func (s *Service) gaugeLeave(ctx context.Context) error { return s.gauge.Leave(ctx) }

func (s *Service) bumpGauge(ctx context.Context, badge string, bump func(context.Context) error) {
	if s.gauge == nil {
		return
	}
	if err := bump(ctx); err != nil {
		s.logger.Warn("occupancy gauge update failed", zap.String("badge", badge), zap.Error(err))
	}
}
