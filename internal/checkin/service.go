// Package checkin binds an accepted person to a physical badge at the
// event desk. The flow is two-phase because it is human-in-the-loop:
// staff first look the person up and confirm identity by sight, then
// commit the badge binding, which is irreversible.
package checkin

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/internal/errs"
	"github.com/jorgeteixe/hackackathon/internal/live"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

// Store is the check-in persistence boundary.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*models.Person, error)
	// AssignBadge sets the badge code, relying on the unique constraint to
	// reject a code already bound to someone else.
	AssignBadge(ctx context.Context, email, badge string) error
}

// Feed receives desk events for the live dashboard; nil disables it.
type Feed interface {
	Publish(event live.Event)
}

// Preview is the phase-one response: what staff verify before committing.
type Preview struct {
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	ShirtSize string `json:"shirt_size"`
}

// Service implements badge assignment.
type Service struct {
	store  Store
	feed   Feed
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the check-in service.
func NewService(store Store, feed Feed, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, feed: feed, logger: logger, now: time.Now}
}

// Lookup runs the shared gates and returns the person: they must exist,
// be accepted, and not yet hold a badge.
func (s *Service) lookup(ctx context.Context, email string) (*models.Person, error) {
	p, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no person with email %s", errs.ErrNotFound, email)
	}
	if !p.Accepted() {
		return nil, fmt.Errorf("%w: %s has not been accepted", errs.ErrPreconditionFailed, email)
	}
	if p.HasBadge() {
		return nil, fmt.Errorf("%w: %s already has a badge", errs.ErrConflict, email)
	}
	return p, nil
}

// Preview returns the identity data staff confirm before assigning a
// badge. Nothing is mutated.
func (s *Service) Preview(ctx context.Context, email string) (*Preview, error) {
	p, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	return &Preview{Email: p.Email, FullName: p.FullName, ShirtSize: p.ShirtSize}, nil
}

// Assign binds the badge code to the person. The binding is one-shot: a
// person already badged and a badge already bound both surface Conflict.
func (s *Service) Assign(ctx context.Context, email, badge string) (*models.Person, error) {
	if badge == "" {
		return nil, fmt.Errorf("%w: badge code required", errs.ErrValidation)
	}
	p, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.store.AssignBadge(ctx, email, badge); err != nil {
		return nil, err
	}
	p.Badge = &badge
	s.logger.Info("badge assigned", zap.String("email", email), zap.String("badge", badge))
	if s.feed != nil {
		s.feed.Publish(live.Event{Type: live.EventCheckin, Badge: badge, Email: email, Name: p.FullName, At: s.now()})
	}
	return p, nil
}
