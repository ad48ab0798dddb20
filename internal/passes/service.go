// Package passes issues category passes (meals, swag, ...) to badge
// holders. A pass type becomes issuable once its validity window opens;
// issuing records a timestamped claim and reports whether the holder
// already claimed that category before.
package passes

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

// Store is the pass persistence boundary.
type Store interface {
	ListTypes(ctx context.Context) ([]models.PassType, error)
	CreateType(ctx context.Context, name string, validFrom time.Time) (*models.PassType, error)
	GetPersonByBadge(ctx context.Context, badge string) (*models.Person, error)
	HasPassOfType(ctx context.Context, email string, typeID uuid.UUID) (bool, error)
	CreatePass(ctx context.Context, email string, typeID uuid.UUID, at time.Time) (*models.Pass, error)
}

// Feed receives desk events for the live dashboard; nil disables it.
type Feed interface {
	Publish(event live.Event)
}

// IssueResult reports one issued pass. Repeat means the holder already
// had a pass of this type; desks use it to flag double dippers without
// refusing the pass.
type IssueResult struct {
	Pass     *models.Pass `json:"pass"`
	TypeName string       `json:"type_name"`
	Person   string       `json:"person"`
	Repeat   bool         `json:"repeat"`
}

// Service implements pass issuance.
type Service struct {
	store  Store
	feed   Feed
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the pass service.
func NewService(store Store, feed Feed, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, feed: feed, logger: logger, now: time.Now}
}

// IssuableTypes returns the currently issuable pass types, most recently
// activated first.
func (s *Service) IssuableTypes(ctx context.Context) ([]models.PassType, error) {
	all, err := s.store.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var issuable []models.PassType
	for _, t := range all {
		if t.Issuable(now) {
			issuable = append(issuable, t)
		}
	}
	// ListTypes orders by valid_from ascending; newest activation first is
	// what the desk wants, and what default selection uses.
	for i, j := 0, len(issuable)-1; i < j; i, j = i+1, j-1 {
		issuable[i], issuable[j] = issuable[j], issuable[i]
	}
	if len(issuable) == 0 {
		return nil, fmt.Errorf("%w: create one in the admin panel", errs.ErrNoActivePassType)
	}
	return issuable, nil
}

// Issue records a pass for a badge holder. A zero typeID selects the
// default: the most recently activated issuable type.
func (s *Service) Issue(ctx context.Context, badge string, typeID uuid.UUID) (*IssueResult, error) {
	issuable, err := s.IssuableTypes(ctx)
	if err != nil {
		return nil, err
	}
	var passType *models.PassType
	if typeID == uuid.Nil {
		passType = &issuable[0]
	} else {
		for i := range issuable {
			if issuable[i].ID == typeID {
				passType = &issuable[i]
				break
			}
		}
		if passType == nil {
			return nil, fmt.Errorf("%w: pass type %s is not issuable", errs.ErrValidation, typeID)
		}
	}

	p, err := s.store.GetPersonByBadge(ctx, badge)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no badge %s", errs.ErrNotFound, badge)
	}

	repeat, err := s.store.HasPassOfType(ctx, p.Email, passType.ID)
	if err != nil {
		return nil, err
	}
	pass, err := s.store.CreatePass(ctx, p.Email, passType.ID, s.now())
	if err != nil {
		return nil, err
	}
	if s.feed != nil {
		s.feed.Publish(live.Event{Type: live.EventPass, Badge: badge, Email: p.Email, Name: p.FullName, At: pass.IssuedAt})
	}
	return &IssueResult{Pass: pass, TypeName: passType.Name, Person: p.FullName, Repeat: repeat}, nil
}

// CreateType adds a pass category. Admin only; the validity start may be
// in the future to stage a category before it opens.
func (s *Service) CreateType(ctx context.Context, name string, validFrom time.Time) (*models.PassType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name required", errs.ErrValidation)
	}
	return s.store.CreateType(ctx, name, validFrom)
}
