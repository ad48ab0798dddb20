package checkin

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorgeteixe/hackackathon/internal/errs"
	"github.com/jorgeteixe/hackackathon/internal/live"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

type fakeStore struct {
	persons map[string]*models.Person
	badges  map[string]string // badge -> email
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		persons: make(map[string]*models.Person),
		badges:  make(map[string]string),
	}
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*models.Person, error) {
	p, ok := f.persons[email]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) AssignBadge(_ context.Context, email, badge string) error {
	if owner, taken := f.badges[badge]; taken && owner != email {
		return fmt.Errorf("%w: badge %s already bound", errs.ErrConflict, badge)
	}
	p := f.persons[email]
	if p.Badge != nil {
		return fmt.Errorf("%w: already has a badge", errs.ErrConflict)
	}
	p.Badge = &badge
	f.badges[badge] = email
	return nil
}

type fakeFeed struct {
	events []live.Event
}

func (f *fakeFeed) Publish(event live.Event) {
	f.events = append(f.events, event)
}

func acceptedPerson(store *fakeStore, email string) *models.Person {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	p := &models.Person{
		Email:           email,
		Role:            models.RoleParticipant,
		FullName:        "Margaret Hamilton",
		ShirtSize:       "M",
		RegisteredAt:    &at,
		EmailVerifiedAt: &at,
		AcceptedAt:      &at,
	}
	store.persons[email] = p
	return p
}

func TestPreviewDoesNotMutate(t *testing.T) {
	store := newFakeStore()
	acceptedPerson(store, "m@example.org")
	svc := NewService(store, nil, nil)

	preview, err := svc.Preview(context.Background(), "m@example.org")
	require.NoError(t, err)
	assert.Equal(t, "Margaret Hamilton", preview.FullName)
	assert.Equal(t, "M", preview.ShirtSize)
	assert.Nil(t, store.persons["m@example.org"].Badge)
}

func TestPreviewGates(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, nil)

	_, err := svc.Preview(context.Background(), "ghost@example.org")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	store.persons["pending@example.org"] = &models.Person{
		Email: "pending@example.org", RegisteredAt: &at, EmailVerifiedAt: &at,
	}
	_, err = svc.Preview(context.Background(), "pending@example.org")
	assert.ErrorIs(t, err, errs.ErrPreconditionFailed)
}

func TestAssignBadge(t *testing.T) {
	store := newFakeStore()
	acceptedPerson(store, "m@example.org")
	feed := &fakeFeed{}
	svc := NewService(store, feed, nil)

	p, err := svc.Assign(context.Background(), "m@example.org", "B-042")
	require.NoError(t, err)
	require.NotNil(t, p.Badge)
	assert.Equal(t, "B-042", *p.Badge)

	require.Len(t, feed.events, 1)
	assert.Equal(t, live.EventCheckin, feed.events[0].Type)
	assert.Equal(t, "B-042", feed.events[0].Badge)
}

func TestAssignBadgeExactlyOnce(t *testing.T) {
	store := newFakeStore()
	acceptedPerson(store, "m@example.org")
	acceptedPerson(store, "n@example.org")
	svc := NewService(store, nil, nil)

	_, err := svc.Assign(context.Background(), "m@example.org", "B-042")
	require.NoError(t, err)

	// Same person, new code: refused.
	_, err = svc.Assign(context.Background(), "m@example.org", "B-043")
	assert.ErrorIs(t, err, errs.ErrConflict)

	// Different person, same code: refused.
	_, err = svc.Assign(context.Background(), "n@example.org", "B-042")
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestAssignBadgeRequiresCode(t *testing.T) {
	store := newFakeStore()
	acceptedPerson(store, "m@example.org")
	svc := NewService(store, nil, nil)

	_, err := svc.Assign(context.Background(), "m@example.org", "")
	assert.ErrorIs(t, err, errs.ErrValidation)
}
