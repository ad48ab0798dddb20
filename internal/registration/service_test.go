package registration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorgeteixe/hackackathon/config"
	"github.com/jorgeteixe/hackackathon/internal/errs"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

type fakeStore struct {
	persons map[string]*models.Person
	tokens  map[uuid.UUID]*models.Token
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		persons: make(map[string]*models.Person),
		tokens:  make(map[uuid.UUID]*models.Token),
	}
}

func (f *fakeStore) GetParticipant(_ context.Context, email string) (*models.Person, error) {
	p, ok := f.persons[email]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateParticipant(_ context.Context, p *models.Person) error {
	if _, ok := f.persons[p.Email]; ok {
		return errs.ErrConflict
	}
	cp := *p
	f.persons[p.Email] = &cp
	return nil
}

func (f *fakeStore) SetCVKey(_ context.Context, email, key string) error {
	f.persons[email].CVKey = key
	return nil
}

func (f *fakeStore) RecordVerifyEmailError(_ context.Context, email, reason string) error {
	f.persons[email].VerifyEmailError = reason
	return nil
}

func (f *fakeStore) GetPersons(_ context.Context, emails []string) ([]models.Person, error) {
	var out []models.Person
	for _, e := range emails {
		if p, ok := f.persons[e]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkAccepted(_ context.Context, emails []string, at time.Time) (int, error) {
	n := 0
	for _, e := range emails {
		if p, ok := f.persons[e]; ok && p.AcceptedAt == nil {
			t := at
			p.AcceptedAt = &t
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListAwaitingSeatConfirmation(_ context.Context) ([]models.Person, error) {
	var out []models.Person
	for _, p := range f.persons {
		if p.Accepted() && !p.Confirmed() && !p.Rejected() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) IssueToken(_ context.Context, kind models.TokenKind, email string, expiresAt time.Time) (*models.Token, error) {
	t := &models.Token{ID: uuid.New(), Kind: kind, PersonEmail: email, ExpiresAt: expiresAt}
	f.tokens[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeStore) LookupToken(_ context.Context, id uuid.UUID, kind models.TokenKind) (*models.Token, error) {
	t, ok := f.tokens[id]
	if !ok || t.Kind != kind {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) CountLiveTokens(_ context.Context, kind models.TokenKind, emails []string, now time.Time) (int, error) {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		set[e] = struct{}{}
	}
	n := 0
	for _, t := range f.tokens {
		if t.Kind != kind || t.Used() || !t.ExpiresAt.After(now) {
			continue
		}
		if _, ok := set[t.PersonEmail]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) consume(id uuid.UUID) bool {
	t, ok := f.tokens[id]
	if !ok || t.Used() {
		return false
	}
	used := time.Now()
	t.UsedAt = &used
	return true
}

func (f *fakeStore) MarkEmailVerified(_ context.Context, tokenID uuid.UUID, at time.Time) (bool, error) {
	if !f.consume(tokenID) {
		return false, nil
	}
	p := f.persons[f.tokens[tokenID].PersonEmail]
	if p == nil || p.EmailVerifiedAt != nil {
		return false, nil
	}
	t := at
	p.EmailVerifiedAt = &t
	p.VerifyEmailError = ""
	return true, nil
}

func (f *fakeStore) MarkSeatConfirmed(_ context.Context, tokenID uuid.UUID, at time.Time) (bool, error) {
	if !f.consume(tokenID) {
		return false, nil
	}
	p := f.persons[f.tokens[tokenID].PersonEmail]
	if p == nil || p.SeatConfirmedAt != nil || p.SeatRejectedAt != nil {
		return false, nil
	}
	t := at
	p.SeatConfirmedAt = &t
	return true, nil
}

func (f *fakeStore) MarkSeatRejected(_ context.Context, email string, at time.Time) error {
	p := f.persons[email]
	if p == nil || p.SeatConfirmedAt != nil || p.SeatRejectedAt != nil {
		return errs.ErrConflict
	}
	t := at
	p.SeatRejectedAt = &t
	return nil
}

// fakeNotifier records sends and fails for recipients in failFor.
type fakeNotifier struct {
	sent    []string
	failFor map[string]error
}

func (f *fakeNotifier) Send(_ context.Context, _, recipient string, _ map[string]string) error {
	if err, ok := f.failFor[recipient]; ok {
		return err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

var testStart = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, notifier *fakeNotifier) (*Service, *time.Time) {
	cfg := config.RegistrationConfig{
		Host:           "https://registro.example.org",
		VerifyTTLDays:  7,
		ConfirmTTLDays: 14,
	}
	svc := NewService(store, notifier, nil, cfg, nil)
	now := testStart
	svc.now = func() time.Time { return now }
	return svc, &now
}

func registerInput(email string) RegisterInput {
	return RegisterInput{
		Email:     email,
		FullName:  "Ada Lovelace",
		BirthDate: time.Date(2000, 3, 14, 0, 0, 0, 0, time.UTC),
		ShirtSize: "M",
	}
}

func singleToken(t *testing.T, store *fakeStore, email string, kind models.TokenKind) *models.Token {
	t.Helper()
	var found *models.Token
	for _, tok := range store.tokens {
		if tok.PersonEmail == email && tok.Kind == kind {
			require.Nil(t, found, "more than one %s token for %s", kind, email)
			found = tok
		}
	}
	require.NotNil(t, found)
	return found
}

func TestRegisterIssuesVerificationToken(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc, _ := newTestService(store, notifier)

	p, err := svc.Register(context.Background(), registerInput("ada@example.org"))
	require.NoError(t, err)
	assert.Equal(t, models.StateRegistered, p.State())
	assert.Equal(t, []string{"ada@example.org"}, notifier.sent)

	token := singleToken(t, store, "ada@example.org", models.TokenEmailVerification)
	assert.Equal(t, testStart.Add(7*24*time.Hour), token.ExpiresAt)
}

func TestRegisterAfterDeadline(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})
	svc.cfg.ClosesAt = testStart.Add(-time.Hour)

	_, err := svc.Register(context.Background(), registerInput("late@example.org"))
	assert.ErrorIs(t, err, errs.ErrPreconditionFailed)
	assert.Empty(t, store.persons)
}

func TestRegisterMailFailureKeepsParticipant(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{failFor: map[string]error{
		"ada@example.org": errors.New("smtp: connection refused"),
	}}
	svc, _ := newTestService(store, notifier)

	p, err := svc.Register(context.Background(), registerInput("ada@example.org"))
	require.ErrorIs(t, err, ErrMailFailed)
	require.NotNil(t, p)

	stored := store.persons["ada@example.org"]
	require.NotNil(t, stored)
	assert.Equal(t, "smtp: connection refused", stored.VerifyEmailError)
	// The token exists; a resend can reuse the flow.
	singleToken(t, store, "ada@example.org", models.TokenEmailVerification)
}

func TestRegisterMailFailureReasonTruncated(t *testing.T) {
	store := newFakeStore()
	long := strings.Repeat("x", models.MaxVerifyErrorLen+500)
	notifier := &fakeNotifier{failFor: map[string]error{
		"ada@example.org": errors.New(long),
	}}
	svc, _ := newTestService(store, notifier)

	_, err := svc.Register(context.Background(), registerInput("ada@example.org"))
	require.ErrorIs(t, err, ErrMailFailed)
	assert.Len(t, store.persons["ada@example.org"].VerifyEmailError, models.MaxVerifyErrorLen)
}

func TestVerifyEmail(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})

	_, err := svc.Register(context.Background(), registerInput("ada@example.org"))
	require.NoError(t, err)
	token := singleToken(t, store, "ada@example.org", models.TokenEmailVerification)

	result, err := svc.VerifyEmail(context.Background(), token.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyVerified)
	assert.True(t, result.Person.Verified())
	assert.True(t, store.tokens[token.ID].Used())
}

func TestVerifyEmailIdempotent(t *testing.T) {
	store := newFakeStore()
	svc, now := newTestService(store, &fakeNotifier{})

	_, err := svc.Register(context.Background(), registerInput("ada@example.org"))
	require.NoError(t, err)
	token := singleToken(t, store, "ada@example.org", models.TokenEmailVerification)

	first, err := svc.VerifyEmail(context.Background(), token.ID)
	require.NoError(t, err)
	verifiedAt := *first.Person.EmailVerifiedAt

	// A week later, with the token both used and expired, the link still
	// lands on "already verified" and the timestamp stays put.
	*now = testStart.Add(8 * 24 * time.Hour)
	second, err := svc.VerifyEmail(context.Background(), token.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyVerified)
	assert.Equal(t, verifiedAt, *second.Person.EmailVerifiedAt)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	store := newFakeStore()
	svc, now := newTestService(store, &fakeNotifier{})

	_, err := svc.Register(context.Background(), registerInput("ada@example.org"))
	require.NoError(t, err)
	token := singleToken(t, store, "ada@example.org", models.TokenEmailVerification)

	// Expiry is exact: at the deadline the token is already dead.
	*now = token.ExpiresAt
	_, err = svc.VerifyEmail(context.Background(), token.ID)
	assert.ErrorIs(t, err, errs.ErrTokenExpired)
	assert.False(t, store.persons["ada@example.org"].Verified())
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), &fakeNotifier{})
	_, err := svc.VerifyEmail(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errs.ErrTokenInvalid)
}

// acceptedParticipant seeds a verified and accepted participant.
func acceptedParticipant(store *fakeStore, email string) *models.Person {
	verified := testStart.Add(-48 * time.Hour)
	accepted := testStart.Add(-24 * time.Hour)
	registered := testStart.Add(-72 * time.Hour)
	p := &models.Person{
		Email:           email,
		Role:            models.RoleParticipant,
		FullName:        "Grace Hopper",
		RegisteredAt:    &registered,
		EmailVerifiedAt: &verified,
		AcceptedAt:      &accepted,
	}
	store.persons[email] = p
	return p
}

func TestRequestSeatConfirmation(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc, _ := newTestService(store, notifier)

	acceptedParticipant(store, "a@example.org")
	acceptedParticipant(store, "b@example.org")
	confirmed := acceptedParticipant(store, "c@example.org")
	at := testStart.Add(-time.Hour)
	confirmed.SeatConfirmedAt = &at

	result, err := svc.RequestSeatConfirmation(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@example.org", "b@example.org"}, result.Sent)
	assert.Equal(t, testStart.Add(14*24*time.Hour), result.ExpiresAt)

	// Confirmed participants get no token.
	for _, tok := range store.tokens {
		assert.NotEqual(t, "c@example.org", tok.PersonEmail)
	}
	tokenA := singleToken(t, store, "a@example.org", models.TokenSeatConfirmation)
	tokenB := singleToken(t, store, "b@example.org", models.TokenSeatConfirmation)
	assert.NotEqual(t, tokenA.ID, tokenB.ID)
}

func TestRequestSeatConfirmationFailFast(t *testing.T) {
	store := newFakeStore()
	acceptedParticipant(store, "a@example.org")
	acceptedParticipant(store, "b@example.org")
	acceptedParticipant(store, "c@example.org")

	// One recipient fails; exactly the ones before it in iteration order
	// get mail, and the run reports who stopped it.
	notifier := &fakeNotifier{failFor: map[string]error{
		"b@example.org": errors.New("smtp: 550 mailbox unavailable"),
	}}
	svc, _ := newTestService(store, notifier)

	result, err := svc.RequestSeatConfirmation(context.Background(), BatchOptions{TTLDays: 5})
	require.ErrorIs(t, err, ErrMailFailed)
	assert.Equal(t, "b@example.org", result.Failed)
	assert.NotContains(t, result.Sent, "b@example.org")
	assert.Len(t, result.Sent, len(notifier.sent))
}

func TestRequestSeatConfirmationExpiryOptions(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})

	_, err := svc.RequestSeatConfirmation(context.Background(), BatchOptions{
		TTLDays:   3,
		ExpiresAt: testStart.Add(time.Hour),
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.RequestSeatConfirmation(context.Background(), BatchOptions{
		ExpiresAt: testStart.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	result, err := svc.RequestSeatConfirmation(context.Background(), BatchOptions{
		ExpiresAt: testStart.Add(36 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(36*time.Hour), result.ExpiresAt)
}

func TestRequestSeatConfirmationCountsLiveTokens(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc, _ := newTestService(store, notifier)

	acceptedParticipant(store, "a@example.org")
	_, err := svc.RequestSeatConfirmation(context.Background(), BatchOptions{})
	require.NoError(t, err)

	// Resend: the live token from the first run is reported, and a second
	// distinct token is still issued.
	result, err := svc.RequestSeatConfirmation(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExistingTokens)
	assert.Equal(t, []string{"a@example.org"}, result.Sent)

	n := 0
	for _, tok := range store.tokens {
		if tok.PersonEmail == "a@example.org" {
			n++
		}
	}
	assert.Equal(t, 2, n)
}

func TestConfirmSeat(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})
	acceptedParticipant(store, "a@example.org")

	token, err := store.IssueToken(context.Background(), models.TokenSeatConfirmation, "a@example.org", testStart.Add(24*time.Hour))
	require.NoError(t, err)

	result, err := svc.ConfirmSeat(context.Background(), token.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyConfirmed)
	assert.Equal(t, models.StateSeatConfirmed, result.Person.State())

	// The same link again is a friendly no-op.
	again, err := svc.ConfirmSeat(context.Background(), token.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyConfirmed)
}

func TestConfirmSeatWithoutAcceptance(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})

	// A token someone issued by hand confirms the seat even though no
	// operator ever marked the participant accepted. The token is the
	// capability.
	registered := testStart.Add(-72 * time.Hour)
	verified := testStart.Add(-48 * time.Hour)
	store.persons["stray@example.org"] = &models.Person{
		Email:           "stray@example.org",
		Role:            models.RoleParticipant,
		RegisteredAt:    &registered,
		EmailVerifiedAt: &verified,
	}
	token, err := store.IssueToken(context.Background(), models.TokenSeatConfirmation, "stray@example.org", testStart.Add(24*time.Hour))
	require.NoError(t, err)

	result, err := svc.ConfirmSeat(context.Background(), token.ID)
	require.NoError(t, err)
	assert.True(t, result.Person.Confirmed())
}

func TestConfirmSeatExpired(t *testing.T) {
	store := newFakeStore()
	svc, now := newTestService(store, &fakeNotifier{})
	acceptedParticipant(store, "a@example.org")

	token, err := store.IssueToken(context.Background(), models.TokenSeatConfirmation, "a@example.org", testStart.Add(24*time.Hour))
	require.NoError(t, err)

	*now = testStart.Add(25 * time.Hour)
	_, err = svc.ConfirmSeat(context.Background(), token.ID)
	assert.ErrorIs(t, err, errs.ErrTokenExpired)
	assert.False(t, store.persons["a@example.org"].Confirmed())
}

func TestConfirmSeatAfterRejection(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})
	p := acceptedParticipant(store, "a@example.org")
	at := testStart.Add(-time.Hour)
	p.SeatRejectedAt = &at

	token, err := store.IssueToken(context.Background(), models.TokenSeatConfirmation, "a@example.org", testStart.Add(24*time.Hour))
	require.NoError(t, err)

	_, err = svc.ConfirmSeat(context.Background(), token.ID)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestRejectSeat(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})
	acceptedParticipant(store, "a@example.org")

	token, err := store.IssueToken(context.Background(), models.TokenSeatConfirmation, "a@example.org", testStart.Add(24*time.Hour))
	require.NoError(t, err)

	p, err := svc.RejectSeat(context.Background(), token.ID)
	require.NoError(t, err)
	assert.True(t, p.Rejected())
	// Rejection does not spend the token.
	assert.False(t, store.tokens[token.ID].Used())

	// Re-rejecting keeps the original timestamp.
	rejectedAt := *p.SeatRejectedAt
	again, err := svc.RejectSeat(context.Background(), token.ID)
	require.NoError(t, err)
	assert.Equal(t, rejectedAt, *again.SeatRejectedAt)
}

func TestRejectSeatExpiredTokenHonored(t *testing.T) {
	store := newFakeStore()
	svc, now := newTestService(store, &fakeNotifier{})
	acceptedParticipant(store, "a@example.org")

	token, err := store.IssueToken(context.Background(), models.TokenSeatConfirmation, "a@example.org", testStart.Add(24*time.Hour))
	require.NoError(t, err)

	// Giving up a seat is honored even on a dead link.
	*now = testStart.Add(48 * time.Hour)
	p, err := svc.RejectSeat(context.Background(), token.ID)
	require.NoError(t, err)
	assert.True(t, p.Rejected())
}

func TestRejectSeatAfterConfirmation(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})
	p := acceptedParticipant(store, "a@example.org")
	at := testStart.Add(-time.Hour)
	p.SeatConfirmedAt = &at

	token, err := store.IssueToken(context.Background(), models.TokenSeatConfirmation, "a@example.org", testStart.Add(24*time.Hour))
	require.NoError(t, err)

	_, err = svc.RejectSeat(context.Background(), token.ID)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestAcceptPartitionsSelection(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeNotifier{})

	registered := testStart.Add(-72 * time.Hour)
	verified := testStart.Add(-48 * time.Hour)
	store.persons["verified@example.org"] = &models.Person{
		Email: "verified@example.org", RegisteredAt: &registered, EmailVerifiedAt: &verified,
	}
	store.persons["unverified@example.org"] = &models.Person{
		Email: "unverified@example.org", RegisteredAt: &registered,
	}
	acceptedParticipant(store, "done@example.org")

	result, err := svc.Accept(context.Background(), []string{
		"verified@example.org", "unverified@example.org", "done@example.org", "ghost@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, []string{"unverified@example.org"}, result.NotVerified)
	assert.Equal(t, []string{"done@example.org"}, result.AlreadyAccepted)
	assert.Equal(t, []string{"ghost@example.org"}, result.NotFound)
	assert.True(t, store.persons["verified@example.org"].Accepted())
	assert.False(t, store.persons["unverified@example.org"].Accepted())
}
