// Package registration orchestrates the participant lifecycle:
// sign-up, email verification, acceptance, and seat confirmation or
// rejection. Every transition is gated on a single-use token or an
// operator action; lifecycle state lives as timestamps on the person.
package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/config"
	"github.com/jorgeteixe/hackackathon/internal/errs"
	"github.com/jorgeteixe/hackackathon/internal/mailer"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

// ErrMailFailed marks a notification that could not be delivered. For
// initial registration the participant row is kept and the reason is
// recorded; the caller decides how to render the failure.
var ErrMailFailed = errors.New("mail delivery failed")

// Store is the workflow's persistence boundary. The pgx implementation
// is Repository; tests use an in-memory fake.
type Store interface {
	GetParticipant(ctx context.Context, email string) (*models.Person, error)
	CreateParticipant(ctx context.Context, p *models.Person) error
	SetCVKey(ctx context.Context, email, key string) error
	RecordVerifyEmailError(ctx context.Context, email, reason string) error
	GetPersons(ctx context.Context, emails []string) ([]models.Person, error)
	MarkAccepted(ctx context.Context, emails []string, at time.Time) (int, error)
	ListAwaitingSeatConfirmation(ctx context.Context) ([]models.Person, error)

	IssueToken(ctx context.Context, kind models.TokenKind, email string, expiresAt time.Time) (*models.Token, error)
	LookupToken(ctx context.Context, id uuid.UUID, kind models.TokenKind) (*models.Token, error)
	CountLiveTokens(ctx context.Context, kind models.TokenKind, emails []string, now time.Time) (int, error)

	// MarkEmailVerified and MarkSeatConfirmed consume the token and write
	// the lifecycle timestamp atomically; they report false when a
	// concurrent replay spent the token first.
	MarkEmailVerified(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error)
	MarkSeatConfirmed(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error)
	MarkSeatRejected(ctx context.Context, email string, at time.Time) error
}

// CVStore stores uploaded CVs. The S3 implementation lives in
// pkg/storage; a nil CVStore disables CV persistence.
type CVStore interface {
	UploadCV(ctx context.Context, email string, body io.Reader, size int64) (key string, err error)
	PresignCVDownload(ctx context.Context, key string) (string, error)
}

// Service implements the registration workflow over a Store, a Notifier
// and an optional CVStore.
type Service struct {
	store    Store
	notifier mailer.Notifier
	cvs      CVStore
	cfg      config.RegistrationConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the workflow service.
func NewService(store Store, notifier mailer.Notifier, cvs CVStore, cfg config.RegistrationConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		cvs:      cvs,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterInput is the validated participant sign-up form.
type RegisterInput struct {
	Email          string
	FullName       string
	Phone          string
	BirthDate      time.Time
	ShirtSize      string
	StudyLevel     string
	StudyName      string
	StudyCenter    string
	StudyYear      string
	City           string
	WantsCredits   bool
	Motivation     string
	Dietary        []string
	DietaryDetails string
	ShareCV        bool
	CV             io.Reader // nil when no CV was uploaded
	CVSize         int64
}

// Register creates a participant, issues an email-verification token and
// sends the verification mail. A mail failure is recorded on the
// participant and surfaced as ErrMailFailed, but the participant is kept:
// the account exists unverified with the reason stored for operators.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Person, error) {
	now := s.now()
	if !s.cfg.ClosesAt.IsZero() && now.After(s.cfg.ClosesAt) {
		return nil, fmt.Errorf("%w: registration is closed", errs.ErrPreconditionFailed)
	}

	p := &models.Person{
		Email:          in.Email,
		Role:           models.RoleParticipant,
		FullName:       in.FullName,
		Phone:          in.Phone,
		BirthDate:      &in.BirthDate,
		ShirtSize:      in.ShirtSize,
		StudyLevel:     in.StudyLevel,
		StudyName:      in.StudyName,
		StudyCenter:    in.StudyCenter,
		StudyYear:      in.StudyYear,
		City:           in.City,
		WantsCredits:   in.WantsCredits,
		Motivation:     in.Motivation,
		Dietary:        in.Dietary,
		DietaryDetails: in.DietaryDetails,
		ShareCV:        in.ShareCV,
		RegisteredAt:   &now,
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return nil, err
	}

	if in.CV != nil && s.cvs != nil {
		key, err := s.cvs.UploadCV(ctx, in.Email, in.CV, in.CVSize)
		if err != nil {
			// The registration stands; operators can request the CV later.
			s.logger.Error("cv upload failed", zap.String("email", in.Email), zap.Error(err))
		} else {
			p.CVKey = key
			if err := s.store.SetCVKey(ctx, in.Email, key); err != nil {
				s.logger.Error("record cv key failed", zap.String("email", in.Email), zap.Error(err))
			}
		}
	}

	expiresAt := now.Add(time.Duration(s.cfg.VerifyTTLDays) * 24 * time.Hour)
	token, err := s.store.IssueToken(ctx, models.TokenEmailVerification, in.Email, expiresAt)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"name":  p.FullName,
		"token": token.ID.String(),
		"host":  s.cfg.Host,
	}
	if err := s.notifier.Send(ctx, mailer.TemplateVerifyEmail, p.Email, params); err != nil {
		reason := err.Error()
		if len(reason) > models.MaxVerifyErrorLen {
			reason = reason[:models.MaxVerifyErrorLen]
		}
		if recErr := s.store.RecordVerifyEmailError(ctx, p.Email, reason); recErr != nil {
			s.logger.Error("record verify mail error failed", zap.String("email", p.Email), zap.Error(recErr))
		}
		s.logger.Error("verification mail failed", zap.String("email", p.Email), zap.Error(err))
		return p, fmt.Errorf("%w: %s", ErrMailFailed, reason)
	}
	return p, nil
}

// VerifyResult is the outcome of an email verification.
type VerifyResult struct {
	Person          *models.Person `json:"participant"`
	AlreadyVerified bool           `json:"already_verified"`
}

// VerifyEmail consumes an email-verification token and marks the
// participant verified. Re-verifying an already verified participant
// succeeds idempotently without touching the stored timestamp, even when
// the token has since expired. The follow-up notice mail is best-effort.
func (s *Service) VerifyEmail(ctx context.Context, tokenID uuid.UUID) (*VerifyResult, error) {
	token, err := s.store.LookupToken(ctx, tokenID, models.TokenEmailVerification)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no verification token %s", errs.ErrTokenInvalid, tokenID)
	}
	p, err := s.store.GetParticipant(ctx, token.PersonEmail)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: participant %s", errs.ErrNotFound, token.PersonEmail)
	}
	if p.Verified() {
		return &VerifyResult{Person: p, AlreadyVerified: true}, nil
	}

	now := s.now()
	if !token.Valid(now) {
		return nil, fmt.Errorf("%w: verification token expired %s", errs.ErrTokenExpired, token.ExpiresAt.Format(time.RFC3339))
	}
	ok, err := s.store.MarkEmailVerified(ctx, tokenID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent replay spent the token between lookup and update.
		return nil, fmt.Errorf("%w: verification token already used", errs.ErrTokenExpired)
	}
	p.EmailVerifiedAt = &now
	p.VerifyEmailError = ""

	params := map[string]string{"name": p.FullName, "host": s.cfg.Host}
	if err := s.notifier.Send(ctx, mailer.TemplateEmailVerified, p.Email, params); err != nil {
		// Verification already succeeded; the notice is cosmetic.
		s.logger.Warn("verified notice mail failed", zap.String("email", p.Email), zap.Error(err))
	}
	return &VerifyResult{Person: p}, nil
}

// BatchOptions selects the seat-confirmation token expiry: a TTL in days
// or an absolute instant, never both.
type BatchOptions struct {
	TTLDays   int       // 0 = service default
	ExpiresAt time.Time // zero = use TTLDays
}

// BatchResult reports a seat-confirmation dispatch run.
type BatchResult struct {
	Sent           []string  `json:"sent"`
	Failed         string    `json:"failed,omitempty"`
	ExistingTokens int       `json:"existing_tokens,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// RequestSeatConfirmation issues one seat-confirmation token per
// accepted-but-unconfirmed participant and mails each of them. The first
// mail failure stops the batch: partial runs mixed with further transient
// errors are worse than an operator re-running the command. Participants
// already holding a live confirmation token are counted as a warning but
// still included, matching how resends work.
func (s *Service) RequestSeatConfirmation(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	now := s.now()
	if opts.TTLDays != 0 && !opts.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%w: ttl days and absolute expiry are mutually exclusive", errs.ErrValidation)
	}
	expiresAt := opts.ExpiresAt
	if expiresAt.IsZero() {
		days := opts.TTLDays
		if days == 0 {
			days = s.cfg.ConfirmTTLDays
		}
		expiresAt = now.Add(time.Duration(days) * 24 * time.Hour)
	}
	if !expiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiry %s is in the past", errs.ErrValidation, expiresAt.Format(time.RFC3339))
	}

	participants, err := s.store.ListAwaitingSeatConfirmation(ctx)
	if err != nil {
		return nil, err
	}
	result := &BatchResult{ExpiresAt: expiresAt}

	emails := make([]string, len(participants))
	for i := range participants {
		emails[i] = participants[i].Email
	}
	existing, err := s.store.CountLiveTokens(ctx, models.TokenSeatConfirmation, emails, now)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		result.ExistingTokens = existing
		s.logger.Warn("participants already hold live confirmation tokens", zap.Int("count", existing))
	}

	for i := range participants {
		p := &participants[i]
		token, err := s.store.IssueToken(ctx, models.TokenSeatConfirmation, p.Email, expiresAt)
		if err != nil {
			return result, err
		}
		params := map[string]string{
			"name":    p.FullName,
			"token":   token.ID.String(),
			"host":    s.cfg.Host,
			"expires": expiresAt.Format(time.RFC3339),
		}
		if err := s.notifier.Send(ctx, mailer.TemplateSeatConfirmation, p.Email, params); err != nil {
			result.Failed = p.Email
			s.logger.Error("seat confirmation mail failed, stopping batch",
				zap.String("email", p.Email), zap.Error(err))
			return result, fmt.Errorf("%w: %s: %s", ErrMailFailed, p.Email, err)
		}
		result.Sent = append(result.Sent, p.Email)
	}
	return result, nil
}

// ConfirmResult is the outcome of a seat confirmation.
type ConfirmResult struct {
	Person           *models.Person `json:"participant"`
	AlreadyConfirmed bool           `json:"already_confirmed"`
}

// ConfirmSeat consumes a seat-confirmation token and marks the seat
// confirmed. Confirmation is token-gated, not acceptance-gated: a valid
// token confirms even a participant an operator never marked accepted.
func (s *Service) ConfirmSeat(ctx context.Context, tokenID uuid.UUID) (*ConfirmResult, error) {
	token, err := s.store.LookupToken(ctx, tokenID, models.TokenSeatConfirmation)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no confirmation token %s", errs.ErrTokenInvalid, tokenID)
	}
	p, err := s.store.GetParticipant(ctx, token.PersonEmail)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: participant %s", errs.ErrNotFound, token.PersonEmail)
	}
	if p.Confirmed() {
		return &ConfirmResult{Person: p, AlreadyConfirmed: true}, nil
	}
	if p.Rejected() {
		return nil, fmt.Errorf("%w: seat already rejected", errs.ErrConflict)
	}

	now := s.now()
	if !token.Valid(now) {
		return nil, fmt.Errorf("%w: confirmation token expired %s", errs.ErrTokenExpired, token.ExpiresAt.Format(time.RFC3339))
	}
	ok, err := s.store.MarkSeatConfirmed(ctx, tokenID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: confirmation token already used", errs.ErrTokenExpired)
	}
	p.SeatConfirmedAt = &now
	return &ConfirmResult{Person: p}, nil
}

// RejectSeat marks the seat rejected. Rejection is honored even on an
// expired or already used token; losing a seat someone gave up costs
// nothing, unlike granting one. The token is not consumed.
func (s *Service) RejectSeat(ctx context.Context, tokenID uuid.UUID) (*models.Person, error) {
	token, err := s.store.LookupToken(ctx, tokenID, models.TokenSeatConfirmation)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no confirmation token %s", errs.ErrTokenInvalid, tokenID)
	}
	p, err := s.store.GetParticipant(ctx, token.PersonEmail)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: participant %s", errs.ErrNotFound, token.PersonEmail)
	}
	if p.Confirmed() {
		return nil, fmt.Errorf("%w: seat already confirmed", errs.ErrConflict)
	}

	now := s.now()
	if !p.Rejected() {
		if err := s.store.MarkSeatRejected(ctx, p.Email, now); err != nil {
			return nil, err
		}
		p.SeatRejectedAt = &now
	}
	return p, nil
}

// ConfirmPage returns the token and participant backing the confirmation
// page, without mutating anything.
func (s *Service) ConfirmPage(ctx context.Context, tokenID uuid.UUID) (*models.Token, *models.Person, error) {
	token, err := s.store.LookupToken(ctx, tokenID, models.TokenSeatConfirmation)
	if err != nil {
		return nil, nil, err
	}
	if token == nil {
		return nil, nil, fmt.Errorf("%w: no confirmation token %s", errs.ErrTokenInvalid, tokenID)
	}
	p, err := s.store.GetParticipant(ctx, token.PersonEmail)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, fmt.Errorf("%w: participant %s", errs.ErrNotFound, token.PersonEmail)
	}
	return token, p, nil
}

// AcceptResult reports a bulk acceptance run: accepted count plus the
// skipped groups, so the operator sees exactly what happened to each
// selected participant.
type AcceptResult struct {
	Accepted        int      `json:"accepted"`
	NotVerified     []string `json:"not_verified,omitempty"`
	AlreadyAccepted []string `json:"already_accepted,omitempty"`
	NotFound        []string `json:"not_found,omitempty"`
}

// Accept marks the given participants accepted. Unverified participants
// are reported as errors and skipped; already-accepted ones as warnings.
// The HTTP layer enforces the admin capability before this is reached.
func (s *Service) Accept(ctx context.Context, emails []string) (*AcceptResult, error) {
	persons, err := s.store.GetPersons(ctx, emails)
	if err != nil {
		return nil, err
	}
	found := make(map[string]*models.Person, len(persons))
	for i := range persons {
		found[persons[i].Email] = &persons[i]
	}

	result := &AcceptResult{}
	var acceptable []string
	for _, email := range emails {
		p, ok := found[email]
		switch {
		case !ok:
			result.NotFound = append(result.NotFound, email)
		case !p.Verified():
			result.NotVerified = append(result.NotVerified, email)
		case p.Accepted():
			result.AlreadyAccepted = append(result.AlreadyAccepted, email)
		default:
			acceptable = append(acceptable, email)
		}
	}
	if len(acceptable) > 0 {
		n, err := s.store.MarkAccepted(ctx, acceptable, s.now())
		if err != nil {
			return nil, err
		}
		result.Accepted = n
	}
	return result, nil
}

// ParticipantInfo returns a participant for desk staff. The CV link is
// presigned only when the staff member holds the CV capability and the
// participant consented to sharing.
func (s *Service) ParticipantInfo(ctx context.Context, email string, canViewCV bool) (*models.Person, string, error) {
	p, err := s.store.GetParticipant(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if p == nil {
		return nil, "", fmt.Errorf("%w: no person with email %s", errs.ErrNotFound, email)
	}
	cvURL := ""
	if canViewCV && p.ShareCV && p.CVKey != "" && s.cvs != nil {
		url, err := s.cvs.PresignCVDownload(ctx, p.CVKey)
		if err != nil {
			s.logger.Warn("presign cv failed", zap.String("email", email), zap.Error(err))
		} else {
			cvURL = url
		}
	}
	return p, cvURL, nil
}
