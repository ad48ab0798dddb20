package registration

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/internal/middleware"
	"github.com/jorgeteixe/hackackathon/internal/models"
	"github.com/jorgeteixe/hackackathon/pkg/response"
	"github.com/jorgeteixe/hackackathon/pkg/storage"
)

// RegisterForm is the multipart body for POST /register.
type RegisterForm struct {
	Email          string `form:"email" binding:"required,email"`
	FullName       string `form:"full_name" binding:"required"`
	Phone          string `form:"phone" binding:"required"`
	BirthDate      string `form:"birth_date" binding:"required"`
	ShirtSize      string `form:"shirt_size" binding:"required,oneof=S M L XL 2XL 3XL"`
	StudyLevel     string `form:"study_level" binding:"required,oneof=VOCATIONAL UNIVERSITY MASTER OTHER"`
	StudyName      string `form:"study_name"`
	StudyCenter    string `form:"study_center"`
	StudyYear      string `form:"study_year"`
	City           string `form:"city"`
	WantsCredits   bool   `form:"wants_credits"`
	Motivation     string `form:"motivation"`
	Dietary        string `form:"dietary_restrictions"` // comma-separated tags
	DietaryDetails string `form:"dietary_details"`
	ShareCV        bool   `form:"share_cv"`
}

// AcceptRequest is the body for POST /participants/accept.
type AcceptRequest struct {
	Emails []string `json:"emails" binding:"required,min=1"`
}

// Handler handles registration workflow HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registration handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}


// Register handles POST /register (multipart form with optional CV).
func (h *Handler) Register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	birthDate, err := time.Parse("2006-01-02", form.BirthDate)
	if err != nil {
		response.BadRequest(c, "invalid birth_date, expected YYYY-MM-DD")
		return
	}

	in := RegisterInput{
		Email:          strings.ToLower(strings.TrimSpace(form.Email)),
		FullName:       form.FullName,
		Phone:          form.Phone,
		BirthDate:      birthDate,
		ShirtSize:      form.ShirtSize,
		StudyLevel:     form.StudyLevel,
		StudyName:      form.StudyName,
		StudyCenter:    form.StudyCenter,
		StudyYear:      form.StudyYear,
		City:           form.City,
		WantsCredits:   form.WantsCredits,
		Motivation:     form.Motivation,
		Dietary:        splitTags(form.Dietary),
		DietaryDetails: form.DietaryDetails,
		ShareCV:        form.ShareCV,
	}

	if fh, err := c.FormFile("cv"); err == nil && fh != nil {
		if fh.Size > storage.MaxCVFileSize {
			response.BadRequest(c, "cv exceeds maximum size")
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.Internal(c, "failed to read cv")
			return
		}
		defer f.Close()

		head := make([]byte, 5)
		n, err := io.ReadFull(f, head)
		if err != nil || !bytes.Equal(head[:n], []byte("%PDF-")) {
			response.BadRequest(c, "cv must be a PDF file")
			return
		}
		in.CV = io.MultiReader(bytes.NewReader(head), f)
		in.CVSize = fh.Size
	}

	p, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, ErrMailFailed) {
			// Account created but unverified; tell the applicant to reach out.
			c.JSON(http.StatusBadGateway, response.Body{
				Success: false,
				Error:   "registered, but the verification mail could not be sent; contact hackudc@gpul.org",
			})
			return
		}
		response.FromError(c, err)
		return
	}
	response.Created(c, gin.H{"participant": p})
}

// VerifyEmail handles GET /verify/:token.
func (h *Handler) VerifyEmail(c *gin.Context) {
	tokenID, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.NotFound(c, "token invalid")
		return
	}
	result, err := h.svc.VerifyEmail(c.Request.Context(), tokenID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

// ConfirmPage handles GET /confirm/:token: the page state before the
// participant commits to confirming or rejecting.
func (h *Handler) ConfirmPage(c *gin.Context) {
	tokenID, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.NotFound(c, "token invalid")
		return
	}
	token, p, err := h.svc.ConfirmPage(c.Request.Context(), tokenID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{
		"participant": p,
		"expires_at":  token.ExpiresAt,
		"valid":       token.Valid(time.Now()),
		"confirmed":   p.Confirmed(),
		"rejected":    p.Rejected(),
	})
}

// ConfirmSeat handles POST /confirm/:token.
func (h *Handler) ConfirmSeat(c *gin.Context) {
	tokenID, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.NotFound(c, "token invalid")
		return
	}
	result, err := h.svc.ConfirmSeat(c.Request.Context(), tokenID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

// RejectSeat handles POST /reject/:token.
func (h *Handler) RejectSeat(c *gin.Context) {
	tokenID, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.NotFound(c, "token invalid")
		return
	}
	p, err := h.svc.RejectSeat(c.Request.Context(), tokenID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"participant": p})
}

// Accept handles POST /participants/accept (admin only; the role
// middleware rejects anyone else before this runs).
func (h *Handler) Accept(c *gin.Context) {
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	result, err := h.svc.Accept(c.Request.Context(), req.Emails)
	if err != nil {
		response.FromError(c, err)
		return
	}
	var warnings []string
	if len(result.NotVerified) > 0 {
		warnings = append(warnings, "not email-verified, skipped: "+strings.Join(result.NotVerified, ", "))
	}
	if len(result.AlreadyAccepted) > 0 {
		warnings = append(warnings, "already accepted: "+strings.Join(result.AlreadyAccepted, ", "))
	}
	if len(result.NotFound) > 0 {
		warnings = append(warnings, "not found: "+strings.Join(result.NotFound, ", "))
	}
	response.OKWithWarnings(c, result, warnings)
}

// ParticipantInfo handles GET /participants/:email for desk staff.
func (h *Handler) ParticipantInfo(c *gin.Context) {
	email := strings.ToLower(c.Param("email"))
	canViewCV := c.GetString(middleware.ContextUserRole) == string(models.StaffRoleAdmin)
	p, cvURL, err := h.svc.ParticipantInfo(c.Request.Context(), email, canViewCV)
	if err != nil {
		response.FromError(c, err)
		return
	}
	data := gin.H{"participant": p, "state": p.State()}
	if cvURL != "" {
		data["cv_url"] = cvURL
	}
	response.OK(c, data)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
