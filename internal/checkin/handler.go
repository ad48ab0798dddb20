package checkin

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/pkg/response"
)

// CheckinRequest is the body for POST /checkin. Badge omitted means
// phase one: look the person up for visual identity confirmation.
type CheckinRequest struct {
	Email     string `json:"email" binding:"required,email"`
	BadgeCode string `json:"badge_code"`
}

// Handler handles check-in HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Checkin handles POST /checkin for both phases.
func (h *Handler) Checkin(c *gin.Context) {
	var req CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if req.BadgeCode == "" {
		preview, err := h.svc.Preview(c.Request.Context(), email)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, gin.H{"preview": preview})
		return
	}

	p, err := h.svc.Assign(c.Request.Context(), email, strings.TrimSpace(req.BadgeCode))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"participant": p})
}
