package attendance

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/pkg/response"
)

// EditRequest is the body for POST /attendance/records/:id. Only a
// missing half may be filled in; timestamps are RFC 3339.
type EditRequest struct {
	EnteredAt string `json:"entered_at"`
	LeftAt    string `json:"left_at"`
}

// Handler handles attendance HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func badgeParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("badge"))
}

// Entry handles POST /attendance/:badge/entry.
func (h *Handler) Entry(c *gin.Context) {
	result, err := h.svc.RecordEntry(c.Request.Context(), badgeParam(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if len(result.Warnings) > 0 {
		response.OKWithWarnings(c, result, result.Warnings)
		return
	}
	response.OK(c, result)
}

// Exit handles POST /attendance/:badge/exit.
func (h *Handler) Exit(c *gin.Context) {
	result, err := h.svc.RecordExit(c.Request.Context(), badgeParam(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if len(result.Warnings) > 0 {
		response.OKWithWarnings(c, result, result.Warnings)
		return
	}
	response.OK(c, result)
}

// History handles GET /attendance/:badge.
func (h *Handler) History(c *gin.Context) {
	history, err := h.svc.HistoryFor(c.Request.Context(), badgeParam(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, history)
}

// Edit handles POST /attendance/records/:id.
func (h *Handler) Edit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "attendance record not found")
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	enteredAt, err := parseOptionalTime(req.EnteredAt)
	if err != nil {
		response.BadRequest(c, "entered_at must be RFC 3339")
		return
	}
	leftAt, err := parseOptionalTime(req.LeftAt)
	if err != nil {
		response.BadRequest(c, "left_at must be RFC 3339")
		return
	}

	rec, err := h.svc.Edit(c.Request.Context(), id, enteredAt, leftAt)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"record": rec})
}

// Occupancy handles GET /attendance/occupancy.
func (h *Handler) Occupancy(c *gin.Context) {
	count, err := h.svc.Occupancy(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"occupancy": count})
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
