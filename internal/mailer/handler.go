package mailer

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/pkg/response"
)

// Handler exposes the delivery log to admins.
type Handler struct {
	logs   *LogRepository
	logger *zap.Logger
}

// NewHandler creates a mail log handler.
func NewHandler(logs *LogRepository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logs: logs, logger: logger}
}

// ListLogs handles GET /emails.
func (h *Handler) ListLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.logs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, "could not list email logs")
		return
	}
	response.OK(c, gin.H{"emails": logs})
}
