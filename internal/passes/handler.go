package passes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/pkg/response"
)

// IssueRequest is the body for POST /passes. PassTypeID omitted selects
// the most recently activated issuable type.
type IssueRequest struct {
	BadgeCode  string `json:"badge_code" binding:"required"`
	PassTypeID string `json:"pass_type_id"`
}

// CreateTypeRequest is the body for POST /passes/types. ValidFrom is
// RFC 3339; omitted means issuable immediately.
type CreateTypeRequest struct {
	Name      string `json:"name" binding:"required"`
	ValidFrom string `json:"valid_from"`
}

// Handler handles pass HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a pass handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListTypes handles GET /passes/types.
func (h *Handler) ListTypes(c *gin.Context) {
	types, err := h.svc.IssuableTypes(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"pass_types": types})
}

// Issue handles POST /passes.
func (h *Handler) Issue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	typeID := uuid.Nil
	if req.PassTypeID != "" {
		id, err := uuid.Parse(req.PassTypeID)
		if err != nil {
			response.BadRequest(c, "invalid pass_type_id")
			return
		}
		typeID = id
	}

	result, err := h.svc.Issue(c.Request.Context(), req.BadgeCode, typeID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, result)
}

// CreateType handles POST /passes/types.
func (h *Handler) CreateType(c *gin.Context) {
	var req CreateTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	validFrom := time.Now()
	if req.ValidFrom != "" {
		t, err := time.Parse(time.RFC3339, req.ValidFrom)
		if err != nil {
			response.BadRequest(c, "valid_from must be RFC 3339")
			return
		}
		validFrom = t
	}

	passType, err := h.svc.CreateType(c.Request.Context(), req.Name, validFrom)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, gin.H{"pass_type": passType})
}
