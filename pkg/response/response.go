package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jorgeteixe/hackackathon/internal/errs"
)

// Body is the standard API response envelope.
type Body struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// OKWithWarnings sends a 200 with data and non-fatal warnings.
func OKWithWarnings(c *gin.Context, data interface{}, warnings []string) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data, Warnings: warnings})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// FromError maps the error taxonomy to HTTP statuses. Unrecognized
// errors become 500 with a generic message so internals never leak.
func FromError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrTokenInvalid):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrTokenExpired):
		status = http.StatusGone
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrPreconditionFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNoActivePassType):
		status = http.StatusServiceUnavailable
	default:
		c.JSON(http.StatusInternalServerError, Body{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Body{Success: false, Error: err.Error()})
}
