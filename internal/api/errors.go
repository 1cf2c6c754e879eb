package api

import (
	"github.com/gin-gonic/gin"

	"github.com/chatvault/chatvault/internal/metrics"
	"github.com/chatvault/chatvault/internal/middleware"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternalError  = "internal_error"
)

// errorResponse is the JSON body for every API error.
type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// respondError writes a standardized JSON error response and aborts the
// request. The request ID is picked up from the Gin context when the
// request ID middleware has set one.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()

	resp := errorResponse{Code: code, Message: message}

	if rid, exists := c.Get(middleware.RequestIDKey); exists {
		if s, ok := rid.(string); ok {
			resp.RequestID = s
		}
	}

	c.AbortWithStatusJSON(status, resp)
}
