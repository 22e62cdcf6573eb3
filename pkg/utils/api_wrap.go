package utils

import (
	"errors"
	"github.com/gin-gonic/gin"
	"log"
	"net/http"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func traceID(c *gin.Context) string {
	if v, ok := c.Get("trace_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: traceID(c),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceID(c),
	})
}

// HandleServiceError maps the service error taxonomy to HTTP codes:
// fix-your-input (400/404), wrong credential (401/403), try-again-later (502)
// and everything else 500.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrEmailAlreadyExists):
		RespondError(c, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, ErrForbidden):
		RespondError(c, http.StatusForbidden, "Forbidden: insufficient permissions")
	case errors.Is(err, ErrPlanNotFound):
		RespondError(c, http.StatusNotFound, "Plan not found")
	case errors.Is(err, ErrOrganizationNotFound):
		RespondError(c, http.StatusNotFound, "Organization not found")
	case errors.Is(err, ErrSubscriptionNotFound):
		RespondError(c, http.StatusNotFound, "No active subscription")
	case errors.Is(err, ErrUpstream):
		RespondError(c, http.StatusBadGateway, "Billing provider unavailable, retry later")
	case errors.Is(err, ErrDatabaseError):
		log.Printf("Database error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	default:
		log.Printf("Unknown error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
