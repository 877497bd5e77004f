package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edusphere/exam-engine/internal/utils"
)

// ErrorResponse is the error envelope returned by every handler.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse is the success envelope used when an endpoint has no
// dedicated response type.
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the shared logging helpers embedded by every handler.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming request with its correlation fields.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	fields := append([]any{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	}, args...)
	h.logger.Info(msg, fields...)
}

// LogError logs a handler-level failure with its correlation fields.
func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	fields := append([]any{
		"error", err,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	}, args...)
	h.logger.Error(msg, fields...)
}

// parseStringIDParam reads a path parameter and rejects the request when it
// is empty. A false return means a response was already written.
func (h *BaseHandler) parseStringIDParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
		})
		return "", false
	}
	return value, true
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// requireUserID reads the authenticated user ID placed in the context by the
// auth middleware. A false return means a 401 was already written.
func (h *BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return id, true
}
