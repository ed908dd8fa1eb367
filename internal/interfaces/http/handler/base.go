package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(logger.GinRequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.HeaderRequestID)
}

// getActor returns the explicit actor, falling back to the X-Actor header and then "api"
func getActor(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if actor := middleware.GetActor(c); actor != "" {
		return actor
	}
	return "api"
}

// parseID parses the path parameter name as a UUID
func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	code = dto.NormalizeErrorCode(code)
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InvalidID sends a 400 response for a malformed path identifier
func (h *BaseHandler) InvalidID(c *gin.Context, what string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Invalid "+what+" ID format")
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindError reports a JSON or query binding failure with field details
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// sentinelCodes maps integration sentinels that can escape the services to API codes
var sentinelCodes = []struct {
	err  error
	code string
}{
	{integration.ErrProductNotFound, dto.ErrCodeNotFound},
	{integration.ErrSourceRecordNotFound, dto.ErrCodeNotFound},
	{integration.ErrSourceAlreadyLinked, dto.ErrCodeConflict},
	{integration.ErrSyncTaskNotRetryable, dto.ErrCodeInvalidState},
	{integration.ErrSyncTaskInvalidStatus, dto.ErrCodeInvalidState},
	{integration.ErrInvalidPlatformCode, dto.ErrCodeInvalidInput},
	{integration.ErrInvalidRemoteID, dto.ErrCodeInvalidInput},
	{integration.ErrInvalidSyncFields, dto.ErrCodeInvalidInput},
	{integration.ErrPlatformNotConfigured, dto.ErrCodePlatformNotConfigured},
	{integration.ErrPlatformNotEnabled, dto.ErrCodePlatformNotConfigured},
	{integration.ErrPlatformUnavailable, dto.ErrCodeAdapterFailure},
	{integration.ErrPlatformRequestFailed, dto.ErrCodeAdapterFailure},
	{integration.ErrPlatformInvalidResponse, dto.ErrCodeAdapterFailure},
	{integration.ErrPlatformRateLimited, dto.ErrCodeAdapterFailure},
	{scheduler.ErrJobInProgress, dto.ErrCodeConflict},
	{context.DeadlineExceeded, dto.ErrCodeServiceUnavailable},
}

// HandleError converts domain and integration errors to HTTP responses.
// Anything unrecognized is logged and reported as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, domainErr.Code, domainErr.Message)
		return
	}

	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			h.ErrorWithCode(c, s.code, err.Error())
			return
		}
	}

	if errors.Is(err, context.Canceled) {
		// client went away; nobody reads the body
		c.Status(499)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled handler error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}
