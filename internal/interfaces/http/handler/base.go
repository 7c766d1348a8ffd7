// Package handler holds the gin handlers of the GrievanceNet API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/logger"
	"github.com/grievancenet/backend/internal/interfaces/http/dto"
	"github.com/grievancenet/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

// getUserID reads the caller's id from the JWT claims
func getUserID(c *gin.Context) (uuid.UUID, error) {
	raw := middleware.GetJWTUserID(c)
	if raw == "" {
		return uuid.Nil, shared.ErrUnauthorized
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.ErrUnauthorized
	}
	return id, nil
}

// getActor builds the service-level caller from the JWT claims
func getActor(c *gin.Context) (grievanceapp.Actor, error) {
	id, err := getUserID(c)
	if err != nil {
		return grievanceapp.Actor{}, err
	}
	return grievanceapp.Actor{UserID: id, Admin: middleware.IsJWTAdmin(c)}, nil
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// HandleBindError answers a failed ShouldBind: field errors become a
// VALIDATION_ERROR listing each field, anything else a 400.
func (h *BaseHandler) HandleBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.BadRequest(c, "Invalid request body")
}

// HandleError converts err to an envelope response. Domain errors keep their
// code and message; anything else is logged and reported as a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	log := logger.L(c.Request.Context())

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status := dto.GetHTTPStatus(domainErr.Code)
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", zap.String("code", domainErr.Code), zap.Error(err))
		} else {
			log.Debug("Request rejected", zap.String("code", domainErr.Code), zap.String("message", domainErr.Message))
		}
		resp := dto.NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, getRequestID(c))
		var delivery *grievanceapp.DeliveryError
		if errors.As(err, &delivery) {
			resp.Error.State = delivery.State.String()
		}
		c.JSON(status, resp)
		return
	}

	log.Error("Unexpected error", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// LegacyError answers the unversioned routes with a bare {"error": message}
func (h *BaseHandler) LegacyError(c *gin.Context, status int, message string) {
	c.JSON(status, dto.LegacyError{Error: message})
}

// pathUUID parses the named path parameter
func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, shared.NewValidationError("Invalid " + name)
	}
	return id, nil
}
