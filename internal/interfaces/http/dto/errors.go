package dto

import (
	"net/http"

	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
)

// Transport level error codes. Domain codes come from shared.DomainError.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid    = "INVALID_TOKEN"
	ErrCodeTokenRevoked    = "TOKEN_REVOKED"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
	ErrCodeTooManyStreams  = "TOO_MANY_STREAMS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:           http.StatusBadRequest,
	shared.CodeUnreachable:          http.StatusBadGateway,
	shared.CodeDeliveryFailed:       http.StatusInternalServerError,
	shared.CodeUpdateFailed:         http.StatusInternalServerError,
	shared.CodeUnauthorized:         http.StatusUnauthorized,
	shared.CodeInvalidCredentials:   http.StatusUnauthorized,
	shared.CodeForbidden:            http.StatusForbidden,
	shared.CodeNotFound:             http.StatusNotFound,
	shared.CodeInvalidState:         http.StatusUnprocessableEntity,
	grievance.CodeInvalidTransition: http.StatusUnprocessableEntity,
	shared.CodeConcurrencyConflict:  http.StatusConflict,
	shared.CodeDuplicateSubmission:  http.StatusConflict,
	shared.CodeAlreadyExists:        http.StatusConflict,

	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeTokenRevoked:    http.StatusUnauthorized,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
	ErrCodeTooManyStreams:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status for code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
