package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{shared.CodeValidation, http.StatusBadRequest},
		{shared.CodeUnreachable, http.StatusBadGateway},
		{shared.CodeDeliveryFailed, http.StatusInternalServerError},
		{shared.CodeUpdateFailed, http.StatusInternalServerError},
		{shared.CodeUnauthorized, http.StatusUnauthorized},
		{shared.CodeInvalidCredentials, http.StatusUnauthorized},
		{shared.CodeForbidden, http.StatusForbidden},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeInvalidState, http.StatusUnprocessableEntity},
		{"INVALID_TRANSITION", http.StatusUnprocessableEntity},
		{shared.CodeConcurrencyConflict, http.StatusConflict},
		{shared.CodeDuplicateSubmission, http.StatusConflict},
		{shared.CodeAlreadyExists, http.StatusConflict},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewPaginatedResponse(t *testing.T) {
	page := shared.NewPaginated([]string{"a", "b"}, 5, 1, 2)
	resp := NewPaginatedResponse(&page)

	assert.True(t, resp.Success)
	assert.Equal(t, []string{"a", "b"}, resp.Data)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(5), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestNewPaginatedResponse_EmptyPageIsArray(t *testing.T) {
	page := shared.NewPaginated[string](nil, 0, 1, 20)
	body, err := json.Marshal(NewPaginatedResponse(&page))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"data":[]`)
}

func TestNewErrorResponse_JSON(t *testing.T) {
	body, err := json.Marshal(NewErrorResponseWithRequestID(shared.CodeNotFound, "Resource not found", "req-9"))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"success":false,"error":{"code":"NOT_FOUND","message":"Resource not found","request_id":"req-9"}}`,
		string(body))
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "", []ValidationDetail{
		{Field: "email", Message: "Invalid email format"},
	})
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 1)
}

func TestLegacyError_JSON(t *testing.T) {
	body, err := json.Marshal(LegacyError{Error: "Mail failed"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Mail failed"}`, string(body))
}
