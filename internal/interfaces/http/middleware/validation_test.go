package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/grievancenet/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusRequest struct {
	Status string `json:"status" binding:"required,grievance_status"`
}

type locationRequest struct {
	Latitude  string `form:"latitude" binding:"latitude"`
	Longitude string `form:"longitude" binding:"longitude"`
}

func newBindingValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, registerValidations(v))
	return v
}

func TestSetupValidator(t *testing.T) {
	require.NoError(t, SetupValidator())
}

func TestGrievanceStatusValidation(t *testing.T) {
	v := newBindingValidator(t)

	tests := []struct {
		status string
		valid  bool
	}{
		{"Pending", true},
		{"In Progress", true},
		{"in_progress", true},
		{"resolved", true},
		{"Closed", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			err := v.Struct(statusRequest{Status: tt.status})
			assert.Equal(t, tt.valid, err == nil, "status %q", tt.status)
		})
	}
}

func TestCoordinateValidation(t *testing.T) {
	v := newBindingValidator(t)

	assert.NoError(t, v.Struct(locationRequest{}))
	assert.NoError(t, v.Struct(locationRequest{Latitude: "12.9716", Longitude: "77.5946"}))
	assert.NoError(t, v.Struct(locationRequest{Latitude: "-90", Longitude: "180"}))
	assert.Error(t, v.Struct(locationRequest{Latitude: "90.0001", Longitude: "0"}))
	assert.Error(t, v.Struct(locationRequest{Latitude: "0", Longitude: "-181"}))
	assert.Error(t, v.Struct(locationRequest{Latitude: "north", Longitude: "0"}))
}

func TestHandleValidationError(t *testing.T) {
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.Use(RequestID())
	router.PUT("/status", func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPut, "/status", strings.NewReader(`{"status":"Closed"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "status", resp.Error.Details[0].Field)
	assert.Contains(t, resp.Error.Details[0].Message, "In Progress")
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := FormatValidationErrors(assert.AnError, "")
	require.NotNil(t, resp.Error)
	assert.Empty(t, resp.Error.Details)
}
