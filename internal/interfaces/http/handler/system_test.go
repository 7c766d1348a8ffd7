package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSystemHandler_Health(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Database)
	assert.NotEmpty(t, resp.Time)
}

func TestSystemHandler_Health_DatabaseDown(t *testing.T) {
	h := NewSystemHandler(pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	}), "test", Features{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Health(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "error", resp.Database)
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler(nil, "1.2.3", Features{AIDrafting: true}, func() int { return 2 })

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/system/info", nil)
	h.GetSystemInfo(c)

	require.Equal(t, http.StatusOK, w.Code)
	var info SystemInfoResponse
	resp := decodeResponse(t, w, &info)
	assert.True(t, resp.Success)
	assert.Equal(t, "GrievanceNet API", info.Name)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, 2, info.LiveStreams)
	assert.True(t, info.Features.AIDrafting)
	assert.NotEmpty(t, info.GoVersion)
}
