package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(l *zap.Logger, skip ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-123")
		c.Next()
	})
	r.Use(GinMiddleware(l, skip...))
	return r
}

func TestGinMiddleware_LogsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusBadRequest, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			r := newTestRouter(zap.New(core))
			r.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			entries := recorded.FilterMessage("HTTP Request").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
		})
	}
}

func TestGinMiddleware_AttachesRequestContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestRouter(zap.New(core))
	r.GET("/x", func(c *gin.Context) {
		assert.Equal(t, "req-123", GetRequestID(c.Request.Context()))
		FromContext(c.Request.Context()).Info("inside handler")
		GetGinLogger(c).Info("via gin")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, 1, recorded.FilterMessage("inside handler").Len())
	assert.Equal(t, 1, recorded.FilterMessage("via gin").Len())
}

func TestGinMiddleware_SkipsPaths(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestRouter(zap.New(core), "/health")
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 0, recorded.FilterMessage("HTTP Request").Len())
}

func TestGinMiddleware_RedactsCredentialsInQuery(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestRouter(zap.New(core))
	r.GET("/stream", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/stream?access_token=eyJSECRET.jwt.sig&status=pending", nil))

	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	query, ok := entries[0].ContextMap()["query"].(string)
	require.True(t, ok)
	assert.NotContains(t, query, "eyJSECRET")
	assert.Contains(t, query, "access_token=REDACTED")
	assert.Contains(t, query, "status=pending")
}

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"page=2&status=pending", "page=2&status=pending"},
		{"access_token=abc", "access_token=REDACTED"},
		{"Token=abc&page=1", "Token=REDACTED&page=1"},
		{"refresh_token=a&refresh_token=b", "refresh_token=REDACTED&refresh_token=REDACTED"},
		{"access_token=%zz", "REDACTED"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, redactQuery(tt.raw))
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	assert.Equal(t, 1, recorded.FilterMessage("Panic recovered").Len())
}

func TestGetGinLogger_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}
