package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/grievancenet/backend/internal/infrastructure/auth"
	"github.com/grievancenet/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_EnrichesServerSpan(t *testing.T) {
	recorder := withSpanRecorder(t)
	jwtService := newTestJWTService()
	pair, userID := newTestTokenPair(t, jwtService, auth.RoleAdmin)

	router := gin.New()
	router.Use(RequestID(), Tracing("grievancenet-test"), SpanErrorMarker())
	router.GET("/api/v1/grievances/:id", JWTAuthMiddleware(jwtService), TracingAttributeInjector(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grievances/abc", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+pair.AccessToken)
	req.Header.Set(RequestIDHeader, "req-7")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Contains(t, span.Name(), "/api/v1/grievances/:id")

	v, ok := attrValue(span.Attributes(), telemetry.SpanAttrRequestID)
	require.True(t, ok)
	assert.Equal(t, "req-7", v.AsString())
	v, ok = attrValue(span.Attributes(), telemetry.SpanAttrUserID)
	require.True(t, ok)
	assert.Equal(t, userID.String(), v.AsString())
	v, ok = attrValue(span.Attributes(), "user.role")
	require.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, v.AsString())
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   codes.Code
	}{
		{"ok leaves span unset", http.StatusOK, codes.Unset},
		{"4xx is not a server fault", http.StatusNotFound, codes.Unset},
		{"5xx marks error", http.StatusBadGateway, codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := withSpanRecorder(t)
			router := gin.New()
			router.Use(Tracing("grievancenet-test"), SpanErrorMarker())
			router.GET("/test", func(c *gin.Context) { c.Status(tt.status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.code, spans[0].Status().Code)
		})
	}
}

func TestTracingWithConfig_SkipPaths(t *testing.T) {
	recorder := withSpanRecorder(t)
	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{ServiceName: "grievancenet-test", Enabled: true, SkipPaths: []string{"/health"}}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, recorder.Ended())
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	recorder := withSpanRecorder(t)
	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, recorder.Ended())
}
