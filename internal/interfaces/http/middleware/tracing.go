// Package middleware provides the gin middleware of the GrievanceNet API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grievancenet/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths are served without a span (health probes).
	SkipPaths []string
}

// Tracing returns otelgin middleware for the named service.
func Tracing(serviceName string) gin.HandlerFunc {
	return TracingWithConfig(TracingConfig{ServiceName: serviceName, Enabled: true})
}

// TracingWithConfig returns otelgin middleware. Spans are named
// "METHOD route", e.g. "PUT /api/v1/grievances/:id/status".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	var opts []otelgin.Option
	if len(skip) > 0 {
		opts = append(opts, otelgin.WithFilter(func(r *http.Request) bool {
			_, skipped := skip[r.URL.Path]
			return !skipped
		}))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// TracingAttributeInjector copies request id and caller identity onto the
// active span. Place it after the JWT middleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpan(c, span)
		}
		c.Next()
	}
}

func enrichSpan(c *gin.Context, span trace.Span) {
	if id := c.GetString(RequestIDKey); id != "" {
		span.SetAttributes(attribute.String(telemetry.SpanAttrRequestID, id))
	}
	if claims := GetJWTClaims(c); claims != nil {
		span.SetAttributes(
			attribute.String(telemetry.SpanAttrUserID, claims.UserID),
			attribute.String("user.role", claims.Role),
		)
	}
}

// SpanErrorMarker marks the server span as failed for 5xx responses and
// records the status of every 4xx/5xx. Place it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			msg := http.StatusText(status)
			if last := c.Errors.Last(); last != nil {
				msg = last.Error()
			}
			span.SetStatus(codes.Error, msg)
		}
	}
}
