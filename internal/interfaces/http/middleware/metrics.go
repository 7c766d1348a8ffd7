package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// HTTPDurationBuckets are histogram boundaries for request latency (seconds).
// Submissions relay mail synchronously, so the tail reaches 30s.
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

type httpMetrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestSize     metric.Int64Histogram
	responseSize    metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var err error

	if m.requestTotal, err = meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(HTTPDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	if m.requestSize, err = meter.Int64Histogram("http.server.request.body.size",
		metric.WithDescription("HTTP request body size"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create request size histogram: %w", err)
	}
	if m.responseSize, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create response size histogram: %w", err)
	}
	if m.activeRequests, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}
	return m, nil
}

// HTTPMetrics records request count, latency and body sizes on meter.
// Attributes use the route pattern, never the raw path. A nil meter yields
// a pass-through middleware.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }, nil
	}
	m, err := newHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		m.activeRequests.Add(ctx, 1)
		c.Next()
		m.activeRequests.Add(ctx, -1)

		base := metric.WithAttributes(
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.HTTPRoute(routePattern(c)),
		)
		m.requestTotal.Add(ctx, 1, base,
			metric.WithAttributes(semconv.HTTPResponseStatusCode(c.Writer.Status()),
				attribute.Bool("user.admin", IsJWTAdmin(c))))
		m.requestDuration.Record(ctx, time.Since(start).Seconds(), base)
		if n := c.Request.ContentLength; n > 0 {
			m.requestSize.Record(ctx, n, base)
		}
		if n := c.Writer.Size(); n > 0 {
			m.responseSize.Record(ctx, int64(n), base)
		}
	}, nil
}

func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

// StatusGroup buckets a status code into its class, e.g. "4xx"
func StatusGroup(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}
