package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/grievancenet/backend/internal/infrastructure/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MeterProvider wraps the SDK meter provider with lifecycle management
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider creates the meter provider and installs it globally.
// reader replaces the OTLP exporter when given (tests use a manual reader).
func NewMeterProvider(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger, reader sdkmetric.Reader) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled || !cfg.MetricsEnabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	if reader == nil {
		interval := cfg.MetricsInterval
		if interval <= 0 {
			interval = 60 * time.Second
		}
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	mp.provider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
	)
	return mp, nil
}

// Meter returns a named meter
func (mp *MeterProvider) Meter(name string) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return mp.provider.Meter(name)
}

// IsEnabled reports whether metrics are exported
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// Shutdown flushes pending metrics and stops the provider
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := mp.provider.Shutdown(ctx); err != nil {
		mp.logger.Error("Error shutting down meter provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Metric attribute keys
var (
	AttrOutcome    = attribute.Key("outcome")
	AttrFromStatus = attribute.Key("from_status")
	AttrToStatus   = attribute.Key("to_status")
	AttrForced     = attribute.Key("forced")
	AttrStream     = attribute.Key("stream")
	AttrAIUsed     = attribute.Key("ai_used")
)

// Submission outcomes
const (
	OutcomeSent      = "sent"
	OutcomeFailed    = "failed"
	OutcomeReplayed  = "replayed"
	OutcomeDeferred  = "deferred"
	OutcomeRejected  = "rejected"
	OutcomePromoted  = "promoted"
	OutcomeAbandoned = "abandoned"
)

// RelayDurationBuckets are histogram boundaries for SMTP relay time (seconds)
var RelayDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// GrievanceMetrics records the service's business instruments. A nil
// *GrievanceMetrics is valid and records nothing.
type GrievanceMetrics struct {
	submissions   metric.Int64Counter
	relayDuration metric.Float64Histogram
	statusChanges metric.Int64Counter
	drafts        metric.Int64Counter
	reconciled    metric.Int64Counter
	streams       metric.Int64UpDownCounter
}

// NewGrievanceMetrics creates the instruments on meter
func NewGrievanceMetrics(meter metric.Meter) (*GrievanceMetrics, error) {
	m := &GrievanceMetrics{}
	var err error

	if m.submissions, err = meter.Int64Counter("grievance.submissions",
		metric.WithDescription("Grievance submissions by outcome"),
		metric.WithUnit("{submission}")); err != nil {
		return nil, fmt.Errorf("failed to create submissions counter: %w", err)
	}
	if m.relayDuration, err = meter.Float64Histogram("grievance.relay.duration",
		metric.WithDescription("Time spent relaying grievance mail"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(RelayDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create relay histogram: %w", err)
	}
	if m.statusChanges, err = meter.Int64Counter("grievance.status_changes",
		metric.WithDescription("Administrator status changes"),
		metric.WithUnit("{change}")); err != nil {
		return nil, fmt.Errorf("failed to create status counter: %w", err)
	}
	if m.drafts, err = meter.Int64Counter("grievance.drafts",
		metric.WithDescription("Drafted complaint letters"),
		metric.WithUnit("{draft}")); err != nil {
		return nil, fmt.Errorf("failed to create drafts counter: %w", err)
	}
	if m.reconciled, err = meter.Int64Counter("grievance.reconciled",
		metric.WithDescription("Pending grievances resolved by the reconciler"),
		metric.WithUnit("{grievance}")); err != nil {
		return nil, fmt.Errorf("failed to create reconciled counter: %w", err)
	}
	if m.streams, err = meter.Int64UpDownCounter("grievance.streams.active",
		metric.WithDescription("Open live grievance streams"),
		metric.WithUnit("{stream}")); err != nil {
		return nil, fmt.Errorf("failed to create streams counter: %w", err)
	}
	return m, nil
}

// RecordSubmission counts one submission attempt
func (m *GrievanceMetrics) RecordSubmission(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// RecordRelay records how long a relay call took
func (m *GrievanceMetrics) RecordRelay(ctx context.Context, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSent
	if !ok {
		outcome = OutcomeFailed
	}
	m.relayDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
}

// RecordStatusChange counts an applied status change
func (m *GrievanceMetrics) RecordStatusChange(ctx context.Context, from, to string, forced bool) {
	if m == nil {
		return
	}
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(
		AttrFromStatus.String(from),
		AttrToStatus.String(to),
		AttrForced.Bool(forced),
	))
}

// RecordDraft counts a draft and whether the AI provider produced it
func (m *GrievanceMetrics) RecordDraft(ctx context.Context, aiUsed bool) {
	if m == nil {
		return
	}
	m.drafts.Add(ctx, 1, metric.WithAttributes(AttrAIUsed.Bool(aiUsed)))
}

// RecordReconciled counts grievances the reconciler promoted or abandoned
func (m *GrievanceMetrics) RecordReconciled(ctx context.Context, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconciled.Add(ctx, int64(n), metric.WithAttributes(AttrOutcome.String(outcome)))
}

// StreamOpened tracks a live stream of kind ("sse" or "ws")
func (m *GrievanceMetrics) StreamOpened(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.streams.Add(ctx, 1, metric.WithAttributes(AttrStream.String(kind)))
}

// StreamClosed is the counterpart of StreamOpened
func (m *GrievanceMetrics) StreamClosed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.streams.Add(ctx, -1, metric.WithAttributes(AttrStream.String(kind)))
}
