package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSlowQueryThreshold marks a query span as slow
const DefaultSlowQueryThreshold = 200 * time.Millisecond

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db, without query variables so
// grievance text never lands in span attributes. Slow statements get a
// db.slow_query attribute.
func RegisterDBTracing(db *gorm.DB, dbSystem string, slowThreshold time.Duration, logger *zap.Logger) error {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowQueryThreshold
	}
	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(dbSystem),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateQuery(tx, slowThreshold) }

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("telemetry:before_create", before); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("telemetry:after_create", after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("telemetry:before_query", before); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("telemetry:after_query", after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("telemetry:before_update", before); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("telemetry:after_update", after); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("telemetry:before_row", before); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("telemetry:after_row", after); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", dbSystem),
		zap.Duration("slow_query_threshold", slowThreshold))
	return nil
}

func annotateQuery(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
