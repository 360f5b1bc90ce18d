package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "nutri-b2b/admission"

var (
	metricsOnce sync.Once

	admissionCounter  metric.Int64Counter
	repoOpCounter     metric.Int64Counter
	rateLimitCounter  metric.Int64Counter
	landingCounter    metric.Int64Counter
	idempotencyEvents metric.Int64Counter
)

func initMetrics() {
	meter := otel.GetMeterProvider().Meter(meterName)
	admissionCounter, _ = meter.Int64Counter("admission_events_total",
		metric.WithDescription("Authentication attempts by scheme and outcome"))
	repoOpCounter, _ = meter.Int64Counter("repository_operations_total",
		metric.WithDescription("Repository operations by entity, operation and outcome"))
	rateLimitCounter, _ = meter.Int64Counter("rate_limit_decisions_total",
		metric.WithDescription("Rate limit decisions by scope and outcome"))
	landingCounter, _ = meter.Int64Counter("bronze_landing_records_total",
		metric.WithDescription("Bronze landing records by source and outcome"))
	idempotencyEvents, _ = meter.Int64Counter("idempotency_events_total",
		metric.WithDescription("Idempotency guard decisions by state"))
}

// RecordAdmissionEvent counts one authentication attempt.
// scheme is hmac/api_key/bearer/bypass, outcome is success or the error code.
func RecordAdmissionEvent(ctx context.Context, scheme, outcome string) {
	metricsOnce.Do(initMetrics)
	admissionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scheme", scheme),
		attribute.String("outcome", outcome),
	))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	metricsOnce.Do(initMetrics)
	repoOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	metricsOnce.Do(initMetrics)
	rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func RecordLandingOutcome(ctx context.Context, source, outcome string, count int64) {
	metricsOnce.Do(initMetrics)
	if count <= 0 {
		return
	}
	landingCounter.Add(ctx, count, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

func RecordIdempotencyEvent(ctx context.Context, state string) {
	metricsOnce.Do(initMetrics)
	idempotencyEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state),
	))
}
