package tracer

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	PlanRequestsTotal        metric.Int64Counter
	PlanDurationSeconds      metric.Float64Histogram
	ProviderCallsTotal       metric.Int64Counter
	ProviderCallErrorsTotal  metric.Int64Counter
	ProviderDurationSeconds  metric.Float64Histogram
	StructuredPlanParseTotal metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using
// the meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("wayfarer-api")
		var err error
		m := &AppMetrics{}

		m.PlanRequestsTotal, err = meter.Int64Counter(
			"plan_requests_total",
			metric.WithDescription("Total number of plan generations attempted"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create plan_requests_total: %v", err)
		}

		m.PlanDurationSeconds, err = meter.Float64Histogram(
			"plan_duration_seconds",
			metric.WithDescription("End-to-end plan generation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create plan_duration_seconds: %v", err)
		}

		m.ProviderCallsTotal, err = meter.Int64Counter(
			"provider_calls_total",
			metric.WithDescription("Outbound provider calls issued"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create provider_calls_total: %v", err)
		}

		m.ProviderCallErrorsTotal, err = meter.Int64Counter(
			"provider_call_errors_total",
			metric.WithDescription("Outbound provider calls that failed"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create provider_call_errors_total: %v", err)
		}

		m.ProviderDurationSeconds, err = meter.Float64Histogram(
			"provider_duration_seconds",
			metric.WithDescription("Outbound provider call duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create provider_duration_seconds: %v", err)
		}

		m.StructuredPlanParseTotal, err = meter.Int64Counter(
			"structured_plan_parse_total",
			metric.WithDescription("Narratives parsed, labelled by whether a structured plan was found"),
			metric.WithUnit("{response}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create structured_plan_parse_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call tracer.InitAppMetrics() first.")
	}
	return appMetrics
}
