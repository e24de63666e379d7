package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "go-crowd-planner"

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	CrowdEstimatesTotal      metric.Int64Counter
	PredictorDurationSeconds metric.Float64Histogram
	ReplansTotal             metric.Int64Counter
	PushPublishFailuresTotal metric.Int64Counter
	DbQueryErrorsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once from the global MeterProvider.
// Call it after the provider is installed so the instruments reach the exporter.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		var err error
		m := &AppMetrics{}

		m.CrowdEstimatesTotal, err = meter.Int64Counter(
			"crowd_estimates_total",
			metric.WithDescription("Crowd estimates produced, by source"),
			metric.WithUnit("{estimate}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create crowd_estimates_total: %v", err)
		}

		m.PredictorDurationSeconds, err = meter.Float64Histogram(
			"crowd_predictor_duration_seconds",
			metric.WithDescription("Latency of calls to the crowd prediction service"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create crowd_predictor_duration_seconds: %v", err)
		}

		m.ReplansTotal, err = meter.Int64Counter(
			"itinerary_replans_total",
			metric.WithDescription("Itinerary re-plans completed"),
			metric.WithUnit("{replan}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_replans_total: %v", err)
		}

		m.PushPublishFailuresTotal, err = meter.Int64Counter(
			"push_publish_failures_total",
			metric.WithDescription("Push events that could not be published"),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create push_publish_failures_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the instruments, creating them against the current provider on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
