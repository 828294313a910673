package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/reop/addressfinder/internal/logger"
)

var meter metric.Meter

// HTTP metrics
var (
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
)

// Finder metrics
var (
	ReconcileOutcomes metric.Int64Counter
	SearchResults     metric.Int64Histogram
)

// InitMeter initializes OpenTelemetry meter with OTLP HTTP exporter
func InitMeter(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	log := logger.GetLogger("telemetry")
	if endpoint == "" {
		log.Info("SIGNOZ_ENDPOINT not set, metrics disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(15*time.Second),
			),
		),
	)

	otel.SetMeterProvider(mp)
	meter = mp.Meter(serviceName)

	if err := initHTTPMetrics(); err != nil {
		return nil, err
	}
	if err := initFinderMetrics(); err != nil {
		return nil, err
	}

	log.Infof("OpenTelemetry metrics initialized with endpoint: %s", endpoint)

	return mp.Shutdown, nil
}

func initHTTPMetrics() error {
	var err error

	HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return err
	}

	HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	return err
}

func initFinderMetrics() error {
	var err error

	ReconcileOutcomes, err = meter.Int64Counter(
		"finder_reconcile_outcomes_total",
		metric.WithDescription("Selection reconciliation outcomes"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	SearchResults, err = meter.Int64Histogram(
		"finder_search_results",
		metric.WithDescription("Number of candidates returned per search"),
		metric.WithUnit("{candidate}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 10),
	)
	return err
}

// RecordReconcile counts one reconciliation outcome. No-op until InitMeter.
func RecordReconcile(ctx context.Context, intentName, outcome string) {
	if ReconcileOutcomes == nil {
		return
	}
	ReconcileOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent", intentName),
		attribute.String("outcome", outcome),
	))
}

// RecordSearch records the result count of one search. No-op until InitMeter.
func RecordSearch(ctx context.Context, intentName, mode string, count int) {
	if SearchResults == nil {
		return
	}
	SearchResults.Record(ctx, int64(count), metric.WithAttributes(
		attribute.String("intent", intentName),
		attribute.String("mode", mode),
	))
}

// Meter returns the global meter
func Meter() metric.Meter {
	return meter
}
