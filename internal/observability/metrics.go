// Package observability provides the OpenTelemetry metric instruments of the
// server and the worker and exposes them to Prometheus.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterName is the instrumentation scope of every instrument below.
const MeterName = "github.com/GraphaRNA-web/GraphaRNA-web"

// Outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
	OutcomeSkipped   = "skipped"

	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
	AttemptTimedOut  = "timed_out"
)

// InitMetrics installs a meter provider backed by a Prometheus exporter.
// It returns the handler for the /metrics endpoint and a shutdown function.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// Metrics holds the orchestration and submission instruments.
type Metrics struct {
	jobDuration     metric.Float64Histogram
	jobCount        metric.Int64Counter
	attemptCount    metric.Int64Counter
	renderFailures  metric.Int64Counter
	validationCount metric.Int64Counter
	expiredJobs     metric.Int64Counter
}

// NewMetrics creates the instruments on mp. Instrument creation only fails
// for invalid names, in which case the bare instrument is used.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}
	var err error

	m.jobDuration, err = meter.Float64Histogram(
		"grapharna.job.duration",
		metric.WithDescription("Wall time of one orchestration run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		m.jobDuration, _ = meter.Float64Histogram("grapharna.job.duration")
	}

	m.jobCount, err = meter.Int64Counter(
		"grapharna.job.count",
		metric.WithDescription("Orchestration runs by outcome"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.jobCount, _ = meter.Int64Counter("grapharna.job.count")
	}

	m.attemptCount, err = meter.Int64Counter(
		"grapharna.engine.attempt.count",
		metric.WithDescription("Engine attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		m.attemptCount, _ = meter.Int64Counter("grapharna.engine.attempt.count")
	}

	m.renderFailures, err = meter.Int64Counter(
		"grapharna.render.failure.count",
		metric.WithDescription("Rendering calls that did not produce a file"),
		metric.WithUnit("{render}"),
	)
	if err != nil {
		m.renderFailures, _ = meter.Int64Counter("grapharna.render.failure.count")
	}

	m.validationCount, err = meter.Int64Counter(
		"grapharna.validation.count",
		metric.WithDescription("Structure validations by outcome"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		m.validationCount, _ = meter.Int64Counter("grapharna.validation.count")
	}

	m.expiredJobs, err = meter.Int64Counter(
		"grapharna.retention.deleted",
		metric.WithDescription("Expired jobs removed by the retention sweeper"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.expiredJobs, _ = meter.Int64Counter("grapharna.retention.deleted")
	}

	return m
}

// RecordJob records a finished orchestration run.
func (m *Metrics) RecordJob(ctx context.Context, outcome string, conformations int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("conformations", conformations),
	)
	m.jobDuration.Record(ctx, d.Seconds(), attrs)
	m.jobCount.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordAttempt(ctx context.Context, result string) {
	m.attemptCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordRenderFailure(ctx context.Context, kind string) {
	m.renderFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordValidation(ctx context.Context, outcome string) {
	m.validationCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordExpired(ctx context.Context, n int) {
	m.expiredJobs.Add(ctx, int64(n))
}
