package observability

import "go.opentelemetry.io/otel/metric/noop"

// NewNoopMetrics returns instruments that discard everything, for tests and
// tools that run without an exporter.
func NewNoopMetrics() *Metrics {
	return NewMetrics(noop.NewMeterProvider())
}
