// Package telemetry exposes OpenTelemetry counters for routing and feed-matrix
// degradation. Instruments come from the global meter provider, so they are
// no-ops until the process installs one.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MaherFSF/Yemenactr-sub008/routing"

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	routeCalls metric.Int64Counter
	degraded   metric.Int64Counter
	persisted  metric.Int64Counter
}

// New creates counters on the global meter provider.
func New() (*Metrics, error) {
	return NewWithMeter(otel.Meter(meterName))
}

// NewWithMeter creates counters on the given meter.
func NewWithMeter(meter metric.Meter) (*Metrics, error) {
	routeCalls, err := meter.Int64Counter("routing.calls",
		metric.WithDescription("Artifact routing calls"))
	if err != nil {
		return nil, err
	}
	degraded, err := meter.Int64Counter("routing.degraded",
		metric.WithDescription("Operations that returned an empty or failed result"))
	if err != nil {
		return nil, err
	}
	persisted, err := meter.Int64Counter("routing.edges_persisted",
		metric.WithDescription("Page route edges upserted"))
	if err != nil {
		return nil, err
	}
	return &Metrics{routeCalls: routeCalls, degraded: degraded, persisted: persisted}, nil
}

// RouteCall records one routing call and the number of pages it produced.
func (m *Metrics) RouteCall(ctx context.Context, artifactType string, pages int) {
	if m == nil {
		return
	}
	m.routeCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("artifact_type", artifactType),
		attribute.Bool("empty", pages == 0),
	))
}

// Degraded records an operation that did not return data. kind is
// "unavailable", "not_found", "invalid_input" or "dropped".
func (m *Metrics) Degraded(ctx context.Context, op, kind string) {
	if m == nil {
		return
	}
	m.degraded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("kind", kind),
	))
}

// Persisted records upserted page route edges.
func (m *Metrics) Persisted(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.persisted.Add(ctx, int64(n))
}
