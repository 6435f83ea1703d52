// Package observe provides observability for the world server: OpenTelemetry
// metrics, tracing, and HTTP middleware tying them together.
//
// Metrics are recorded through the OTel Metrics API and exported through a
// Prometheus bridge (see [InitProvider]), so the standard /metrics endpoint
// keeps working. A package-level default [Metrics] instance
// ([DefaultMetrics]) covers the common case; tests should build their own
// via [NewMetrics] with a private [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all ludens metrics.
const meterName = "github.com/veilgate/ludens"

// Metrics holds the application's metric instruments. The underlying OTel
// types are safe for concurrent use.
type Metrics struct {
	// TickDuration tracks how long one world tick takes. At 60 Hz anything
	// over ~16ms means the loop is falling behind.
	TickDuration metric.Float64Histogram

	// DialogDuration tracks end-to-end NPC dialog generation latency,
	// including tool resolution.
	DialogDuration metric.Float64Histogram

	// DecisionDuration tracks NPC decision latency.
	DecisionDuration metric.Float64Histogram

	// ToolDuration tracks MCP tool execution latency.
	ToolDuration metric.Float64Histogram

	// DialogRequests counts dialog generations. Attributes:
	//   attribute.String("npc_id", ...), attribute.String("status", ...)
	DialogRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// WorldEvents counts events on the engine bus by name.
	WorldEvents metric.Int64Counter

	// ActiveNPCs tracks registered NPCs.
	ActiveNPCs metric.Int64UpDownCounter

	// ConnectedClients tracks live websocket sessions.
	ConnectedClients metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// tickBuckets covers a 60 Hz loop: the interesting range is well under a
// second.
var tickBuckets = []float64{
	0.001, 0.002, 0.005, 0.01, 0.016, 0.033, 0.05, 0.1, 0.25, 1,
}

// aiBuckets covers LLM round trips, from cached-fast to deep reasoning.
var aiBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TickDuration, err = m.Float64Histogram("ludens.tick.duration",
		metric.WithDescription("Duration of one world tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DialogDuration, err = m.Float64Histogram("ludens.dialog.duration",
		metric.WithDescription("End-to-end NPC dialog generation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(aiBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecisionDuration, err = m.Float64Histogram("ludens.decision.duration",
		metric.WithDescription("NPC decision latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(aiBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("ludens.tool.duration",
		metric.WithDescription("MCP tool execution latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(aiBuckets...),
	); err != nil {
		return nil, err
	}

	if met.DialogRequests, err = m.Int64Counter("ludens.dialog.requests",
		metric.WithDescription("Dialog generations by NPC and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("ludens.tool.calls",
		metric.WithDescription("Tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.WorldEvents, err = m.Int64Counter("ludens.world.events",
		metric.WithDescription("Engine bus events by name."),
	); err != nil {
		return nil, err
	}

	if met.ActiveNPCs, err = m.Int64UpDownCounter("ludens.active_npcs",
		metric.WithDescription("Registered NPCs."),
	); err != nil {
		return nil, err
	}
	if met.ConnectedClients, err = m.Int64UpDownCounter("ludens.connected_clients",
		metric.WithDescription("Live websocket client sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("ludens.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from the global meter provider. Panics if instrument creation fails,
// which cannot happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordDialog records one dialog generation with its duration.
func (m *Metrics) RecordDialog(ctx context.Context, npcID, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("npc_id", npcID),
		attribute.String("status", status),
	)
	m.DialogRequests.Add(ctx, 1, attrs)
	m.DialogDuration.Record(ctx, seconds, attrs)
}

// RecordToolCall records one tool invocation with its duration.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, seconds, attrs)
}

// RecordWorldEvent counts one engine bus event.
func (m *Metrics) RecordWorldEvent(ctx context.Context, name string) {
	m.WorldEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
}
