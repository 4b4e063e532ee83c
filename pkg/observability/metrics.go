package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricToolCallsTotal  = "poolscope.mcp.tool.calls.total"
	metricToolDuration    = "poolscope.mcp.tool.duration.seconds"
	metricToolErrorsTotal = "poolscope.mcp.tool.errors.total"
	metricToolInflight    = "poolscope.mcp.tool.inflight"
	metricToolInputBytes  = "poolscope.mcp.tool.input.bytes"

	attrTool   = "tool"
	attrStatus = "status"
	attrTarget = "target"
	attrFormat = "format"
	attrSource = "source"
	attrReason = "reason"
)

// Tool call statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 120s.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// inputBucketBoundaries covers inline logs from 1 KiB to the 8 MiB cap.
var inputBucketBoundaries = []float64{1 << 10, 16 << 10, 128 << 10, 1 << 20, 4 << 20, 8 << 20}

// ToolCall describes one finished MCP tool call. Empty label fields are
// left off the recorded attributes.
type ToolCall struct {
	Tool string
	// Target is the replay target, Format the summary format.
	Target string
	Format string
	// Source is "inline" or "path" for calls that read a log.
	Source string
	// InputBytes is the size of an inline log.
	InputBytes int
	// Reason classifies a failed call (input, parse, unknown_pool, ...).
	Reason   string
	Duration time.Duration
}

// Failed reports whether the call ended in an error.
func (c ToolCall) Failed() bool {
	return c.Reason != ""
}

func (c ToolCall) labels() []attribute.KeyValue {
	status := StatusOK
	if c.Failed() {
		status = StatusError
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, c.Tool),
		attribute.String(attrStatus, status),
	}

	for _, kv := range []struct{ key, value string }{
		{attrTarget, c.Target},
		{attrFormat, c.Format},
		{attrSource, c.Source},
	} {
		if kv.value != "" {
			attrs = append(attrs, attribute.String(kv.key, kv.value))
		}
	}

	return attrs
}

// ToolMetrics instruments MCP tool calls: call rate, failures by reason,
// latency, in-flight calls and inline input size.
type ToolMetrics struct {
	calls      metric.Int64Counter
	duration   metric.Float64Histogram
	errors     metric.Int64Counter
	inflight   metric.Int64UpDownCounter
	inputBytes metric.Int64Histogram
}

// NewToolMetrics creates the tool call instruments from mt.
func NewToolMetrics(mt metric.Meter) (*ToolMetrics, error) {
	calls, err := mt.Int64Counter(metricToolCallsTotal,
		metric.WithDescription("MCP tool calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolCallsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricToolDuration,
		metric.WithDescription("MCP tool call duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolDuration, err)
	}

	errs, err := mt.Int64Counter(metricToolErrorsTotal,
		metric.WithDescription("Failed MCP tool calls by reason"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricToolInflight,
		metric.WithDescription("MCP tool calls in progress"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolInflight, err)
	}

	inputBytes, err := mt.Int64Histogram(metricToolInputBytes,
		metric.WithDescription("Size of inline allocation logs passed to MCP tools"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(inputBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolInputBytes, err)
	}

	return &ToolMetrics{
		calls:      calls,
		duration:   duration,
		errors:     errs,
		inflight:   inflight,
		inputBytes: inputBytes,
	}, nil
}

// RecordCall records a finished call.
func (tm *ToolMetrics) RecordCall(ctx context.Context, call ToolCall) {
	attrs := metric.WithAttributes(call.labels()...)

	tm.calls.Add(ctx, 1, attrs)
	tm.duration.Record(ctx, call.Duration.Seconds(), metric.WithAttributes(
		attribute.String(attrTool, call.Tool),
	))

	if call.Failed() {
		tm.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrTool, call.Tool),
			attribute.String(attrReason, call.Reason),
		))
	}

	if call.InputBytes > 0 {
		tm.inputBytes.Record(ctx, int64(call.InputBytes), metric.WithAttributes(
			attribute.String(attrTool, call.Tool),
		))
	}
}

// TrackInflight counts a call as in progress until the returned func runs.
func (tm *ToolMetrics) TrackInflight(ctx context.Context, tool string) func() {
	attrs := metric.WithAttributes(attribute.String(attrTool, tool))
	tm.inflight.Add(ctx, 1, attrs)

	return func() {
		tm.inflight.Add(ctx, -1, attrs)
	}
}
