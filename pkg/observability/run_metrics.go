package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricEventsTotal      = "poolscope.events.total"
	metricIgnoredTotal     = "poolscope.ignored.events.total"
	metricBogusAllocsTotal = "poolscope.replay.bogus.allocs.total"
	metricStatementsTotal  = "poolscope.replay.statements.total"
	metricRunDuration      = "poolscope.run.duration.seconds"
	metricMaxLivePools     = "poolscope.pools.max.live"
	metricMaxPoolSize      = "poolscope.pools.max.size.bytes"
	metricLeakedPools      = "poolscope.pools.leaked"

	attrAction  = "action"
	attrKind    = "kind"
	attrCommand = "command"

	commandSummary = "summary"
	commandReplay  = "replay"
)

// RunMetrics holds instruments for summary and replay runs.
type RunMetrics struct {
	events       metric.Int64Counter
	ignored      metric.Int64Counter
	bogusAllocs  metric.Int64Counter
	statements   metric.Int64Counter
	duration     metric.Float64Histogram
	maxLivePools metric.Int64Gauge
	maxPoolSize  metric.Int64Gauge
	leakedPools  metric.Int64Gauge
}

// SummaryStats is what a summary run reports, decoupled from summary types.
type SummaryStats struct {
	Actions         map[string]int64
	IgnoredAllocs   int64
	IgnoredReleases int64
	MaxLivePools    int64
	MaxPoolSize     int64
	LeakedPools     int64
	Duration        time.Duration
}

// ReplayStats is what a replay run reports.
type ReplayStats struct {
	Target      string
	Statements  int64
	BogusAllocs int64
	Duration    time.Duration
}

// NewRunMetrics creates run instruments from the given meter.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	var (
		rm  RunMetrics
		err error
	)

	counters := []struct {
		name string
		desc string
		unit string
	}{
		{name: metricEventsTotal, desc: "Log events summarized by action", unit: "{event}"},
		{name: metricIgnoredTotal, desc: "Events ignored because their pool was gone", unit: "{event}"},
		{name: metricBogusAllocsTotal, desc: "Replayed allocations on dead pools", unit: "{alloc}"},
		{name: metricStatementsTotal, desc: "Replay statements emitted", unit: "{statement}"},
	}

	instruments := []*metric.Int64Counter{&rm.events, &rm.ignored, &rm.bogusAllocs, &rm.statements}

	for i, c := range counters {
		*instruments[i], err = mt.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
	}

	rm.duration, err = mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	rm.maxLivePools, err = mt.Int64Gauge(metricMaxLivePools,
		metric.WithDescription("Peak number of simultaneously live pools"),
		metric.WithUnit("{pool}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMaxLivePools, err)
	}

	rm.maxPoolSize, err = mt.Int64Gauge(metricMaxPoolSize,
		metric.WithDescription("Largest size reached by one pool"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMaxPoolSize, err)
	}

	rm.leakedPools, err = mt.Int64Gauge(metricLeakedPools,
		metric.WithDescription("Pools still live at end of log"),
		metric.WithUnit("{pool}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLeakedPools, err)
	}

	return &rm, nil
}

// RecordSummary records a completed summary run. Safe on a nil receiver.
func (rm *RunMetrics) RecordSummary(ctx context.Context, stats SummaryStats) {
	if rm == nil {
		return
	}

	for action, n := range stats.Actions {
		rm.events.Add(ctx, n, metric.WithAttributes(attribute.String(attrAction, action)))
	}

	rm.ignored.Add(ctx, stats.IgnoredAllocs, metric.WithAttributes(attribute.String(attrKind, "alloc")))
	rm.ignored.Add(ctx, stats.IgnoredReleases, metric.WithAttributes(attribute.String(attrKind, "release")))

	rm.maxLivePools.Record(ctx, stats.MaxLivePools)
	rm.maxPoolSize.Record(ctx, stats.MaxPoolSize)
	rm.leakedPools.Record(ctx, stats.LeakedPools)

	rm.duration.Record(ctx, stats.Duration.Seconds(),
		metric.WithAttributes(attribute.String(attrCommand, commandSummary)))
}

// RecordReplay records a completed replay run. Safe on a nil receiver.
func (rm *RunMetrics) RecordReplay(ctx context.Context, stats ReplayStats) {
	if rm == nil {
		return
	}

	target := metric.WithAttributes(attribute.String(attrTarget, stats.Target))

	rm.statements.Add(ctx, stats.Statements, target)
	rm.bogusAllocs.Add(ctx, stats.BogusAllocs, target)

	rm.duration.Record(ctx, stats.Duration.Seconds(),
		metric.WithAttributes(attribute.String(attrCommand, commandReplay)))
}
