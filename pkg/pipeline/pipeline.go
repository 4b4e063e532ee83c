// Package pipeline runs the parse, summarize and replay stages with tracing,
// metrics and logging around each one.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
	"github.com/Sumatoshi-tech/poolscope/pkg/replay"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

// Span names.
const (
	SpanParse     = "poolscope.parse"
	SpanSummarize = "poolscope.summarize"
	SpanReplay    = "poolscope.replay"
)

// Deps holds injectable dependencies. Zero-value fields disable the concern.
type Deps struct {
	Tracer  trace.Tracer
	Logger  *slog.Logger
	Metrics *observability.RunMetrics
}

// Pipeline is safe for concurrent use when its dependencies are.
type Pipeline struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics *observability.RunMetrics
}

// New creates a pipeline.
func New(deps Deps) *Pipeline {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("poolscope")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{tracer: tracer, logger: logger, metrics: deps.Metrics}
}

// Load reads and parses the log at path. Compressed logs are detected by
// alloclog.Open.
func (p *Pipeline) Load(ctx context.Context, path string) ([]alloclog.Event, error) {
	ctx, span := p.tracer.Start(ctx, SpanParse, trace.WithAttributes(attribute.String("log.path", path)))
	defer span.End()

	events, err := alloclog.Load(path)
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.Int("log.events", len(events)))
	p.logger.DebugContext(ctx, "parsed allocation log", "path", path, "events", len(events))

	return events, nil
}

// Parse parses a log from r. source only labels spans and logs.
func (p *Pipeline) Parse(ctx context.Context, r io.Reader, source string) ([]alloclog.Event, error) {
	ctx, span := p.tracer.Start(ctx, SpanParse, trace.WithAttributes(attribute.String("log.source", source)))
	defer span.End()

	events, err := alloclog.Parse(r)
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.Int("log.events", len(events)))
	p.logger.DebugContext(ctx, "parsed allocation log", "source", source, "events", len(events))

	return events, nil
}

// Summarize builds a report from events.
func (p *Pipeline) Summarize(ctx context.Context, events []alloclog.Event, opts summary.Options) (*summary.Report, error) {
	ctx, span := p.tracer.Start(ctx, SpanSummarize, trace.WithAttributes(
		attribute.Int("log.events", len(events)),
		attribute.Bool("summary.tolerant", opts.Tolerant),
	))
	defer span.End()

	start := time.Now()

	rep, err := summary.Summarize(events, opts)
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(
		attribute.Int("summary.destroyed_pools", len(rep.History)),
		attribute.Int("summary.leaked_pools", rep.LeakedPools),
		attribute.Int("summary.killed_pools", rep.KilledPools),
	)

	p.metrics.RecordSummary(ctx, summaryStats(rep, time.Since(start)))
	p.logger.DebugContext(ctx, "summarized allocation log",
		"destroyed", len(rep.History),
		"leaked", rep.LeakedPools,
		"killed", rep.KilledPools,
		"ignored_allocs", rep.IgnoredAllocs,
		"ignored_releases", rep.IgnoredReleases,
	)

	return rep, nil
}

// Replay writes the benchmark program for events to w.
func (p *Pipeline) Replay(
	ctx context.Context, w io.Writer, events []alloclog.Event, target replay.Target, opts replay.Options,
) (replay.Stats, error) {
	ctx, span := p.tracer.Start(ctx, SpanReplay, trace.WithAttributes(
		attribute.String("replay.target", target.Name()),
		attribute.Int("log.events", len(events)),
	))
	defer span.End()

	start := time.Now()

	stats, err := replay.Write(w, events, target, opts)
	if err != nil {
		return stats, fail(span, err)
	}

	span.SetAttributes(
		attribute.Int("replay.statements", stats.Statements),
		attribute.Int("replay.bogus_allocs", stats.BogusAllocs),
		attribute.Int("replay.skipped_destroys", stats.SkippedDestroys),
	)

	p.metrics.RecordReplay(ctx, observability.ReplayStats{
		Target:      target.Name(),
		Statements:  int64(stats.Statements),
		BogusAllocs: int64(stats.BogusAllocs),
		Duration:    time.Since(start),
	})
	p.logger.DebugContext(ctx, "wrote replay program",
		"target", target.Name(),
		"pools", stats.Pools,
		"statements", stats.Statements,
		"bogus_allocs", stats.BogusAllocs,
	)

	return stats, nil
}

func summaryStats(rep *summary.Report, elapsed time.Duration) observability.SummaryStats {
	actions := make(map[string]int64, len(rep.Actions))
	for action, n := range rep.Actions {
		actions[string(action)] = int64(n)
	}

	return observability.SummaryStats{
		Actions:         actions,
		IgnoredAllocs:   int64(rep.IgnoredAllocs),
		IgnoredReleases: int64(rep.IgnoredReleases),
		MaxLivePools:    int64(rep.MaxLivePools),
		MaxPoolSize:     rep.MaxPoolSize,
		LeakedPools:     int64(rep.LeakedPools),
		Duration:        elapsed,
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
