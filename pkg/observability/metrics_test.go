package observability_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
)

func newTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumByAttr(t *testing.T, m *metricdata.Metrics, key string) map[string]int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	out := map[string]int64{}

	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}

	return out
}

func TestToolMetrics_RecordCall(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeter(t)

	tm, err := observability.NewToolMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	tm.RecordCall(ctx, observability.ToolCall{
		Tool: "poolscope_summarize", Format: "json", Source: "inline", InputBytes: 2048, Duration: 100 * time.Millisecond,
	})
	tm.RecordCall(ctx, observability.ToolCall{
		Tool: "poolscope_replay", Target: "pocore", Source: "path", Reason: "unknown_pool", Duration: time.Second,
	})
	tm.RecordCall(ctx, observability.ToolCall{Tool: "poolscope_targets"})

	rm := collectMetrics(t, reader)
	calls := findMetric(rm, "poolscope.mcp.tool.calls.total")

	assert.Equal(t, map[string]int64{"poolscope_summarize": 1, "poolscope_replay": 1, "poolscope_targets": 1},
		sumByAttr(t, calls, "tool"))
	assert.Equal(t, map[string]int64{"ok": 2, "error": 1}, sumByAttr(t, calls, "status"))
	assert.Equal(t, map[string]int64{"": 2, "pocore": 1}, sumByAttr(t, calls, "target"))
	assert.Equal(t, map[string]int64{"": 2, "json": 1}, sumByAttr(t, calls, "format"))
	assert.Equal(t, map[string]int64{"": 1, "inline": 1, "path": 1}, sumByAttr(t, calls, "source"))
	assert.Equal(t, map[string]int64{"unknown_pool": 1},
		sumByAttr(t, findMetric(rm, "poolscope.mcp.tool.errors.total"), "reason"))
	assert.NotNil(t, findMetric(rm, "poolscope.mcp.tool.duration.seconds"))

	input := findMetric(rm, "poolscope.mcp.tool.input.bytes")
	require.NotNil(t, input)

	hist, ok := input.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, int64(2048), hist.DataPoints[0].Sum)
}

func TestToolMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeter(t)

	tm, err := observability.NewToolMetrics(mp.Meter("test"))
	require.NoError(t, err)

	done := tm.TrackInflight(context.Background(), "poolscope_replay")
	assert.Equal(t, map[string]int64{"poolscope_replay": 1},
		sumByAttr(t, findMetric(collectMetrics(t, reader), "poolscope.mcp.tool.inflight"), "tool"))

	done()
	assert.Equal(t, map[string]int64{"poolscope_replay": 0},
		sumByAttr(t, findMetric(collectMetrics(t, reader), "poolscope.mcp.tool.inflight"), "tool"))
}

func TestRunMetrics_RecordSummary(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeter(t)

	run, err := observability.NewRunMetrics(mp.Meter("test"))
	require.NoError(t, err)

	run.RecordSummary(context.Background(), observability.SummaryStats{
		Actions:         map[string]int64{"create": 2, "alloc": 3, "clear": 0, "destroy": 2},
		IgnoredAllocs:   1,
		IgnoredReleases: 1,
		MaxLivePools:    2,
		MaxPoolSize:     100,
		Duration:        time.Millisecond,
	})

	rm := collectMetrics(t, reader)

	assert.Equal(t, map[string]int64{"create": 2, "alloc": 3, "clear": 0, "destroy": 2},
		sumByAttr(t, findMetric(rm, "poolscope.events.total"), "action"))
	assert.Equal(t, map[string]int64{"alloc": 1, "release": 1},
		sumByAttr(t, findMetric(rm, "poolscope.ignored.events.total"), "kind"))

	live := findMetric(rm, "poolscope.pools.max.live")
	require.NotNil(t, live)

	gauge, ok := live.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value)
}

func TestRunMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var run *observability.RunMetrics

	assert.NotPanics(t, func() {
		run.RecordSummary(context.Background(), observability.SummaryStats{})
		run.RecordReplay(context.Background(), observability.ReplayStats{})
	})
}

func TestTextfileSink_WritesExposition(t *testing.T) {
	t.Parallel()

	sink, err := observability.NewTextfileSink()
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sink.Reader()))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	run, err := observability.NewRunMetrics(mp.Meter("test"))
	require.NoError(t, err)

	run.RecordReplay(context.Background(), observability.ReplayStats{Target: "pocore", Statements: 5, BogusAllocs: 1})

	path := filepath.Join(t.TempDir(), "poolscope.prom")
	require.NoError(t, sink.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "poolscope_replay_bogus_allocs")
	assert.Contains(t, out, `target="pocore"`)
	assert.Contains(t, out, "target_info")
}

func TestTextfileSink_BadPath(t *testing.T) {
	t.Parallel()

	sink, err := observability.NewTextfileSink()
	require.NoError(t, err)

	err = sink.WriteFile(filepath.Join(t.TempDir(), "missing", "out.prom"))
	require.Error(t, err)
}
