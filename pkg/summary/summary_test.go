package summary_test

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/poolscope/pkg/alg/histogram"
	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

const scenarioLog = `create 0xA 0x0 0
alloc 0xA 0xA 100
create 0xB 0xA 0
alloc 0xB 0xB 50
destroy 0xA 0x0 0
alloc 0xB 0xB 10
destroy 0xB 0x0 0
`

func parse(t *testing.T, log string) []alloclog.Event {
	t.Helper()

	events, err := alloclog.Parse(strings.NewReader(log))
	require.NoError(t, err)

	return events
}

func observeAll(t *testing.T, a *summary.Analyzer, events []alloclog.Event) {
	t.Helper()

	for _, e := range events {
		require.NoError(t, a.Observe(e))
	}
}

func TestScenario_PoolStateBeforeDestroy(t *testing.T) {
	t.Parallel()

	events := parse(t, scenarioLog)
	a := summary.NewAnalyzer(summary.DefaultOptions())
	observeAll(t, a, events[:4])

	poolA, ok := a.Pool("0xA")
	require.True(t, ok)
	assert.Equal(t, 1, poolA.Depth)
	assert.Equal(t, int64(100), poolA.MaxSize)
	assert.Equal(t, 1, poolA.AllocCount)

	poolB, ok := a.Pool("0xB")
	require.True(t, ok)
	assert.Equal(t, "0xA", poolB.Parent)
	assert.Equal(t, 2, poolB.Depth)
	assert.Equal(t, int64(50), poolB.MaxSize)
}

func TestScenario_StrictFailsOnDestroyOfKilledPool(t *testing.T) {
	t.Parallel()

	events := parse(t, scenarioLog)
	a := summary.NewAnalyzer(summary.DefaultOptions())
	observeAll(t, a, events[:6])

	// 0xB went with its parent; the trailing alloc did not revive it.
	_, ok := a.Pool("0xB")
	assert.False(t, ok)
	assert.Equal(t, 1, a.Report().IgnoredAllocs)

	err := a.Observe(events[6])
	require.ErrorIs(t, err, summary.ErrUnknownPool)

	var poolErr *summary.UnknownPoolError
	require.ErrorAs(t, err, &poolErr)
	assert.Equal(t, "0xB", poolErr.Pool)
	assert.Equal(t, alloclog.ActionDestroy, poolErr.Action)
	assert.Equal(t, 7, poolErr.Line)

	_, err = summary.Summarize(events, summary.DefaultOptions())
	require.ErrorIs(t, err, summary.ErrUnknownPool)
}

func TestScenario_TolerantIgnoresDestroyOfKilledPool(t *testing.T) {
	t.Parallel()

	opts := summary.DefaultOptions()
	opts.Tolerant = true

	rep, err := summary.Summarize(parse(t, scenarioLog), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Actions[alloclog.ActionCreate])
	assert.Equal(t, 3, rep.Actions[alloclog.ActionAlloc])
	assert.Equal(t, 0, rep.Actions[alloclog.ActionClear])
	assert.Equal(t, 2, rep.Actions[alloclog.ActionDestroy])
	assert.Equal(t, 7, rep.Events())

	assert.Equal(t, 2, rep.MaxDepth)
	assert.Equal(t, int64(100), rep.MaxAllocation)
	assert.Equal(t, int64(100), rep.MaxPoolSize)
	assert.Equal(t, 1, rep.MaxAllocsPerPool)
	assert.Equal(t, 2, rep.MaxLivePools)

	assert.Equal(t, 1, rep.KilledPools)
	assert.Equal(t, 1, rep.IgnoredAllocs)
	assert.Equal(t, 1, rep.IgnoredReleases)
	assert.Zero(t, rep.LeakedPools)

	require.Len(t, rep.History, 1)
	assert.Equal(t, summary.PoolHistory{Pool: "0xA", Depth: 1, MaxSize: 100, AllocCount: 1}, rep.History[0])
}

func TestTolerant_RepeatedDestroyIgnored(t *testing.T) {
	t.Parallel()

	log := "create 0x1 0x0 0\ndestroy 0x1 0x0 0\ndestroy 0x1 0x0 0\nclear 0x1 0x0 0\n"

	_, err := summary.Summarize(parse(t, log), summary.DefaultOptions())
	require.ErrorIs(t, err, summary.ErrUnknownPool)

	rep, err := summary.Summarize(parse(t, log), summary.Options{Tolerant: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.IgnoredReleases)
	assert.Len(t, rep.History, 1)
}

func TestTolerant_NeverSeenPoolStillFails(t *testing.T) {
	t.Parallel()

	_, err := summary.Summarize(parse(t, "clear 0x9 0x0 0\n"), summary.Options{Tolerant: true})
	require.ErrorIs(t, err, summary.ErrUnknownPool)
}

func TestCreate_UnknownParentFails(t *testing.T) {
	t.Parallel()

	_, err := summary.Summarize(parse(t, "create 0x2 0x1 0\n"), summary.DefaultOptions())

	var poolErr *summary.UnknownPoolError
	require.ErrorAs(t, err, &poolErr)
	assert.Equal(t, "0x1", poolErr.Pool)
	assert.Equal(t, alloclog.ActionCreate, poolErr.Action)
}

func TestSingleRootPool_DepthOne(t *testing.T) {
	t.Parallel()

	a := summary.NewAnalyzer(summary.DefaultOptions())
	observeAll(t, a, parse(t, "create 0x1 0x0 0\nalloc 0x1 0x1 8\n"))

	rec, ok := a.Pool("0x1")
	require.True(t, ok)
	assert.Equal(t, 1, rec.Depth)
	assert.Equal(t, 1, a.Report().MaxDepth)
	assert.Equal(t, 1, a.Report().LeakedPools)
}

func TestClear_ResetsCurrentSizeOnly(t *testing.T) {
	t.Parallel()

	a := summary.NewAnalyzer(summary.DefaultOptions())
	observeAll(t, a, parse(t, `create 0x1 0x0 0
alloc 0x1 0x1 300
alloc 0x1 0x1 200
clear 0x1 0x0 0
`))

	rec, ok := a.Pool("0x1")
	require.True(t, ok)
	assert.Zero(t, rec.CurrentSize)
	assert.Equal(t, int64(500), rec.MaxSize)
	assert.Equal(t, 2, rec.AllocCount)

	observeAll(t, a, parse(t, "alloc 0x1 0x1 100\n"))

	rec, _ = a.Pool("0x1")
	assert.Equal(t, int64(100), rec.CurrentSize)
	assert.Equal(t, int64(500), rec.MaxSize)
	assert.Equal(t, 3, rec.AllocCount)
}

func TestClear_KeepsDescendantsLive(t *testing.T) {
	t.Parallel()

	a := summary.NewAnalyzer(summary.DefaultOptions())
	observeAll(t, a, parse(t, `create 0x1 0x0 0
create 0x2 0x1 0
create 0x3 0x2 0
clear 0x1 0x0 0
create 0x4 0x1 0
`))

	for _, id := range []string{"0x2", "0x3"} {
		_, ok := a.Pool(id)
		assert.True(t, ok, id)
	}

	rec, ok := a.Pool("0x4")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Depth)

	rep := a.Report()
	assert.Zero(t, rep.KilledPools)
	assert.Equal(t, 3, rep.MaxDepth)
	assert.Equal(t, 4, rep.MaxLivePools)
}

func TestClear_StrictChildStaysUsable(t *testing.T) {
	t.Parallel()

	rep, err := summary.Summarize(parse(t, `create 0xA 0x0 0
create 0xB 0xA 0
alloc 0xB 0xB 10
clear 0xA 0x0 0
alloc 0xB 0xB 5
destroy 0xB 0x0 0
destroy 0xA 0x0 0
`), summary.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, rep.History, 2)
	assert.Equal(t, summary.PoolHistory{Pool: "0xB", Depth: 2, MaxSize: 15, AllocCount: 2}, rep.History[0])
	assert.Equal(t, "0xA", rep.History[1].Pool)
	assert.Zero(t, rep.IgnoredAllocs)
	assert.Zero(t, rep.KilledPools)
	assert.Zero(t, rep.LeakedPools)
}

func TestReusedIdentifier(t *testing.T) {
	t.Parallel()

	// 0x2 is freed, then reused under a different parent. Clearing its former
	// parent must not take the new incarnation with it.
	rep, err := summary.Summarize(parse(t, `create 0x1 0x0 0
create 0x2 0x1 0
destroy 0x2 0x0 0
create 0x3 0x0 0
create 0x2 0x3 0
clear 0x1 0x0 0
alloc 0x2 0x2 64
destroy 0x2 0x0 0
`), summary.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, rep.History, 2)
	assert.Equal(t, int64(64), rep.History[1].MaxSize)
	assert.Equal(t, 2, rep.History[1].Depth)
	assert.Zero(t, rep.KilledPools)
	assert.Equal(t, 2, rep.LeakedPools)
}

func TestMaxAllocationCountsIgnoredAllocs(t *testing.T) {
	t.Parallel()

	rep, err := summary.Summarize(parse(t, "create 0x1 0x0 0\nalloc 0x9 0x9 4096\n"), summary.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(4096), rep.MaxAllocation)
	assert.Zero(t, rep.MaxPoolSize)
	assert.Equal(t, 1, rep.IgnoredAllocs)
}

func TestHistograms(t *testing.T) {
	t.Parallel()

	rep, err := summary.Summarize(parse(t, `create 0x1 0x0 0
alloc 0x1 0x1 40
destroy 0x1 0x0 0
create 0x2 0x0 0
alloc 0x2 0x2 300000
destroy 0x2 0x0 0
`), summary.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, rep.SizeHistogram, len(summary.DefaultSizeBounds)+1)
	assert.Equal(t, histogram.Range{Low: 0, High: 49, Count: 1}, rep.SizeHistogram[0])

	tail := rep.SizeHistogram[len(rep.SizeHistogram)-1]
	assert.Equal(t, histogram.Range{Low: 200000, High: 299999, Count: 1, Overflow: true}, tail)

	assert.Equal(t, 2, rep.DepthHistogram[0].Count)
	assert.Equal(t, 2, rep.CountHistogram[0].Count)

	assert.Equal(t, 2, rep.SizeStats.Count)
	assert.Equal(t, int64(300000), rep.SizeStats.Max)
	assert.InDelta(t, 1, rep.CountStats.Mean, 0.0001)
}

func TestHistogramTotalsMatchDestroys(t *testing.T) {
	t.Parallel()

	events := randomLog(t, 42, 2000)

	opts := summary.DefaultOptions()
	opts.Tolerant = true

	a := summary.NewAnalyzer(opts)

	maxSeen := map[string]int64{}

	for _, e := range events {
		require.NoError(t, a.Observe(e))

		if rec, ok := a.Pool(e.Pool); ok {
			// Max size never drops below what the pool has reached so far.
			assert.GreaterOrEqual(t, rec.MaxSize, maxSeen[e.Pool])
			assert.GreaterOrEqual(t, rec.MaxSize, rec.CurrentSize)
			maxSeen[e.Pool] = rec.MaxSize

			if e.Action == alloclog.ActionClear {
				assert.Zero(t, rec.CurrentSize)
			}
		} else {
			delete(maxSeen, e.Pool)
		}
	}

	rep := a.Report()
	destroyed := rep.Actions[alloclog.ActionDestroy] - rep.IgnoredReleases
	assert.Positive(t, rep.IgnoredReleases)

	for name, ranges := range map[string][]histogram.Range{
		"size":  rep.SizeHistogram,
		"depth": rep.DepthHistogram,
		"count": rep.CountHistogram,
	} {
		var total int
		for _, r := range ranges {
			total += r.Count
		}

		assert.Equal(t, len(rep.History), total, name)
		assert.Equal(t, destroyed, total, name)
	}
}

// randomLog builds a log whose creates and allocs only touch live pools.
// Destroys mostly hit live pools and sometimes repeat a destroy on a pool
// that is already gone.
func randomLog(t *testing.T, seed uint64, n int) []alloclog.Event {
	t.Helper()

	rng := rand.New(rand.NewPCG(seed, seed))

	var (
		b       strings.Builder
		live    []string
		next    int
		parents = map[string]string{}
		gone    = map[string]bool{}
	)

	for range n {
		switch op := rng.IntN(10); {
		case op < 3 || len(live) == 0:
			next++
			id := fmt.Sprintf("0x%x", next)

			parent := alloclog.RootID
			if len(live) > 0 && rng.IntN(3) > 0 {
				parent = live[rng.IntN(len(live))]
			}

			parents[id] = parent
			live = append(live, id)
			fmt.Fprintf(&b, "create %s %s 0\n", id, parent)
		case op < 8:
			id := live[rng.IntN(len(live))]
			fmt.Fprintf(&b, "alloc %s %s %d\n", id, id, rng.IntN(5000))
		case op == 8 && len(gone) > 0:
			fmt.Fprintf(&b, "destroy %s 0x0 0\n", anyKey(gone))
		default:
			idx := rng.IntN(len(live))
			id := live[idx]
			live = append(live[:idx], live[idx+1:]...)
			gone[id] = true
			fmt.Fprintf(&b, "destroy %s 0x0 0\n", id)

			live = dropOrphans(live, parents, gone)
		}
	}

	return parse(t, b.String())
}

func dropOrphans(live []string, parents map[string]string, gone map[string]bool) []string {
	kept := live[:0]

	for _, id := range live {
		orphan := false

		for p := parents[id]; p != alloclog.RootID; p = parents[p] {
			if gone[p] {
				orphan = true

				break
			}
		}

		if orphan {
			gone[id] = true

			continue
		}

		kept = append(kept, id)
	}

	return kept
}

func anyKey(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys[0]
}
