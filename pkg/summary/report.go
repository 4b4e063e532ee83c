package summary

import (
	"slices"

	"github.com/Sumatoshi-tech/poolscope/pkg/alg/histogram"
	"github.com/Sumatoshi-tech/poolscope/pkg/alg/stats"
	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
)

// Report is the outcome of a summary pass.
type Report struct {
	Actions map[alloclog.Action]int `json:"actions" yaml:"actions"`

	MaxDepth         int   `json:"max_depth"           yaml:"max_depth"`
	MaxAllocation    int64 `json:"max_allocation"      yaml:"max_allocation"`
	MaxAllocsPerPool int   `json:"max_allocs_per_pool" yaml:"max_allocs_per_pool"`
	MaxPoolSize      int64 `json:"max_pool_size"       yaml:"max_pool_size"`
	MaxLivePools     int   `json:"max_live_pools"      yaml:"max_live_pools"`

	SizeHistogram  []histogram.Range `json:"size_histogram"  yaml:"size_histogram"`
	DepthHistogram []histogram.Range `json:"depth_histogram" yaml:"depth_histogram"`
	CountHistogram []histogram.Range `json:"count_histogram" yaml:"count_histogram"`

	SizeStats  stats.Distribution `json:"size_stats"  yaml:"size_stats"`
	CountStats stats.Distribution `json:"count_stats" yaml:"count_stats"`

	// LeakedPools are pools still live when the log ended.
	LeakedPools int `json:"leaked_pools" yaml:"leaked_pools"`
	// KilledPools were invalidated by an ancestor's destroy.
	KilledPools     int `json:"killed_pools"     yaml:"killed_pools"`
	IgnoredAllocs   int `json:"ignored_allocs"   yaml:"ignored_allocs"`
	IgnoredReleases int `json:"ignored_releases" yaml:"ignored_releases"`

	History []PoolHistory `json:"history,omitempty" yaml:"history,omitempty"`
}

// Events returns the total number of events the report covers.
func (r *Report) Events() int {
	var total int
	for _, n := range r.Actions {
		total += n
	}

	return total
}

// Report snapshots the analyzer state. The analyzer can keep observing.
func (a *Analyzer) Report() *Report {
	actions := make(map[alloclog.Action]int, len(a.actions))
	for action, n := range a.actions {
		actions[action] = n
	}

	sizes := make([]int64, len(a.history))
	counts := make([]int, len(a.history))

	for i, h := range a.history {
		sizes[i] = h.MaxSize
		counts[i] = h.AllocCount
	}

	return &Report{
		Actions:          actions,
		MaxDepth:         a.maxDepth,
		MaxAllocation:    a.maxAllocation,
		MaxAllocsPerPool: a.maxAllocs,
		MaxPoolSize:      a.maxPoolSize,
		MaxLivePools:     a.maxLive,
		SizeHistogram:    a.sizeHist.Ranges(),
		DepthHistogram:   a.depthHist.Ranges(),
		CountHistogram:   a.countHist.Ranges(),
		SizeStats:        stats.Describe(sizes),
		CountStats:       stats.Describe(counts),
		LeakedPools:      len(a.live),
		KilledPools:      a.killed,
		IgnoredAllocs:    a.ignoredAllocs,
		IgnoredReleases:  a.ignoredReleases,
		History:          slices.Clone(a.history),
	}
}
