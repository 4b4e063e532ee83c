package summary

import (
	"slices"

	"github.com/Sumatoshi-tech/poolscope/pkg/alg/histogram"
	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
)

// Analyzer folds events into a Report. It is not safe for concurrent use.
type Analyzer struct {
	opts Options

	live     map[string]*PoolRecord
	children map[string][]string
	// dead holds destroyed pools and pools invalidated by an ancestor.
	// Only kept in tolerant mode.
	dead map[string]struct{}

	actions map[alloclog.Action]int
	history []PoolHistory

	sizeHist  *histogram.Histogram
	depthHist *histogram.Histogram
	countHist *histogram.Histogram

	maxDepth      int
	maxLive       int
	maxAllocation int64
	maxPoolSize   int64
	maxAllocs     int

	killed          int
	ignoredAllocs   int
	ignoredReleases int
}

// NewAnalyzer creates an Analyzer. Nil bounds fall back to the defaults.
func NewAnalyzer(opts Options) *Analyzer {
	if opts.SizeBounds == nil {
		opts.SizeBounds = DefaultSizeBounds
	}

	if opts.DepthBounds == nil {
		opts.DepthBounds = DefaultDepthBounds
	}

	if opts.CountBounds == nil {
		opts.CountBounds = DefaultCountBounds
	}

	actions := make(map[alloclog.Action]int, len(alloclog.Actions))
	for _, action := range alloclog.Actions {
		actions[action] = 0
	}

	return &Analyzer{
		opts:      opts,
		live:      make(map[string]*PoolRecord),
		children:  make(map[string][]string),
		dead:      make(map[string]struct{}),
		actions:   actions,
		sizeHist:  histogram.New(opts.SizeBounds...),
		depthHist: histogram.New(opts.DepthBounds...),
		countHist: histogram.New(opts.CountBounds...),
	}
}

// Observe applies one event.
func (a *Analyzer) Observe(event alloclog.Event) error {
	a.actions[event.Action]++
	a.maxAllocation = max(a.maxAllocation, event.Amount)

	switch event.Action {
	case alloclog.ActionCreate:
		return a.create(event)
	case alloclog.ActionAlloc:
		a.alloc(event)
	case alloclog.ActionClear:
		return a.clear(event)
	case alloclog.ActionDestroy:
		return a.destroy(event)
	}

	return nil
}

// Pool returns a copy of a live pool's record.
func (a *Analyzer) Pool(id string) (PoolRecord, bool) {
	rec, ok := a.live[id]
	if !ok {
		return PoolRecord{}, false
	}

	return *rec, true
}

// LivePools returns the number of live pools.
func (a *Analyzer) LivePools() int {
	return len(a.live)
}

func (a *Analyzer) create(event alloclog.Event) error {
	depth := 1

	if !event.IsRoot() {
		parent, ok := a.live[event.Parent]
		if !ok {
			return &UnknownPoolError{Action: event.Action, Pool: event.Parent, Line: event.Line}
		}

		depth = parent.Depth + 1
	}

	a.live[event.Pool] = &PoolRecord{Parent: event.Parent, Depth: depth}
	a.children[event.Parent] = append(a.children[event.Parent], event.Pool)
	delete(a.dead, event.Pool)

	a.maxDepth = max(a.maxDepth, depth)
	a.maxLive = max(a.maxLive, len(a.live))

	return nil
}

func (a *Analyzer) alloc(event alloclog.Event) {
	rec, ok := a.live[event.Pool]
	if !ok {
		// Allocation logging can trail a destroy; drop those.
		a.ignoredAllocs++

		return
	}

	rec.CurrentSize += event.Amount
	if rec.CurrentSize > rec.MaxSize {
		rec.MaxSize = rec.CurrentSize
		a.maxPoolSize = max(a.maxPoolSize, rec.MaxSize)
	}

	rec.AllocCount++
	a.maxAllocs = max(a.maxAllocs, rec.AllocCount)
}

func (a *Analyzer) clear(event alloclog.Event) error {
	rec, ok := a.live[event.Pool]
	if !ok {
		return a.unknownRelease(event)
	}

	rec.CurrentSize = 0

	return nil
}

func (a *Analyzer) destroy(event alloclog.Event) error {
	rec, ok := a.live[event.Pool]
	if !ok {
		return a.unknownRelease(event)
	}

	a.history = append(a.history, PoolHistory{
		Pool:       event.Pool,
		Depth:      rec.Depth,
		MaxSize:    rec.MaxSize,
		AllocCount: rec.AllocCount,
	})

	a.sizeHist.Enter(rec.MaxSize)
	a.depthHist.Enter(int64(rec.Depth))
	a.countHist.Enter(int64(rec.AllocCount))

	a.killDescendants(event.Pool)
	a.unlink(event.Pool, rec.Parent)
	delete(a.live, event.Pool)

	if a.opts.Tolerant {
		a.dead[event.Pool] = struct{}{}
	}

	return nil
}

// unknownRelease fails a clear or destroy of a pool that is not live, unless
// tolerant mode knows the pool is already gone.
func (a *Analyzer) unknownRelease(event alloclog.Event) error {
	if a.opts.Tolerant {
		if _, dead := a.dead[event.Pool]; dead {
			a.ignoredReleases++

			return nil
		}
	}

	return &UnknownPoolError{Action: event.Action, Pool: event.Pool, Line: event.Line}
}

// killDescendants drops every live pool below id. Killed pools are not
// archived: they never received a destroy of their own.
func (a *Analyzer) killDescendants(id string) {
	for _, child := range a.children[id] {
		rec, ok := a.live[child]
		if !ok || rec.Parent != id {
			// Destroyed already, or the id was reused under another parent.
			continue
		}

		a.killDescendants(child)
		delete(a.live, child)
		a.killed++

		if a.opts.Tolerant {
			a.dead[child] = struct{}{}
		}
	}

	delete(a.children, id)
}

func (a *Analyzer) unlink(id, parent string) {
	siblings := a.children[parent]

	idx := slices.Index(siblings, id)
	if idx < 0 {
		return
	}

	siblings = slices.Delete(siblings, idx, idx+1)
	if len(siblings) == 0 {
		delete(a.children, parent)

		return
	}

	a.children[parent] = siblings
}
