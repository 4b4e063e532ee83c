// Package summary computes lifetime statistics over an allocation log in a
// single forward pass.
package summary

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/poolscope/pkg/alg/histogram"
	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
)

// ErrUnknownPool is returned when an event needs a pool that is not live.
var ErrUnknownPool = errors.New("unknown pool")

// UnknownPoolError reports the event that referenced a pool that is not live.
type UnknownPoolError struct {
	Action alloclog.Action
	Pool   string
	Line   int
}

func (e *UnknownPoolError) Error() string {
	return fmt.Sprintf("line %d: %s %s: %v", e.Line, e.Action, e.Pool, ErrUnknownPool)
}

func (e *UnknownPoolError) Unwrap() error {
	return ErrUnknownPool
}

// Default histogram bounds, in bytes, levels and allocations.
var (
	DefaultSizeBounds  = []int64{50, 100, 250, 1000, 1500, 2000, 3000, 4000, 5000, 10000, 50000, 200000}
	DefaultDepthBounds = []int64{5, 10, 15, 20, 30}
	DefaultCountBounds = []int64{5, 10, 100, 1000, 20000}
)

// Options configures an Analyzer.
type Options struct {
	SizeBounds  []int64
	DepthBounds []int64
	CountBounds []int64

	// Tolerant ignores clear and destroy events for pools that were already
	// destroyed, directly or through an ancestor, instead of failing.
	Tolerant bool
}

// DefaultOptions returns the stock histogram layout in strict mode.
func DefaultOptions() Options {
	return Options{
		SizeBounds:  slices.Clone(DefaultSizeBounds),
		DepthBounds: slices.Clone(DefaultDepthBounds),
		CountBounds: slices.Clone(DefaultCountBounds),
	}
}

// Validate checks the histogram bounds.
func (o Options) Validate() error {
	for name, bounds := range map[string][]int64{
		"size":  o.SizeBounds,
		"depth": o.DepthBounds,
		"count": o.CountBounds,
	} {
		err := histogram.Validate(bounds)
		if err != nil {
			return fmt.Errorf("%s bounds: %w", name, err)
		}
	}

	return nil
}

// PoolRecord is the state of a live pool.
type PoolRecord struct {
	Parent      string
	Depth       int
	CurrentSize int64
	MaxSize     int64
	AllocCount  int
}

// PoolHistory is what remains of a pool after it is destroyed.
type PoolHistory struct {
	Pool       string `json:"pool"        yaml:"pool"`
	Depth      int    `json:"depth"       yaml:"depth"`
	MaxSize    int64  `json:"max_size"    yaml:"max_size"`
	AllocCount int    `json:"alloc_count" yaml:"alloc_count"`
}

// Summarize runs a fresh Analyzer over events.
func Summarize(events []alloclog.Event, opts Options) (*Report, error) {
	analyzer := NewAnalyzer(opts)

	for _, event := range events {
		err := analyzer.Observe(event)
		if err != nil {
			return nil, err
		}
	}

	return analyzer.Report(), nil
}
