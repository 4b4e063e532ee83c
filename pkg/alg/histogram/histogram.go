// Package histogram provides a counting histogram over ascending exclusive
// upper bounds.
package histogram

import (
	"errors"
	"fmt"
	"slices"
)

// ErrBoundsNotAscending is returned by Validate when bounds are not strictly
// ascending positive values.
var ErrBoundsNotAscending = errors.New("histogram bounds must be positive and strictly ascending")

// Bucket counts the values below Bound that did not fit an earlier bucket.
type Bucket struct {
	Bound int64 `json:"bound" yaml:"bound"`
	Count int   `json:"count" yaml:"count"`

	// Overflow marks buckets appended for values beyond every configured
	// bound. Their Bound is the value that created them.
	Overflow bool `json:"overflow,omitempty" yaml:"overflow,omitempty"`
}

// Range is a bucket rendered as the closed interval [Low, High].
type Range struct {
	Low      int64 `json:"low"                yaml:"low"`
	High     int64 `json:"high"               yaml:"high"`
	Count    int   `json:"count"              yaml:"count"`
	Overflow bool  `json:"overflow,omitempty" yaml:"overflow,omitempty"`
}

// Label renders the range as "[low..high]".
func (r Range) Label() string {
	return fmt.Sprintf("[%d..%d]", r.Low, r.High)
}

// Histogram is not safe for concurrent use.
type Histogram struct {
	buckets []Bucket
	total   int
}

// Validate checks that bounds can seed a Histogram.
func Validate(bounds []int64) error {
	for i, b := range bounds {
		if b <= 0 || (i > 0 && b <= bounds[i-1]) {
			return fmt.Errorf("%w: %v", ErrBoundsNotAscending, bounds)
		}
	}

	return nil
}

// New creates a histogram with the given ascending bounds.
func New(bounds ...int64) *Histogram {
	buckets := make([]Bucket, len(bounds))
	for i, b := range bounds {
		buckets[i] = Bucket{Bound: b}
	}

	return &Histogram{buckets: buckets}
}

// Enter counts v in the first bucket whose bound exceeds it. A value that
// reaches past every bound becomes a new terminal bucket of its own, so the
// tail grows with the input instead of losing the value. Bounds compare
// strictly, so entering the same overflow value twice appends a second
// bucket with an equal bound, which renders as the empty range [v..v-1].
func (h *Histogram) Enter(v int64) {
	h.total++

	for i := range h.buckets {
		if v < h.buckets[i].Bound {
			h.buckets[i].Count++

			return
		}
	}

	h.buckets = append(h.buckets, Bucket{Bound: v, Count: 1, Overflow: true})
}

// Buckets returns a copy of the buckets in bound order.
func (h *Histogram) Buckets() []Bucket {
	return slices.Clone(h.buckets)
}

// Ranges returns the buckets as contiguous half-open ranges starting at 0.
func (h *Histogram) Ranges() []Range {
	ranges := make([]Range, 0, len(h.buckets))

	var low int64

	for _, b := range h.buckets {
		ranges = append(ranges, Range{
			Low:      low,
			High:     b.Bound - 1,
			Count:    b.Count,
			Overflow: b.Overflow,
		})
		low = b.Bound
	}

	return ranges
}

// Total returns the number of values entered.
func (h *Histogram) Total() int {
	return h.total
}
