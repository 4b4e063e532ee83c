// Package stats provides descriptive statistics over pool lifetime samples.
package stats

import (
	"math"
	"slices"
)

// Integer is the set of sample types stats accepts.
type Integer interface {
	~int | ~int32 | ~int64
}

// Well-known percentile thresholds.
const (
	PercentileMedian = 0.5
	PercentileP95    = 0.95
)

// Distribution summarizes a sample.
type Distribution struct {
	Count  int     `json:"count"  yaml:"count"`
	Min    int64   `json:"min"    yaml:"min"`
	Max    int64   `json:"max"    yaml:"max"`
	Mean   float64 `json:"mean"   yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	P95    float64 `json:"p95"    yaml:"p95"`
}

// Describe computes the distribution of values. An empty sample yields the
// zero Distribution.
func Describe[T Integer](values []T) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	sorted := make([]float64, len(values))
	for i, v := range values {
		sorted[i] = float64(v)
	}

	slices.Sort(sorted)

	return Distribution{
		Count:  len(sorted),
		Min:    int64(sorted[0]),
		Max:    int64(sorted[len(sorted)-1]),
		Mean:   Mean(sorted),
		Median: percentileSorted(sorted, PercentileMedian),
		P95:    percentileSorted(sorted, PercentileP95),
	}
}

// Mean returns the arithmetic mean of values.
// Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64

	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// Percentile returns the p-th percentile of values using linear interpolation.
// p must be in [0, 1]. The input slice is not modified.
// Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	count := len(sorted)

	idx := p * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
