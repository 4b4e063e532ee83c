// Package safeconv converts between byte-count integer types without silent
// wraparound.
package safeconv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("safeconv: value out of range")

// Uint64ToInt64 converts v, failing when it exceeds math.MaxInt64.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d exceeds int64", ErrOverflow, v)
	}

	return int64(v), nil
}

// Bytes clamps a signed byte count to uint64. Negative counts become 0.
func Bytes(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}

// FloatBytes truncates a float byte count to uint64. NaN and negative values
// become 0, values past the uint64 range saturate.
func FloatBytes(v float64) uint64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint64:
		return math.MaxUint64
	}

	return uint64(v)
}
