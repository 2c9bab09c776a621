// Package safeconv converts between integer widths without silent wraparound.
package safeconv

import (
	"errors"
	"math"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("integer overflow")

// Uint64ToInt64 converts v, failing when it exceeds math.MaxInt64.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, ErrOverflow
	}

	return int64(v), nil
}

// MustIntToUint32 converts v and panics when it is negative or larger than
// math.MaxUint32. Use only where the bound is guaranteed by construction.
func MustIntToUint32(v int) uint32 {
	if v < 0 || uint64(v) > math.MaxUint32 {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}
