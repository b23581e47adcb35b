package dmgimage

import "math"

// AddU64 adds a and b, reporting whether the result overflowed uint64.
func AddU64(a, b uint64) (sum uint64, ok bool) {
	sum = a + b
	return sum, sum >= a
}

// MulU64 multiplies a and b, reporting whether the result overflowed uint64.
func MulU64(a, b uint64) (product uint64, ok bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}
