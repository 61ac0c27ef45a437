package util

import "math/bits"

// NextPow2 returns the smallest power of two >= x.
// NextPow2(0) is 1; inputs above 1<<63 clamp to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	if x > 1<<63 {
		return 1 << 63
	}
	return 1 << uint(bits.Len64(x-1))
}
