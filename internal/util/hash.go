// Package util contains internal helpers (hashing, sharding, padding).
//
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// HashBlockKey hashes a (device, block number) pair with 64-bit FNV-1a over
// the packed little-endian bytes. The block number occupies the low word:
// device counts are typically tiny, so the block number dominates the
// distribution and consecutive blocks still spread across shards.
func HashBlockKey(dev, blockno uint32) uint64 {
	return fnv64aFromUint64(uint64(dev)<<32 | uint64(blockno))
}

func fnv64aFromUint64(u uint64) uint64 {
	// Hash the 8 little-endian bytes of u without allocating.
	h := uint64(fnvOffset64)
	for i := 0; i < 8; i++ {
		h ^= uint64(byte(u))
		h *= fnvPrime64
		u >>= 8
	}
	return h
}
