package util

import "runtime"

// ReasonableShardCount picks a practical default shard count based on CPU
// parallelism, capped so every shard still owns at least one slot.
// Heuristic: nextPow2(2*GOMAXPROCS), clamped to [1..256] and then halved
// until it does not exceed the slot pool size.
func ReasonableShardCount(slots int) int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	// 2×CPU, round up to power of two, then clamp to 256.
	n := int(NextPow2(uint64(p * 2)))
	if n > 256 {
		n = 256
	}
	return ClampShards(n, slots)
}

// ClampShards halves a power-of-two shard count until each shard owns at
// least one slot. The result stays a power of two and is never below 1.
func ClampShards(shards, slots int) int {
	if shards < 1 {
		shards = 1
	}
	for shards > 1 && shards > slots {
		shards >>= 1
	}
	return shards
}

// ShardIndex maps a 64-bit hash to a shard index. The shard count must be a
// power of two; ReasonableShardCount and ClampShards only ever produce one.
func ShardIndex(hash uint64, shards int) int {
	return int(hash & uint64(shards-1))
}
