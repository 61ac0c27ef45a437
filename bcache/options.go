package bcache

import (
	"sync/atomic"

	"github.com/yuntaz2/blockcache/disk"
)

// EvictReason explains why a slot was repurposed for a new block.
type EvictReason int

const (
	// EvictReplace — the slot was the oldest unreferenced slot in the
	// block's home shard and was rebound in place.
	EvictReplace EvictReason = iota
	// EvictSteal — the home shard had no unreferenced slot, so the slot was
	// taken from another shard and relocated.
	EvictSteal
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Exhausted()
}

// Clock is a monotonically non-decreasing logical tick source used to rank
// eviction candidates. Only relative order matters; useful for deterministic
// tests.
type Clock interface{ Now() uint64 }

// tickClock is the default Clock: a process-local atomic counter.
type tickClock struct{ t atomic.Uint64 }

func (c *tickClock) Now() uint64 { return c.t.Add(1) }

// Options configures the cache behavior. Sane defaults are applied in New():
//   - nil Metrics  => NoopMetrics
//   - nil Clock    => internal atomic tick counter
//   - nil Hasher   => FNV-1a over the packed (dev, blockno) pair
//   - Shards <= 0  => auto (rounded up to power of two, capped by Capacity)
//   - BlockSize<=0 => DefaultBlockSize
type Options struct {
	// Capacity is the total number of block slots. The pool is allocated
	// once at construction and never grows; when every slot is referenced,
	// Acquire fails with ErrPoolExhausted.
	Capacity int

	// Shards defines the number of lock partitions. If 0, an automatic value
	// is chosen (≈ 2*GOMAXPROCS) and rounded to the next power of two. The
	// count is always clamped so each shard owns at least one slot.
	Shards int

	// BlockSize is the size in bytes of every block buffer.
	BlockSize int

	// Device performs the physical reads and writes. Required.
	Device disk.Device

	// Hasher maps a block identity to a 64-bit value used for shard
	// placement. Nil => FNV-1a of the packed pair. Tests can supply e.g.
	// the raw block number for deterministic placement.
	Hasher func(dev, blockno uint32) uint64

	// Observability
	// OnEvict is called after a slot loses its previous block, under the
	// shard lock that decided the eviction; keep callbacks lightweight.
	OnEvict func(dev, blockno uint32, reason EvictReason)
	Metrics Metrics

	// Clock allows overriding the logical tick source (tests).
	// Nil => internal atomic counter.
	Clock Clock
}

// DefaultBlockSize is used when Options.BlockSize is not set.
const DefaultBlockSize = 4096
