package bcache

import "context"

// Cache is a fixed-capacity, sharded cache of disk blocks.
// All methods are safe for concurrent use by multiple goroutines.
//
// Acquire/Release bracket exclusive access to one block: the returned Handle
// owns the slot's content lock for its whole checked-out lifetime, so all
// holders of the same block serialize through it while access to unrelated
// blocks proceeds on other shards without contention.
type Cache interface {
	// Acquire returns a handle for (dev, blockno) with valid contents and
	// the content lock held. It blocks while another holder of the same
	// block is checked out and while the physical read runs. ctx is passed
	// to the device; lock waits themselves are not cancellable.
	//
	// When no unreferenced slot exists anywhere in the probe order, Acquire
	// fails with ErrPoolExhausted. After Close it fails with ErrClosed.
	Acquire(ctx context.Context, dev, blockno uint32) (*Handle, error)

	// Release gives up the handle: unlocks the content lock and drops the
	// reference. An unreferenced slot becomes an eviction candidate ranked
	// by its release tick. Releasing a handle twice panics.
	Release(h *Handle)

	// Flush synchronously writes the handle's buffer to the device and
	// clears the dirty bit. The handle must still be held. There is no
	// write-back on eviction or release: callers that need durability must
	// flush before releasing.
	Flush(ctx context.Context, h *Handle) error

	// Pin adds an out-of-band reference so the block stays resident without
	// holding the content lock. Legal on a released handle as long as the
	// block has not been evicted. Must be paired with Unpin.
	Pin(h *Handle)

	// Unpin drops a reference added by Pin. Unpinning a block that is not
	// referenced, or whose slot was rebound, panics.
	Unpin(h *Handle)

	// Len returns the number of slots currently holding valid contents.
	Len() int

	// Stats returns a point-in-time snapshot of the cache counters.
	Stats() Stats

	// Close marks the cache closed. Future Acquires fail with ErrClosed;
	// outstanding handles may still be flushed and released.
	Close() error
}

// Stats is a snapshot of the cache's aggregate counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions uint64 // slots that lost valid contents (both reasons)
	Steals    uint64 // cross-shard relocations
	Exhausted uint64 // Acquire calls that failed with ErrPoolExhausted
	Resident  int    // slots with valid contents right now
}
