// Package bcache provides a fixed-capacity, sharded cache of fixed-size disk
// blocks. It minimizes physical I/O by keeping recently used blocks in
// memory while serializing concurrent access to the same block and keeping
// unrelated blocks from contending on a single global lock.
//
// # Design
//
//   - Pool: all slots live in one arena allocated at construction; the pool
//     never grows. Each slot is a block buffer plus metadata (identity,
//     validity, reference count, release tick).
//
//   - Sharding: slots are partitioned across shards, each with its own
//     metadata mutex guarding identity/refcount/recency bookkeeping. The
//     lock is held only for bounded linear scans, never across I/O. A
//     block's home shard is chosen by hashing its identity.
//
//   - Content locks: every slot carries a second mutex guarding the bytes
//     and the validity flag. Acquire returns with it held; Release unlocks
//     it. Two holders of the same block therefore serialize on the content
//     lock while the shard lock stays short-held. Content locks are always
//     taken after the shard lock that produced the slot has been dropped.
//
//   - Eviction: on a miss the home shard rebinds its oldest unreferenced
//     slot (smallest release tick; never-released slots rank oldest). If
//     every local slot is referenced, the other shards are probed in a
//     fixed wrapping order and a slot is relocated from a donor — donor and
//     home locks are never held together, so no lock cycle can form. A slot
//     with a positive reference count is never evicted.
//
//   - Exhaustion: when a full probe finds no unreferenced slot anywhere,
//     Acquire fails with ErrPoolExhausted instead of blocking. Blocking
//     would risk deadlock, since the goroutines holding the pool may be the
//     ones waiting on the caller.
//
//   - Durability: Flush writes through to the device on demand. There is no
//     write-back on eviction or release; an unflushed modification is lost
//     when the slot is repurposed.
//
//   - Pinning: Pin/Unpin adjust the reference count without the content
//     lock, keeping a block resident across acquire/release cycles by other
//     goroutines.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Exhausted signals.
//     By default NoopMetrics is used; plug the Prometheus adapter from
//     metrics/prom to export them.
//
// # Basic usage
//
//	dev := memdisk.New(4096)
//	c := bcache.New(bcache.Options{Capacity: 1024, BlockSize: 4096, Device: dev})
//
//	h, err := c.Acquire(ctx, 0, 37)
//	if err != nil {
//	    return err
//	}
//	copy(h.Data(), payload)
//	h.MarkDirty()
//	if err := c.Flush(ctx, h); err != nil {
//	    c.Release(h)
//	    return err
//	}
//	c.Release(h)
//
// # Pinning
//
//	h, _ := c.Acquire(ctx, 0, 37)
//	c.Pin(h)      // out-of-band reference
//	c.Release(h)  // content lock given up, block stays resident
//	// ... other goroutines acquire/release block 37 cheaply ...
//	c.Unpin(h)    // block becomes evictable again
//
// # Contract violations
//
// Releasing a handle twice, using Data/MarkDirty/Flush after Release, or
// unpinning without a matching pin indicates a caller bug and panics rather
// than silently corrupting shared state.
package bcache
