package bcache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/yuntaz2/blockcache/disk"
	"github.com/yuntaz2/blockcache/internal/util"
)

// cache is the sharded block cache. The slot arena is allocated once in New
// and never grows; shards partition it by index, and ownership of individual
// indices migrates between shards through cross-shard eviction.
type cache struct {
	arena  []slot
	shards []*shard
	dev    disk.Device
	hash   func(dev, blockno uint32) uint64
	clock  Clock
	closed atomic.Bool

	exhausted util.PaddedAtomicUint64

	opt Options
}

// New constructs a cache with the provided Options.
// It panics on a non-positive Capacity or a nil Device; everything else has
// a default (see Options).
func New(opt Options) Cache {
	if opt.Capacity <= 0 {
		panic("bcache: Capacity must be > 0")
	}
	if opt.Device == nil {
		panic("bcache: Device is required")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = &tickClock{}
	}
	if opt.Hasher == nil {
		opt.Hasher = util.HashBlockKey
	}
	if opt.BlockSize <= 0 {
		opt.BlockSize = DefaultBlockSize
	}

	// number of shards -> power of two, capped so no shard starts empty
	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount(opt.Capacity)
	} else {
		sh = util.ClampShards(int(util.NextPow2(uint64(sh))), opt.Capacity)
	}

	c := &cache{
		arena: make([]slot, opt.Capacity),
		dev:   opt.Device,
		hash:  opt.Hasher,
		clock: opt.Clock,
		opt:   opt,
	}

	// One contiguous backing buffer for all block data; each slot gets a
	// full-capacity subslice so no slot can write into a neighbor.
	buf := make([]byte, opt.Capacity*opt.BlockSize)
	for i := range c.arena {
		c.arena[i].data = buf[i*opt.BlockSize : (i+1)*opt.BlockSize : (i+1)*opt.BlockSize]
	}

	c.shards = make([]*shard, sh)
	for i := range c.shards {
		c.shards[i] = &shard{arena: c.arena, opt: &c.opt}
	}
	// Initial ownership: slots dealt round-robin across shards.
	for i := range c.arena {
		s := c.shards[i%sh]
		s.owned = append(s.owned, i)
	}

	return c
}

// ---- Cache implementation ----

// Acquire implements the lookup/evict/load path. Shard metadata locks are
// only ever held one at a time: the home shard's during lookup and local
// eviction, and each donor's in turn during the cross-shard probe. The
// content lock is taken strictly after whichever shard lock produced the
// slot has been dropped.
func (c *cache) Acquire(ctx context.Context, dev, blockno uint32) (*Handle, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	id := BlockID{Dev: dev, Blockno: blockno}
	homeIdx := c.shardIndex(id)
	home := c.shards[homeIdx]

	st, outcome := home.acquire(id)
	switch outcome {
	case shardHit, shardEvict:
		return c.checkout(ctx, st, id)
	}

	// The home shard has no unreferenced slot. Probe the other shards in a
	// fixed wrapping order for a donor. Donor and home locks are never held
	// together: the slot is extracted under the donor lock alone, then
	// bound and inserted under the home lock alone, so two callers stealing
	// in opposite directions cannot form a lock cycle.
	n := len(c.shards)
	for off := 1; off < n; off++ {
		donor := c.shards[(homeIdx+off)&(n-1)] // shard count is a power of two
		stolen, idx, ok := donor.steal()
		if !ok {
			continue
		}
		resident, raced := home.adopt(idx, stolen, id)
		if raced {
			// Another caller installed the block while the slot was in
			// flight; the stolen slot went back to the pool and we join
			// the resident one like a plain hit.
			return c.checkout(ctx, resident, id)
		}
		return c.checkout(ctx, stolen, id)
	}

	c.exhausted.Add(1)
	c.opt.Metrics.Exhausted()
	return nil, fmt.Errorf("bcache: acquire dev %d block %d: %w", dev, blockno, ErrPoolExhausted)
}

// Release gives the block back: content lock first, then the reference,
// mirroring the acquire order in reverse so the metadata lock is never held
// while the content lock is.
func (c *cache) Release(h *Handle) {
	if !h.released.CompareAndSwap(false, true) {
		panic("bcache: release of a released handle")
	}
	h.s.mu.Unlock()
	c.shardFor(h.id).release(h.s, c.clock)
}

// Flush writes the buffer through to the device synchronously.
func (c *cache) Flush(ctx context.Context, h *Handle) error {
	h.mustHold("Flush")
	if err := c.dev.WriteBlock(ctx, h.id.Dev, h.id.Blockno, h.s.data); err != nil {
		return fmt.Errorf("bcache: flush dev %d block %d: %w", h.id.Dev, h.id.Blockno, err)
	}
	h.s.dirty = false
	return nil
}

// Pin keeps the block resident without the content lock.
func (c *cache) Pin(h *Handle) {
	c.shardFor(h.id).pin(h.s, h.id)
}

// Unpin drops a reference added by Pin.
func (c *cache) Unpin(h *Handle) {
	c.shardFor(h.id).unpin(h.s, h.id, c.clock)
}

// Len returns the total number of valid slots across all shards.
func (c *cache) Len() int {
	total := 0
	for _, sh := range c.shards {
		total += sh.residentCount()
	}
	return total
}

// Stats aggregates the per-shard hot counters.
func (c *cache) Stats() Stats {
	var st Stats
	for _, sh := range c.shards {
		st.Hits += sh.hits.Load()
		st.Misses += sh.misses.Load()
		st.Evictions += sh.evicts.Load()
		st.Steals += sh.steals.Load()
		st.Resident += sh.residentCount()
	}
	st.Exhausted = c.exhausted.Load()
	return st
}

// Close marks the cache as closed. Outstanding handles stay usable so
// holders can flush and release; only new Acquires are refused.
func (c *cache) Close() error {
	c.closed.Store(true)
	return nil
}

// ---- helpers ----

// checkout completes an acquire once a referenced slot exists: take the
// content lock (waiting out any current holder), and perform the physical
// read if the contents are not valid for the identity yet. Holding the
// content lock is the exclusive right to flip valid and touch the bytes.
func (c *cache) checkout(ctx context.Context, st *slot, id BlockID) (*Handle, error) {
	st.mu.Lock()
	if !st.valid {
		if err := c.dev.ReadBlock(ctx, id.Dev, id.Blockno, st.data); err != nil {
			st.mu.Unlock()
			c.shardFor(id).abortLoad(st)
			return nil, fmt.Errorf("bcache: load dev %d block %d: %w", id.Dev, id.Blockno, err)
		}
		st.valid = true
	}
	return &Handle{s: st, id: id}, nil
}

// shardIndex maps a block identity to its home shard.
func (c *cache) shardIndex(id BlockID) int {
	return util.ShardIndex(c.hash(id.Dev, id.Blockno), len(c.shards))
}

// shardFor returns the shard owning the slot bound to id. While a caller
// holds a reference the identity cannot change, so the home shard of the
// identity is the owner.
func (c *cache) shardFor(id BlockID) *shard {
	return c.shards[c.shardIndex(id)]
}

// Compile-time check: cache implements the Cache interface.
var _ Cache = (*cache)(nil)
