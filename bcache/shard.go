package bcache

import (
	"sync"

	"github.com/yuntaz2/blockcache/internal/util"
)

// acquireOutcome classifies what a shard-local acquire attempt produced.
type acquireOutcome int

const (
	shardHit   acquireOutcome = iota // block resident, refcnt bumped
	shardEvict                       // unreferenced slot rebound in place
	shardFull                        // every owned slot is referenced
)

// shard is an independent partition of the slot pool with its own metadata
// lock. The lock guards identity, refcnt, lastRelease, and the owned index
// list — never block contents — and is held only across bounded linear scans,
// never across I/O.
//
// Ownership is dynamic: cross-shard eviction unlinks a slot index from the
// donor's owned list and relinks it into the stealing shard's list. The two
// shard locks are never held at the same time; between them the slot is
// unlinked from every shard, invisible to all lookups, and owned by the
// stealing goroutine alone.
type shard struct {
	// ---- guarded by mu ----
	mu    sync.Mutex
	arena []slot // shared fixed pool; this shard touches only owned indices
	owned []int  // arena indices currently owned by this shard

	opt *Options

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
	steals util.PaddedAtomicUint64
}

// acquire looks the block up among the slots this shard owns. A single scan
// serves both the hit check and the eviction-candidate ranking (refcnt == 0,
// smallest lastRelease; a zero stamp means never released and wins outright).
//
// On a miss with a candidate available, the slot is rebound under the same
// lock hold as the scan, so no other caller can observe the old identity as
// a hit or claim the slot as free mid-transition.
func (sh *shard) acquire(id BlockID) (*slot, acquireOutcome) {
	sh.mu.Lock()

	victim := -1
	var victimStamp uint64
	for _, i := range sh.owned {
		st := &sh.arena[i]
		if st.resident() && st.id == id {
			st.refcnt++
			sh.mu.Unlock()
			sh.hits.Add(1)
			sh.opt.Metrics.Hit()
			return st, shardHit
		}
		if st.refcnt == 0 && (victim < 0 || st.lastRelease < victimStamp) {
			victim = i
			victimStamp = st.lastRelease
		}
	}

	sh.misses.Add(1)
	sh.opt.Metrics.Miss()

	if victim < 0 {
		sh.mu.Unlock()
		return nil, shardFull
	}

	st := &sh.arena[victim]
	prev, hadPrev := st.id, st.valid
	st.rebind(id)
	if hadPrev {
		sh.evicts.Add(1)
		sh.opt.Metrics.Evict(EvictReplace)
		if cb := sh.opt.OnEvict; cb != nil {
			cb(prev.Dev, prev.Blockno, EvictReplace)
		}
	}
	sh.mu.Unlock()
	return st, shardEvict
}

// steal extracts this shard's oldest unreferenced slot for relocation into
// another shard. The slot is unlinked and cleared in one lock hold; the new
// identity is stamped only later, by adopt, so a single slot ever carries a
// given identity. While in flight the slot belongs to the caller exclusively.
func (sh *shard) steal() (*slot, int, bool) {
	sh.mu.Lock()

	pos := -1
	var stamp uint64
	for p, i := range sh.owned {
		st := &sh.arena[i]
		if st.refcnt == 0 && (pos < 0 || st.lastRelease < stamp) {
			pos = p
			stamp = st.lastRelease
		}
	}
	if pos < 0 {
		sh.mu.Unlock()
		return nil, 0, false
	}

	idx := sh.owned[pos]
	last := len(sh.owned) - 1
	sh.owned[pos] = sh.owned[last]
	sh.owned = sh.owned[:last]

	st := &sh.arena[idx]
	prev, hadPrev := st.id, st.valid
	st.reset()
	sh.steals.Add(1)
	if hadPrev {
		sh.evicts.Add(1)
		sh.opt.Metrics.Evict(EvictSteal)
		if cb := sh.opt.OnEvict; cb != nil {
			cb(prev.Dev, prev.Blockno, EvictSteal)
		}
	}
	sh.mu.Unlock()
	return st, idx, true
}

// adopt relinks a stolen slot into this shard and binds it to the block that
// triggered the relocation. Between the donor lock and here a racing caller
// may have installed the same block through its own eviction; in that case
// the resident slot wins, the stolen one joins this shard's pool as a free
// slot, and the caller proceeds with the resident slot (raced = true).
func (sh *shard) adopt(idx int, st *slot, id BlockID) (*slot, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for _, i := range sh.owned {
		r := &sh.arena[i]
		if r.resident() && r.id == id {
			r.refcnt++
			sh.owned = append(sh.owned, idx)
			return r, true
		}
	}
	st.rebind(id)
	sh.owned = append(sh.owned, idx)
	return st, false
}

// release drops one reference and stamps the release tick when the slot
// becomes unreferenced. The content lock is already unlocked by the caller.
func (sh *shard) release(st *slot, clk Clock) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if st.refcnt <= 0 {
		panic("bcache: release of an unreferenced slot")
	}
	st.refcnt--
	if st.refcnt == 0 {
		st.lastRelease = clk.Now()
	}
}

// abortLoad drops the reference taken for a physical read that failed.
// A zero stamp makes the invalid slot the first candidate for reuse.
func (sh *shard) abortLoad(st *slot) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st.refcnt--
	if st.refcnt == 0 {
		st.lastRelease = 0
	}
}

// pin adds a reference through the shard's own bookkeeping. The handle's slot
// may have been stolen by another shard since the caller released it, and its
// metadata is then guarded by that shard's lock, so pin must not read st's
// fields directly. Instead it scans the owned list: a slot found there had all
// its metadata writes published by the lock hold that linked it in, and a slot
// stolen away is simply absent. Only a slot that is still here, still bound to
// id, and resident can be pinned.
func (sh *shard) pin(st *slot, id BlockID) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for _, i := range sh.owned {
		r := &sh.arena[i]
		if r != st {
			continue
		}
		if r.id != id || !r.resident() {
			break
		}
		r.refcnt++
		return
	}
	panic("bcache: pin of an evicted block")
}

// unpin drops a reference added by pin, with the same owned-list validation.
func (sh *shard) unpin(st *slot, id BlockID, clk Clock) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for _, i := range sh.owned {
		r := &sh.arena[i]
		if r != st {
			continue
		}
		if r.id != id || r.refcnt == 0 {
			break
		}
		r.refcnt--
		if r.refcnt == 0 {
			r.lastRelease = clk.Now()
		}
		return
	}
	panic("bcache: unpin without a matching pin")
}

// residentCount returns the number of owned slots holding valid contents.
func (sh *shard) residentCount() int {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	n := 0
	for _, i := range sh.owned {
		if sh.arena[i].valid {
			n++
		}
	}
	return n
}
