package bcache

import "sync"

// BlockID is the logical key of a cached block.
type BlockID struct {
	Dev     uint32
	Blockno uint32
}

// slot is one fixed-size buffer plus its metadata. The fields split into two
// lock domains:
//
//   - mu (the content lock) guards data, dirty, and the valid flag while a
//     holder is checked out. It is locked in Acquire and unlocked in Release,
//     so a single holder keeps it across the whole checkout, including the
//     physical read.
//   - id, refcnt, and lastRelease are guarded by the lock of the shard that
//     currently owns the slot. While refcnt > 0 the identity cannot change,
//     which also pins the slot to its owning shard.
//
// Eviction writes valid and dirty under the shard lock instead of mu. That is
// safe because eviction requires refcnt == 0, and a content-lock holder always
// has refcnt > 0: no holder can exist or appear until the new refcnt = 1 owner
// (the evictor itself) is published.
type slot struct {
	mu    sync.Mutex // content lock
	data  []byte
	valid bool
	dirty bool

	// guarded by the owning shard's lock
	id          BlockID
	refcnt      int
	lastRelease uint64
}

// rebind repurposes an unreferenced slot for a new block.
// Caller holds the owning shard's lock and has verified refcnt == 0.
func (s *slot) rebind(id BlockID) {
	s.id = id
	s.valid = false
	s.dirty = false
	s.refcnt = 1
}

// reset returns a slot to the unassigned state when it is extracted for
// relocation. lastRelease = 0 keeps it maximally eligible for reuse if the
// relocation loses the insert race. Caller holds the owning shard's lock.
func (s *slot) reset() {
	s.id = BlockID{}
	s.valid = false
	s.dirty = false
	s.refcnt = 0
	s.lastRelease = 0
}

// resident reports whether the slot's identity is currently meaningful.
// Caller holds the owning shard's lock.
func (s *slot) resident() bool { return s.valid || s.refcnt > 0 }
