package bcache

import "sync/atomic"

// Handle is a checked-out block. It is returned by Acquire with the slot's
// content lock held and stays usable until Release. Data, MarkDirty, Dirty,
// and Flush require the handle to still be held; calling them after Release
// is a contract violation and panics.
//
// Pin and Unpin remain legal on a released handle: pinning bumps the
// reference count out of band so the block stays resident across later
// acquire/release cycles by other goroutines.
//
// A Handle must not be shared between goroutines without external
// synchronization; the content lock it represents has exactly one owner.
type Handle struct {
	s        *slot
	id       BlockID
	released atomic.Bool
}

// ID returns the block identity this handle was acquired for.
func (h *Handle) ID() BlockID { return h.id }

// Data returns the block's bytes. The slice aliases the slot buffer and is
// only valid until Release; mutate it freely while held, and call MarkDirty
// plus Flush if the change must reach the device.
func (h *Handle) Data() []byte {
	h.mustHold("Data")
	return h.s.data
}

// MarkDirty records that the buffer diverges from the on-device block.
// The bit is advisory: eviction never writes back, so an unflushed dirty
// block is lost when the slot is repurposed.
func (h *Handle) MarkDirty() {
	h.mustHold("MarkDirty")
	h.s.dirty = true
}

// Dirty reports whether the buffer was marked dirty since the last Flush.
func (h *Handle) Dirty() bool {
	h.mustHold("Dirty")
	return h.s.dirty
}

func (h *Handle) mustHold(op string) {
	if h.released.Load() {
		panic("bcache: " + op + " on a released handle")
	}
}
