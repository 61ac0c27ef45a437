// Package memdisk provides an in-memory disk.Device for tests and benchmarks.
package memdisk

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yuntaz2/blockcache/disk"
)

type key struct {
	dev, blockno uint32
}

// Disk is an in-memory implementation of disk.Device.
// Blocks that were never written read back as zeros, like a fresh disk.
// Read/write counters are exposed so tests can assert how much physical
// I/O a workload actually performed.
type Disk struct {
	mu        sync.RWMutex
	blockSize int
	blocks    map[key][]byte
	closed    bool

	reads  atomic.Uint64
	writes atomic.Uint64
}

// New creates an in-memory disk serving blocks of blockSize bytes.
func New(blockSize int) *Disk {
	return &Disk{
		blockSize: blockSize,
		blocks:    make(map[key][]byte),
	}
}

// ReadBlock copies the stored block into p, or zero-fills p for a block
// that was never written.
func (d *Disk) ReadBlock(_ context.Context, dev, blockno uint32, p []byte) error {
	if len(p) != d.blockSize {
		return disk.ErrShortBuffer
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return disk.ErrClosed
	}
	d.reads.Add(1)

	if b, ok := d.blocks[key{dev, blockno}]; ok {
		copy(p, b)
		return nil
	}
	clear(p)
	return nil
}

// WriteBlock stores a copy of p as the block's contents.
func (d *Disk) WriteBlock(_ context.Context, dev, blockno uint32, p []byte) error {
	if len(p) != d.blockSize {
		return disk.ErrShortBuffer
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return disk.ErrClosed
	}
	d.writes.Add(1)

	// Copy to decouple the stored block from the caller's buffer.
	b := make([]byte, len(p))
	copy(b, p)
	d.blocks[key{dev, blockno}] = b
	return nil
}

// Peek returns a copy of the stored block and whether it was ever written.
// Intended for test assertions; not part of disk.Device.
func (d *Disk) Peek(dev, blockno uint32) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.blocks[key{dev, blockno}]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

// Reads returns the number of ReadBlock calls served so far.
func (d *Disk) Reads() uint64 { return d.reads.Load() }

// Writes returns the number of WriteBlock calls served so far.
func (d *Disk) Writes() uint64 { return d.writes.Load() }

// Close marks the device closed. Subsequent I/O returns disk.ErrClosed.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Compile-time check: Disk implements disk.Device.
var _ disk.Device = (*Disk)(nil)
