// Package disk defines the physical block I/O primitive the cache sits on.
package disk

import (
	"context"
	"errors"
)

// Common errors returned by Device implementations.
var (
	// ErrClosed is returned when operations are attempted on a closed device.
	ErrClosed = errors.New("disk: device is closed")

	// ErrShortBuffer is returned when the caller's buffer does not match the
	// device block size.
	ErrShortBuffer = errors.New("disk: buffer size does not match block size")
)

// Device is the synchronous block I/O primitive.
//
// Both calls block until the transfer completes. The cache holds no locks of
// its own across these calls apart from the per-block content lock, so an
// implementation is free to sleep, queue, or hit the network. Implementations
// must be safe for concurrent use; the cache guarantees only that two calls
// for the same (dev, blockno) never overlap while issued through it.
//
// ctx is threaded through from the caller for implementations that can honor
// cancellation; a raw device may ignore it.
type Device interface {
	// ReadBlock fills p with the contents of the addressed block.
	// len(p) is the block size the cache was configured with.
	ReadBlock(ctx context.Context, dev, blockno uint32, p []byte) error

	// WriteBlock persists p as the contents of the addressed block.
	WriteBlock(ctx context.Context, dev, blockno uint32, p []byte) error
}
