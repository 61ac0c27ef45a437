package bcache

import (
	"bytes"
	"context"
	"testing"

	"github.com/yuntaz2/blockcache/disk/memdisk"
)

// Fuzz the full write/flush/evict/reload cycle under arbitrary identities and
// payloads. Guards against panics and checks that flushed bytes survive a
// round trip through the device after the slot is repurposed.
func FuzzCache_FlushSurvivesEviction(f *testing.F) {
	f.Add(uint32(0), uint32(0), []byte(nil))
	f.Add(uint32(1), uint32(37), []byte("hello"))
	f.Add(uint32(7), uint32(1<<31), bytes.Repeat([]byte{0xFF}, 128))

	f.Fuzz(func(t *testing.T, dev, blockno uint32, payload []byte) {
		const blockSize = 128
		if len(payload) > blockSize {
			payload = payload[:blockSize]
		}

		d := memdisk.New(blockSize)
		c := New(Options{Capacity: 2, Shards: 1, BlockSize: blockSize, Device: d})
		t.Cleanup(func() { _ = c.Close() })
		ctx := context.Background()

		h, err := c.Acquire(ctx, dev, blockno)
		if err != nil {
			t.Fatal(err)
		}
		copy(h.Data(), payload)
		h.MarkDirty()
		if err := c.Flush(ctx, h); err != nil {
			t.Fatal(err)
		}
		c.Release(h)

		// Two more distinct blocks push the target out of the pool.
		for _, other := range []uint32{blockno + 1, blockno + 2} {
			h, err := c.Acquire(ctx, dev^1, other)
			if err != nil {
				t.Fatal(err)
			}
			c.Release(h)
		}

		h, err = c.Acquire(ctx, dev, blockno)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Release(h)

		if !bytes.Equal(h.Data()[:len(payload)], payload) {
			t.Fatalf("reloaded prefix differs: got %q want %q", h.Data()[:len(payload)], payload)
		}
		for _, b := range h.Data()[len(payload):] {
			if b != 0 {
				t.Fatal("tail of a fresh block must read back as zeros")
			}
		}
	})
}
