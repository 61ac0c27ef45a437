package bcache

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/yuntaz2/blockcache/disk/memdisk"
)

// benchmarkMix exercises an acquire/release mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// The keyspace is twice the pool, so a steady share of acquires miss and
// exercise the eviction and relocation paths.
func benchmarkMix(b *testing.B, writesPct int) {
	d := memdisk.New(DefaultBlockSize)
	c := New(Options{
		Capacity: 8192,
		Device:   d,
	})
	b.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()

	// Warm half the pool to get a realistic hit-rate.
	for i := 0; i < 4096; i++ {
		h, err := c.Acquire(ctx, 0, uint32(i))
		if err != nil {
			b.Fatal(err)
		}
		c.Release(h)
	}

	// Report per-op allocations for a rough idea where costs go.
	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := uint32(1<<14 - 1) // 2× capacity (power of two for fast &-mask)

	b.RunParallel(func(pb *testing.PB) {
		// Independent RNG stream for each worker.
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := uint32(0)
		for pb.Next() {
			h, err := c.Acquire(ctx, 0, i&keyMask)
			if err != nil {
				b.Error(err)
				return
			}
			if int(r.Int31n(100)) < writesPct {
				h.Data()[0]++
				h.MarkDirty()
			} else {
				_ = h.Data()[0]
			}
			c.Release(h)
			i++
		}
	})
}

func BenchmarkCache_ReadMostly(b *testing.B) { benchmarkMix(b, 10) }
func BenchmarkCache_Mixed(b *testing.B)      { benchmarkMix(b, 50) }

// BenchmarkCache_HotBlock hammers a single block from all workers, which
// serializes entirely on its content lock: the worst case for this design
// and a useful contention baseline.
func BenchmarkCache_HotBlock(b *testing.B) {
	c := New(Options{
		Capacity: 64,
		Device:   memdisk.New(DefaultBlockSize),
	})
	b.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			h, err := c.Acquire(ctx, 0, 1)
			if err != nil {
				b.Error(err)
				return
			}
			c.Release(h)
		}
	})
}
