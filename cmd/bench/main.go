// Command bench runs a synthetic block workload against the cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yuntaz2/blockcache/bcache"
	"github.com/yuntaz2/blockcache/disk/memdisk"
	pmet "github.com/yuntaz2/blockcache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		capacity  = flag.Int("cap", 4096, "pool capacity (slots)")
		shards    = flag.Int("shards", 0, "number of shards (0=auto)")
		blockSize = flag.Int("bs", 4096, "block size in bytes")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		writePct = flag.Int("writes", 20, "write+flush percentage [0..100]")

		blocks = flag.Int("blocks", 1_000_000, "block keyspace size")
		zipfS  = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV  = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed   = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Info("serving pprof", "addr", *pprofAddr)
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				log.Error("pprof server stopped", "err", err)
			}
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "blockcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info("serving metrics", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Error("metrics server stopped", "err", err)
		}
	}()

	// ---- Build cache over an in-memory device ----
	dev := memdisk.New(*blockSize)
	c := bcache.New(bcache.Options{
		Capacity:  *capacity,
		Shards:    *shards,
		BlockSize: *blockSize,
		Device:    dev,
		Metrics:   metrics,
	})
	defer func() { _ = c.Close() }()

	// ---- Warm half the pool to get a realistic hit-rate ----
	ctx := context.Background()
	for i := 0; i < *capacity/2; i++ {
		h, err := c.Acquire(ctx, 0, uint32(i))
		if err != nil {
			log.Error("warmup failed", "block", i, "err", err)
			os.Exit(1)
		}
		c.Release(h)
	}

	// ---- Snapshot flags for goroutines ----
	writePctVal := *writePct
	blocksMax := uint64(*blocks - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var total, writes, exhausted uint64
	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, blocksMax)

			for {
				select {
				case <-runCtx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				blockno := uint32(localZipf.Uint64())
				h, err := c.Acquire(ctx, 0, blockno)
				if err != nil {
					if errors.Is(err, bcache.ErrPoolExhausted) {
						atomic.AddUint64(&exhausted, 1)
						continue
					}
					log.Error("acquire failed", "block", blockno, "err", err)
					return
				}
				if int(localR.Int31n(100)) < writePctVal {
					atomic.AddUint64(&writes, 1)
					h.Data()[0]++
					h.MarkDirty()
					if err := c.Flush(ctx, h); err != nil {
						log.Error("flush failed", "block", blockno, "err", err)
					}
				} else {
					_ = h.Data()[0]
				}
				c.Release(h)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	st := c.Stats()

	hitRate := 0.0
	if st.Hits+st.Misses > 0 {
		hitRate = float64(st.Hits) / float64(st.Hits+st.Misses) * 100
	}

	log.Info("workload complete",
		"cap", *capacity,
		"shards", *shards,
		"workers", workersN,
		"blocks", *blocks,
		"dur", elapsed,
		"seed", seedBase,
	)
	log.Info("throughput",
		"ops", ops,
		"ops_per_sec", float64(ops)/elapsed.Seconds(),
		"writes", atomic.LoadUint64(&writes),
		"exhausted", atomic.LoadUint64(&exhausted),
	)
	log.Info("cache",
		"hits", st.Hits,
		"misses", st.Misses,
		"hit_rate_pct", hitRate,
		"evictions", st.Evictions,
		"steals", st.Steals,
		"resident", st.Resident,
		"device_reads", dev.Reads(),
		"device_writes", dev.Writes(),
	)
}
