package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// String keys include strconv/concat costs and often allocate, which is
// fine for an end-to-end benchmark.
func benchmarkMix(b *testing.B, readsPct int) {
	c := New[string](Options[string]{})
	b.Cleanup(func() { _ = c.Close() })

	pol := LeastRecentlyUsed{MaxEntries: 100_000}

	// Preload a hot keyspace to get a realistic hit-rate.
	for i := 0; i < 50_000; i++ {
		c.Put("k:"+strconv.Itoa(i), "v", pol)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1 // hot keyspace (power of two for fast &-mask)

	b.RunParallel(func(pb *testing.PB) {
		// Independent RNG stream for each worker.
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Put(k, "v", pol)
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// Tag invalidation cost relative to the tag group size.
func BenchmarkInvalidate_ByTag(b *testing.B) {
	c := New[string](Options[string]{})
	b.Cleanup(func() { _ = c.Close() })

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for j := 0; j < 64; j++ {
			c.Put("k:"+strconv.Itoa(j), "v", Persistent{}, "grp")
		}
		b.StartTimer()
		c.Invalidate(ByTag{Tag: "grp"})
	}
}

func BenchmarkCache_GetExpired(b *testing.B) {
	clk := &fakeClock{}
	c := New[string](Options[string]{Clock: clk})
	b.Cleanup(func() { _ = c.Close() })

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		c.Put("k", "v", TimeToLive{TTL: time.Millisecond})
		clk.add(time.Second)
		b.StartTimer()
		c.Get("k") // expired path: remove + miss
	}
}
