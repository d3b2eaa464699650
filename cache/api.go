package cache

import "context"

// Cache is an in-memory, policy-driven key/value cache for a single value
// type V. All methods are safe for concurrent use by multiple goroutines.
//
// A cache is an optimization, never a point of failure: internal faults
// degrade an operation to a miss or a no-op instead of propagating, and
// metrics delivery can never block or fail a caller.
type Cache[V any] interface {
	// Put inserts or replaces key→value under the given policy. A nil
	// policy falls back to Options.DefaultPolicy. Tags label the entry
	// for group invalidation. Policy bounds (LRU entry count, size
	// budget) are enforced before the entry is linked in, so a Put never
	// leaves the store over its bound.
	//
	// After Put returns, an immediate Get for the same key returns value
	// unless the policy makes the entry instantly expired or is NoCache.
	Put(key string, value V, policy Policy, tags ...string)

	// Get returns the value for key and a presence flag. An entry whose
	// TTL has lapsed is removed on the spot and reported as a miss. On a
	// hit the entry's recency and access count are bumped.
	Get(key string) (V, bool)

	// GetOrPut returns the cached value for key; on miss it runs
	// producer, stores the result under the policy and tags, and returns
	// it. Concurrent misses for the same key are coalesced: the producer
	// runs once and every caller shares its result. The producer runs
	// outside the store lock, so a slow fetch does not block unrelated
	// cache operations. If ctx is cancelled before the producer
	// completes, nothing is stored.
	GetOrPut(ctx context.Context, key string, policy Policy, tags []string,
		producer func(context.Context) (V, error)) (V, error)

	// Remove deletes key if present and reports whether a removal
	// actually occurred.
	Remove(key string) bool

	// Invalidate removes every entry selected by the strategy and
	// returns the number of entries removed. When at least one entry was
	// removed, an InvalidationEvent is published on the event stream;
	// removing nothing publishes nothing.
	Invalidate(strategy InvalidationStrategy) int

	// Contains reports whether key is present and not expired. It is a
	// pure predicate: unlike Get it neither removes an expired entry nor
	// bumps recency.
	Contains(key string) bool

	// Stats returns a read-only snapshot of the store.
	Stats() Stats

	// Clear empties the store, the tag index, and the size counter.
	Clear()

	// Events returns the invalidation event stream. The channel is
	// buffered and never blocks the cache: events are dropped when no
	// observer keeps up. It is closed by Close.
	Events() <-chan InvalidationEvent

	// Close stops the background reaper and the metric emitter, closes
	// the event stream, and turns all further operations into no-ops.
	Close() error
}

// Stats is a point-in-time snapshot of the store. ExpiredEntries counts
// entries whose TTL has lapsed but which no sweep has removed yet.
type Stats struct {
	TotalEntries     int
	ExpiredEntries   int
	TotalSizeBytes   int64
	AverageSizeBytes int64
	TagCount         int
}
