package cache

// entry is an intrusive doubly linked list element owned by the store.
// It carries the value alongside list links and the metadata used for
// TTL checks, recency ordering, tag invalidation, and size accounting.
type entry[V any] struct {
	key string
	val V

	// Intrusive list links: head is most recently accessed, tail oldest.
	prev *entry[V]
	next *entry[V]

	// Absolute timestamps in UnixNano. lastAccessedAt >= insertedAt
	// always; both are bumped together on insert, lastAccessedAt alone
	// on every hit.
	insertedAt     int64
	lastAccessedAt int64

	// Absolute expiration deadline in UnixNano. Zero means "no TTL".
	exp int64

	tags []string

	// Heuristic byte estimate used for SizeBounded comparisons only,
	// not real memory accounting.
	size int64

	accessCount int64

	policy Policy
}

// expired reports whether the entry's TTL has lapsed at the given instant.
func (e *entry[V]) expired(now int64) bool {
	return e.exp != 0 && now > e.exp
}

// defaultEntrySize is the byte estimate for values the heuristic cannot
// inspect (opaque structs, numbers, and so on).
const defaultEntrySize = 64

// heuristicSize estimates the in-memory footprint of a value: two bytes
// per rune-agnostic string byte, the raw length for byte slices, and a
// fixed default otherwise.
func heuristicSize(v any) int64 {
	switch x := v.(type) {
	case string:
		return 2 * int64(len(x))
	case []byte:
		return int64(len(x))
	default:
		return defaultEntrySize
	}
}
