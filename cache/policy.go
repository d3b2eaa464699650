package cache

import "time"

// Policy is a closed set of per-key eviction strategies. A policy is chosen
// by the caller at Put time and governs the entry until it is replaced or
// removed; re-putting a key swaps both value and policy wholesale.
//
// The set is sealed: only the types in this file implement it. Exhaustive
// switches over Policy are safe.
type Policy interface {
	// ttl reports the relative time-to-live this policy assigns to an
	// entry; zero means the entry never expires by age.
	ttl() time.Duration
}

// NoCache stores nothing. Putting a key under NoCache also removes any
// entry previously stored under that key, so switching a key to NoCache
// means "stop caching this".
type NoCache struct{}

func (NoCache) ttl() time.Duration { return 0 }

// TimeToLive expires the entry TTL after insertion.
//
// RefreshOnExpiry is advisory: the cache itself always treats an expired
// entry as a miss, but callers (repositories) can inspect the flag to
// decide whether to re-run their producer eagerly via GetOrPut.
type TimeToLive struct {
	TTL             time.Duration
	RefreshOnExpiry bool
}

func (p TimeToLive) ttl() time.Duration { return p.TTL }

// Persistent entries never expire; they leave the cache only through an
// explicit Remove, Invalidate, or Clear.
type Persistent struct{}

func (Persistent) ttl() time.Duration { return 0 }

// LeastRecentlyUsed bounds the total entry count. Before an insert that
// would exceed MaxEntries, entries with the oldest last access are evicted
// until there is room for the new one. TTL of zero disables age expiry.
type LeastRecentlyUsed struct {
	MaxEntries int
	TTL        time.Duration
}

func (p LeastRecentlyUsed) ttl() time.Duration { return p.TTL }

// SizeBounded bounds the total byte estimate across all resident entries.
// Before an insert that would exceed MaxTotalBytes, oldest-access entries
// are evicted until enough headroom exists, so the running total never
// exceeds the bound. TTL of zero disables age expiry.
type SizeBounded struct {
	MaxTotalBytes int64
	TTL           time.Duration
}

func (p SizeBounded) ttl() time.Duration { return p.TTL }
