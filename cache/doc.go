// Package cache provides a generic, policy-driven in-memory cache with
// per-key eviction policies, tag and pattern invalidation, an observable
// invalidation event stream, singleflight loading, lightweight metrics
// hooks, and a background expiry reaper.
//
// # Design
//
//   - Storage: one map[string]*entry for lookups plus an intrusive
//     recency-ordered doubly linked list. A single RWMutex guards the map,
//     list, tag index, and size counter as one unit, so tag invalidation
//     and size accounting are always atomic with entry removal. All
//     operations are O(1) expected except bulk invalidation, which is
//     linear in the affected keys.
//
//   - Policies: every entry carries the policy it was stored under.
//     TimeToLive expires by age; LeastRecentlyUsed bounds the entry count;
//     SizeBounded bounds the total byte estimate; Persistent entries leave
//     only on explicit removal; NoCache stores nothing. Bounds are
//     enforced before an insert completes, evicting oldest-access entries
//     first, so the store never exceeds a bound even transiently.
//
//   - TTL: expiration is lazy on Get (the expired entry is removed and a
//     miss is returned) and eager via the reaper, which issues
//     Invalidate(Expired{}) every CleanupInterval. Contains is a pure
//     predicate and removes nothing.
//
//   - GetOrPut: coalesces concurrent misses for the same key using
//     singleflight; the producer runs outside the store lock, and a
//     cancelled producer writes nothing.
//
//   - Failure semantics: the cache degrades rather than fails. Internal
//     faults are contained at the method boundary and surface as a miss
//     or no-op; metric increments travel through a bounded async queue
//     and are dropped, never blocked on.
//
// # Basic usage
//
//	c := cache.New[string](cache.Options[string]{})
//	defer c.Close()
//
//	c.Put("user_1", "alice", cache.TimeToLive{TTL: time.Minute}, "users")
//	if v, ok := c.Get("user_1"); ok {
//	    _ = v
//	}
//	c.Invalidate(cache.ByTag{Tag: "users"})
//
// # Loading through the cache
//
//	v, err := c.GetOrPut(ctx, "user_1", cache.TimeToLive{TTL: time.Minute},
//	    []string{"users"},
//	    func(ctx context.Context) (string, error) {
//	        return fetchUser(ctx, 1) // e.g. network call
//	    })
//
// # Exporting metrics
//
//	m := prom.New(nil, "earthmax", "events", nil) // implements cache.Metrics
//	c := cache.New[string](cache.Options[string]{Metrics: m})
//
// See the resilience package for wrapping producers with bounded retry and
// per-operation circuit breakers.
package cache
