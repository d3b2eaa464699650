package cache

import "sync"

// store is the single shared mutable structure of the cache: the key map,
// an intrusive recency list (head = most recently accessed), the tag→keys
// index, and the running byte total. One RWMutex guards all four as a unit
// so no caller can observe a partial mutation (an entry removed from the
// map but still indexed under a tag, a stale size counter, and so on).
//
// Kept invariants, outside of a single locked mutation:
//   - every entry in m is linked into the recency list exactly once
//   - key ∈ tags[t] iff t ∈ m[key].tags; empty tag buckets are pruned
//   - size equals the sum of entry sizes, maintained incrementally
type store[V any] struct {
	mu   sync.RWMutex
	m    map[string]*entry[V]
	head *entry[V] // most recently accessed
	tail *entry[V] // least recently accessed
	tags map[string]map[string]*entry[V]
	size int64
}

func newStore[V any]() *store[V] {
	return &store[V]{
		m:    make(map[string]*entry[V]),
		tags: make(map[string]map[string]*entry[V]),
	}
}

// putResult reports what a put did, so the manager can emit metrics
// outside the store.
type putResult struct {
	stored      bool
	rejected    bool // value alone exceeds a SizeBounded budget
	lruEvicted  int
	sizeEvicted int
}

// put replaces any existing entry under key wholesale and enforces the
// policy's bound before the new entry is linked in, so the store never
// exceeds a bound even transiently.
func (s *store[V]) put(key string, v V, pol Policy, tagSet []string, now, size int64) putResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res putResult

	if old, ok := s.m[key]; ok {
		s.unlink(old)
	}

	switch p := pol.(type) {
	case NoCache:
		// Nothing to store; the stale entry (if any) is already gone.
		return res
	case SizeBounded:
		if size > p.MaxTotalBytes {
			res.rejected = true
			return res
		}
		for s.size+size > p.MaxTotalBytes && s.tail != nil {
			s.unlink(s.tail)
			res.sizeEvicted++
		}
	case LeastRecentlyUsed:
		for len(s.m) >= p.MaxEntries && s.tail != nil {
			s.unlink(s.tail)
			res.lruEvicted++
		}
	}

	e := &entry[V]{
		key:            key,
		val:            v,
		insertedAt:     now,
		lastAccessedAt: now,
		tags:           tagSet,
		size:           size,
		policy:         pol,
	}
	if ttl := pol.ttl(); ttl > 0 {
		e.exp = now + int64(ttl)
	}

	s.m[key] = e
	s.pushFront(e)
	s.size += size
	for _, t := range tagSet {
		bucket := s.tags[t]
		if bucket == nil {
			bucket = make(map[string]*entry[V])
			s.tags[t] = bucket
		}
		bucket[key] = e
	}

	res.stored = true
	return res
}

// get returns the value and bumps recency on a hit. An entry whose TTL has
// lapsed is removed on the spot and reported as expired.
func (s *store[V]) get(key string, now int64) (v V, hit, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return v, false, false
	}
	if e.expired(now) {
		s.unlink(e)
		return v, false, true
	}
	s.moveToFront(e)
	e.lastAccessedAt = now
	e.accessCount++
	return e.val, true, false
}

// contains is a pure predicate: present and not expired, with no removal
// and no recency bump.
func (s *store[V]) contains(key string, now int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.m[key]
	return ok && !e.expired(now)
}

func (s *store[V]) remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return false
	}
	s.unlink(e)
	return true
}

// removeMatching removes every entry whose key satisfies match and returns
// the removal count.
func (s *store[V]) removeMatching(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims []*entry[V]
	for k, e := range s.m {
		if match(k) {
			victims = append(victims, e)
		}
	}
	for _, e := range victims {
		s.unlink(e)
	}
	return len(victims)
}

// removeTag removes every entry indexed under tag in O(tag-size).
func (s *store[V]) removeTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.tags[tag]
	if len(bucket) == 0 {
		return 0
	}
	victims := make([]*entry[V], 0, len(bucket))
	for _, e := range bucket {
		victims = append(victims, e)
	}
	for _, e := range victims {
		s.unlink(e)
	}
	return len(victims)
}

func (s *store[V]) removeExpired(now int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims []*entry[V]
	for _, e := range s.m {
		if e.expired(now) {
			victims = append(victims, e)
		}
	}
	for _, e := range victims {
		s.unlink(e)
	}
	return len(victims)
}

func (s *store[V]) removeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.m)
	s.reset()
	return n
}

func (s *store[V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *store[V]) stats(now int64) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalEntries:   len(s.m),
		TotalSizeBytes: s.size,
		TagCount:       len(s.tags),
	}
	for _, e := range s.m {
		if e.expired(now) {
			st.ExpiredEntries++
		}
	}
	if st.TotalEntries > 0 {
		st.AverageSizeBytes = st.TotalSizeBytes / int64(st.TotalEntries)
	}
	return st
}

// -------------------- internals (mu held) --------------------

func (s *store[V]) reset() {
	s.m = make(map[string]*entry[V])
	s.tags = make(map[string]map[string]*entry[V])
	s.head, s.tail = nil, nil
	s.size = 0
}

// unlink removes e from the map, the recency list, every tag bucket it is
// indexed under (pruning buckets that become empty), and the size total.
func (s *store[V]) unlink(e *entry[V]) {
	delete(s.m, e.key)
	s.detach(e)
	for _, t := range e.tags {
		bucket := s.tags[t]
		delete(bucket, e.key)
		if len(bucket) == 0 {
			delete(s.tags, t)
		}
	}
	s.size -= e.size
	if s.size < 0 {
		s.size = 0
	}
}

// pushFront inserts e at the recently-accessed end in O(1).
func (s *store[V]) pushFront(e *entry[V]) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

// moveToFront promotes e after an access in O(1). Because every access
// promotes, list order is exactly last-access order, which makes
// oldest-access eviction deterministic without a separate tiebreak.
func (s *store[V]) moveToFront(e *entry[V]) {
	if e == s.head {
		return
	}
	s.detach(e)
	s.pushFront(e)
}

// detach removes e from the list only; map, tag, and size bookkeeping
// stay with the caller.
func (s *store[V]) detach(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
