package cache

import (
	"strings"
	"testing"
	"time"
)

// Fuzz basic Put/Get/Remove semantics under arbitrary string inputs.
// Guards against panics and ensures core invariants hold.
// NOTE: key/value lengths are capped to avoid pathological memory usage
// during fuzzing (this does not weaken the invariants we check).
func FuzzCache_PutGetRemove(f *testing.F) {
	// Seed corpus: empty, ASCII, Unicode, long strings.
	f.Add("", "", "")
	f.Add("a", "1", "t")
	f.Add("user_1", "alice", "users")
	f.Add("αβγ", "δ", "τ")
	f.Add("emoji🙂", "🙂🙂", "")
	f.Add("long", strings.Repeat("x", 1024), "bulk")

	f.Fuzz(func(t *testing.T, k, v, tag string) {
		const limit = 1 << 12 // 4096
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		c := New[string](Options[string]{})
		t.Cleanup(func() { _ = c.Close() })

		// Put -> Get must return the same value.
		c.Put(k, v, TimeToLive{TTL: time.Hour}, tag)
		got, ok := c.Get(k)
		if !ok || got != v {
			t.Fatalf("after Put/Get: want %q, got %q ok=%v", v, got, ok)
		}

		// The size counter tracks the heuristic exactly.
		if st := c.Stats(); st.TotalSizeBytes != 2*int64(len(v)) {
			t.Fatalf("size counter: want %d, got %d", 2*len(v), st.TotalSizeBytes)
		}

		// Tag invalidation removes exactly this entry.
		if n := c.Invalidate(ByTag{Tag: tag}); n != 1 {
			t.Fatalf("tag invalidation: want 1, got %d", n)
		}
		if _, ok := c.Get(k); ok {
			t.Fatalf("key must be absent after tag invalidation")
		}
		if st := c.Stats(); st.TotalEntries != 0 || st.TotalSizeBytes != 0 || st.TagCount != 0 {
			t.Fatalf("store must be empty, got %+v", st)
		}

		// Remove on the now-absent key reports false.
		if c.Remove(k) {
			t.Fatalf("Remove after invalidation must return false")
		}
	})
}

// Fuzz the glob translation: arbitrary patterns must never panic or fail
// to compile, and a key always matches itself as a literal pattern.
func FuzzPattern(f *testing.F) {
	f.Add("user_*", "user_1")
	f.Add("*", "")
	f.Add("a.b", "a.b")
	f.Add("**", "anything")
	f.Add("(", "(")

	f.Fuzz(func(t *testing.T, pattern, key string) {
		re, err := compilePattern(pattern)
		if err != nil {
			t.Fatalf("compilePattern(%q): %v", pattern, err)
		}
		_ = re.MatchString(key)

		// A literal pattern (no '*') matches exactly itself.
		if !strings.Contains(key, "*") {
			self, err := compilePattern(key)
			if err != nil {
				t.Fatalf("compilePattern(%q): %v", key, err)
			}
			if !self.MatchString(key) {
				t.Fatalf("key %q must match its own literal pattern", key)
			}
		}
	})
}
