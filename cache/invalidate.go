package cache

import (
	"regexp"
	"strings"
	"time"
)

// InvalidationStrategy is a closed set of bulk-removal selectors accepted
// by Invalidate. Only the types in this file implement it.
type InvalidationStrategy interface {
	strategy()
}

// ByKey removes a single key.
type ByKey struct{ Key string }

func (ByKey) strategy() {}

// ByPattern removes every key whose full string matches a glob pattern.
// The only metacharacter is '*', which matches any run of characters;
// everything else is literal.
type ByPattern struct{ Pattern string }

func (ByPattern) strategy() {}

// ByTag removes every key currently indexed under the tag.
type ByTag struct{ Tag string }

func (ByTag) strategy() {}

// All removes every key.
type All struct{}

func (All) strategy() {}

// Expired removes every key whose TTL has lapsed. The background reaper
// issues this on each tick; callers may issue it manually as well.
type Expired struct{}

func (Expired) strategy() {}

// InvalidationEvent is published on the cache's event stream after each
// Invalidate call, so other components (for example a UI layer) can react
// to bulk removals.
type InvalidationEvent struct {
	Strategy      InvalidationStrategy
	AffectedCount int
	At            time.Time
}

// compilePattern translates a '*'-glob into an anchored regexp: literal
// segments are quoted, each '*' becomes '.*', and the whole pattern must
// match the full key.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
