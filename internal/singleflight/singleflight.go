// Package singleflight coalesces concurrent calls for the same cache key
// so the underlying producer runs at most once per miss group.
package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// flight is one in-progress execution. val and err are written exactly
// once, before done is closed; the close is the publish barrier followers
// synchronize on.
type flight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Group runs at most one fn at a time per key. The first caller for a key
// becomes the leader and executes fn; concurrent callers with the same key
// become followers and wait for the leader's result.
//
// A follower whose ctx is cancelled unblocks alone; the leader keeps
// running. Cancelling the leader's work itself is fn's responsibility
// (thread ctx into fn).
type Group[V any] struct {
	mu sync.Mutex
	m  map[string]*flight[V]
}

// Do executes fn once for key, sharing the result with every concurrent
// caller of the same key.
func (g *Group[V]) Do(ctx context.Context, key string, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*flight[V])
	}
	if f, ok := g.m[key]; ok {
		g.mu.Unlock()
		return g.wait(ctx, f)
	}

	f := &flight[V]{done: make(chan struct{})}
	g.m[key] = f
	g.mu.Unlock()

	// Leader path: run fn outside the lock, publish, then retire the
	// flight so a later miss starts fresh. A panicking fn still publishes
	// an error and retires the flight before the panic propagates, so
	// followers are never left waiting on a flight that cannot finish.
	defer func() {
		if r := recover(); r != nil {
			f.err = fmt.Errorf("producer panicked: %v", r)
			g.finish(f, key)
			panic(r)
		}
	}()
	f.val, f.err = fn()
	g.finish(f, key)
	return f.val, f.err
}

// finish publishes the flight's result and retires it.
func (g *Group[V]) finish(f *flight[V], key string) {
	close(f.done)
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

func (g *Group[V]) wait(ctx context.Context, f *flight[V]) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
