package cache

import (
	"log/slog"
	"time"
)

// reaper periodically sweeps expired entries so abandoned keys that are
// never re-read do not accumulate. Each tick is fault-isolated: a panic in
// one sweep is logged and the next tick runs normally, because silently
// losing the reaper would mean unbounded growth. Removal is idempotent, so
// the reaper and lazy expiry on Get are safe to run concurrently.
type reaper struct {
	quit chan struct{}
	done chan struct{}
}

func startReaper(interval time.Duration, sweep func(), log *slog.Logger) *reaper {
	r := &reaper{
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go r.run(interval, sweep, log)
	return r
}

func (r *reaper) run(interval time.Duration, sweep func(), log *slog.Logger) {
	defer close(r.done)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			r.tick(sweep, log)
		case <-r.quit:
			return
		}
	}
}

func (r *reaper) tick(sweep func(), log *slog.Logger) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("expiry sweep panicked", "panic", p)
		}
	}()
	sweep()
}

// stop terminates the loop and waits for the in-flight tick, if any.
func (r *reaper) stop() {
	close(r.quit)
	<-r.done
}
