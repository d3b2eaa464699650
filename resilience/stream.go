package resilience

import (
	"context"
	"fmt"
)

// Stream runs a streaming source under the retry policy, re-running the
// entire source (a full re-subscription, not just the failing element) on
// each retryable failure. Values the source emits before a failure are
// delivered again by the rerun; dedup, if needed, belongs to the consumer.
//
// On terminal failure, the fallback value (if supplied) is sent and Stream
// returns nil; otherwise the final error is returned. Stream itself never
// closes out — the caller owns the channel:
//
//	go func() {
//	    defer close(out)
//	    _ = resilience.Stream(ctx, h, "prices", policy, out, subscribe)
//	}()
func Stream[T any](ctx context.Context, h *Handler, operation string, policy RetryPolicy,
	out chan<- T, source func(context.Context, chan<- T) error, fallback ...T) error {

	attempts := policy.attempts()
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := source(ctx, out)
		if err == nil {
			h.count(metricSuccess, map[string]string{"operation": operation})
			return nil
		}
		lastErr = err

		if !h.opt.Classify(err) || attempt == attempts {
			break
		}
		if serr := sleep(ctx, policy.backoff(attempt)); serr != nil {
			return serr
		}
		h.count(metricRetries, map[string]string{"operation": operation})
	}

	h.count(metricErrors, map[string]string{
		"operation": operation,
		"error":     fmt.Sprintf("%T", lastErr),
	})
	h.opt.Logger.Warn("stream exhausted retries", "operation", operation, "err", lastErr)

	if len(fallback) > 0 {
		select {
		case out <- fallback[0]:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
