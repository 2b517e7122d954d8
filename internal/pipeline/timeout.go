package pipeline

import (
	"context"
	"fmt"
	"time"
)

// withTimeout races fn against a timer and the parent context. fn receives a
// derived context that is cancelled as soon as withTimeout returns, so
// abandoned work can wind down. A result produced after the deadline is
// discarded.
func withTimeout[T any](ctx context.Context, d time.Duration, timeoutErr error, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.v, r.err
	case <-timer.C:
		return zero, timeoutErr
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
