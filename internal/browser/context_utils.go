// internal/browser/context_utils.go
package browser

import (
	"context"
	"errors"
)

// CombineContext derives a context from primary, keeping its values (the chromedp
// target), that also ends when secondary ends. secondary's deadline is carried
// over so a step timeout surfaces as context.DeadlineExceeded.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d, ok := secondary.Deadline(); ok {
		ctx, cancel = context.WithDeadline(primary, d)
	} else {
		ctx, cancel = context.WithCancel(primary)
	}
	stop := context.AfterFunc(secondary, func() {
		// Our own timer reports a shared deadline as DeadlineExceeded.
		if errors.Is(secondary.Err(), context.DeadlineExceeded) {
			if _, ok := secondary.Deadline(); ok {
				return
			}
		}
		cancel()
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

// Detach returns a context with ctx's values that is never canceled by ctx.
// Cleanup uses it so release still runs after the caller gave up.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
