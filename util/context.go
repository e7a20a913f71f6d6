// Package util holds small context helpers shared by the commands and the stores.
package util

import (
	"context"
	"time"
)

// CtxWithTimeout runs fn with a child context that expires after dur.
// A non-positive dur runs fn with ctx unchanged.
func CtxWithTimeout(ctx context.Context, dur time.Duration, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if dur <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, dur)
	defer cancelTimeout()

	return fn(timeoutCtx)
}

// Detached runs fn with a context that keeps the values of ctx but not its cancellation,
// bounded by dur. Cleanup (closing stores, stopping servers) uses it so an interrupted
// run still releases its resources.
func Detached(ctx context.Context, dur time.Duration, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	return CtxWithTimeout(context.WithoutCancel(ctx), dur, fn)
}
