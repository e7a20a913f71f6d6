package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/percona/percona-doctree-migrate/errors"
)

const maxRetryInterval = 30 * time.Second

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Transient marks err as a temporary I/O failure that may succeed on retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// IsTransient reports whether err was marked with [Transient].
func IsTransient(err error) bool {
	var te *transientError

	return errors.As(err, &te)
}

// RetryFunc is notified before each retry.
type RetryFunc func(err error, wait time.Duration)

// RunWithRetry runs fn until it succeeds, returns a non-transient error, or maxRetries retries
// are spent. The wait between attempts grows exponentially from interval.
func RunWithRetry(
	ctx context.Context,
	fn func(context.Context) error,
	interval time.Duration,
	maxRetries int,
	notify RetryFunc,
) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	bo.MaxInterval = max(interval, maxRetryInterval)
	bo.MaxElapsedTime = 0

	op := func() error {
		err := fn(ctx)
		if err == nil || IsTransient(err) {
			return err
		}

		return backoff.Permanent(err)
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = backoff.Notify(notify)
	}

	//nolint:gosec
	b := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx)

	return backoff.RetryNotify(op, b, onRetry) //nolint:wrapcheck
}
