package migrate

import (
	"context"
	"time"

	"github.com/percona/percona-doctree-migrate/config"
	"github.com/percona/percona-doctree-migrate/log"
	"github.com/percona/percona-doctree-migrate/metrics"
	"github.com/percona/percona-doctree-migrate/store"
	"github.com/percona/percona-doctree-migrate/util"
)

// RetryOptions bounds every store call made by a migration phase.
type RetryOptions struct {
	// OperationTimeout limits one attempt of a store call. 0 means no limit.
	OperationTimeout time.Duration
	// Interval is the initial wait before retrying a transient failure.
	Interval time.Duration
	// MaxRetries is the number of retries of a transient failure. 0 disables retries.
	MaxRetries int
}

// DefaultRetryOptions returns the default store call limits.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		OperationTimeout: config.DefaultOperationTimeout,
		Interval:         config.DefaultRetryInterval,
		MaxRetries:       config.DefaultMaxRetries,
	}
}

func (o RetryOptions) run(ctx context.Context, op, path string, fn func(context.Context) error) error {
	call := func(ctx context.Context) error {
		return util.CtxWithTimeout(ctx, o.OperationTimeout, fn)
	}

	notify := func(err error, wait time.Duration) {
		metrics.IncRetries(op)
		log.Ctx(ctx).With(log.Path(path)).Warnf("%s: transient failure, retry in %s: %v", op, wait, err)
	}

	return store.RunWithRetry(ctx, call, o.Interval, o.MaxRetries, notify) //nolint:wrapcheck
}
