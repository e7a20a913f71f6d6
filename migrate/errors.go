package migrate

import (
	"fmt"

	"github.com/percona/percona-doctree-migrate/errors"
)

// ErrUnknownFailurePolicy is returned for a failure policy other than abort or continue.
var ErrUnknownFailurePolicy = errors.New("unknown failure policy")

// StoreAccessError reports a failed read against the source store.
type StoreAccessError struct {
	Op   string // "list documents" or "list collections"
	Path string
	Err  error
}

func (e *StoreAccessError) Error() string {
	return fmt.Sprintf("store access: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *StoreAccessError) Unwrap() error {
	return e.Err
}

// BatchCommitError reports an atomic batch that failed to commit.
// Nothing of the failed batch was written.
type BatchCommitError struct {
	Chunk     int // 1-based
	Chunks    int
	Documents int
	FirstPath string
	LastPath  string
	Err       error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("commit batch %d/%d (%d documents, %q..%q): %v",
		e.Chunk, e.Chunks, e.Documents, e.FirstPath, e.LastPath, e.Err)
}

func (e *BatchCommitError) Unwrap() error {
	return e.Err
}

// FailurePolicy selects what the importer does after a batch fails to commit.
type FailurePolicy string

const (
	// PolicyAbort stops at the first failed batch. Later batches are not attempted.
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinue attempts every batch and reports all failures together.
	PolicyContinue FailurePolicy = "continue"
)

// ParseFailurePolicy parses a policy name. Empty means [PolicyAbort].
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyContinue:
		return PolicyContinue, nil
	}

	return "", errors.Wrap(ErrUnknownFailurePolicy, s)
}
