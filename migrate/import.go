package migrate

import (
	"context"
	"time"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/log"
	"github.com/percona/percona-doctree-migrate/metrics"
	"github.com/percona/percona-doctree-migrate/snapshot"
	"github.com/percona/percona-doctree-migrate/store"
)

// ImportOptions configures the import.
type ImportOptions struct {
	// BatchMaxOps is the maximum number of writes in one atomic batch.
	// 0 commits the whole snapshot as a single batch.
	BatchMaxOps int
	// BatchMaxSizeBytes is the maximum estimated payload of one batch. 0 means unbounded.
	// It is ignored when BatchMaxOps is 0.
	// A document larger than the bound is committed in a batch of its own.
	BatchMaxSizeBytes uint64
	// FailurePolicy selects what happens after a batch fails. Default: [PolicyAbort].
	FailurePolicy FailurePolicy
	// Retry bounds the batch commits.
	Retry RetryOptions
}

// ImportResult describes a finished (or stopped) import.
type ImportResult struct {
	Chunks             int
	CommittedChunks    int
	CommittedDocuments int
	FailedChunks       int
	Elapsed            time.Duration
}

// Import writes every document of snap to dst at its original path, overwriting any
// existing document there. Writes are grouped into atomic batches in path order.
// A failed batch is reported as a [*BatchCommitError]; with [PolicyContinue] several
// failures are joined.
func Import(
	ctx context.Context,
	dst store.Store,
	snap snapshot.Snapshot,
	opts ImportOptions,
) (ImportResult, error) {
	var res ImportResult

	policy, err := ParseFailurePolicy(string(opts.FailurePolicy))
	if err != nil {
		return res, err
	}

	lg := log.Ctx(ctx).With(log.Scope("import"))

	if len(snap) == 0 {
		lg.Info("Nothing to import")

		return res, nil
	}

	startTime := time.Now()

	chunks := makeChunks(snap, opts.BatchMaxOps, opts.BatchMaxSizeBytes)
	res.Chunks = len(chunks)

	lg.Infof("Starting import of %d documents in %d batches", len(snap), len(chunks))

	var errs []error

	for i, paths := range chunks {
		err := commitChunk(ctx, dst, snap, paths, opts.Retry)
		if err != nil {
			metrics.IncImportBatchFailures()

			res.FailedChunks++
			bce := &BatchCommitError{
				Chunk:     i + 1,
				Chunks:    len(chunks),
				Documents: len(paths),
				FirstPath: paths[0],
				LastPath:  paths[len(paths)-1],
				Err:       err,
			}

			lg.Error(bce, "Batch failed")
			errs = append(errs, bce)

			if policy == PolicyAbort || errors.IsCanceled(err) {
				break
			}

			continue
		}

		res.CommittedChunks++
		res.CommittedDocuments += len(paths)

		metrics.IncImportBatches()
		metrics.AddImportDocuments(len(paths))

		lg.Tracef("Batch %d/%d committed (%d documents)", i+1, len(chunks), len(paths))
	}

	res.Elapsed = time.Since(startTime)
	metrics.SetImportDuration(res.Elapsed)

	if len(errs) != 0 {
		return res, errors.Join(errs...)
	}

	lg.InfoWith("Import completed",
		log.Count(int64(res.CommittedDocuments)),
		log.Int("batches", res.CommittedChunks),
		log.Elapsed(res.Elapsed))

	return res, nil
}

// makeChunks splits the sorted paths of snap into batches bounded by maxOps writes and
// maxSize estimated bytes. A zero maxSize is not applied. A non-positive maxOps keeps the
// whole snapshot in one batch regardless of maxSize.
func makeChunks(snap snapshot.Snapshot, maxOps int, maxSize uint64) [][]string {
	paths := snap.Paths()
	if maxOps <= 0 {
		return [][]string{paths}
	}

	var (
		chunks [][]string
		curr   []string
		size   uint64
	)

	for _, path := range paths {
		docSize := store.EstimateSize(path, snap[path])

		full := maxOps > 0 && len(curr) == maxOps
		tooBig := maxSize > 0 && len(curr) != 0 && size+docSize > maxSize

		if full || tooBig {
			chunks = append(chunks, curr)
			curr, size = nil, 0
		}

		curr = append(curr, path)
		size += docSize
	}

	if len(curr) != 0 {
		chunks = append(chunks, curr)
	}

	return chunks
}

// commitChunk writes paths as one atomic batch. Every attempt builds a fresh batch.
func commitChunk(
	ctx context.Context,
	dst store.Store,
	snap snapshot.Snapshot,
	paths []string,
	retry RetryOptions,
) error {
	return retry.run(ctx, "commit", paths[0], func(ctx context.Context) error {
		batch := dst.NewBatch()
		for _, path := range paths {
			batch.Set(path, snap[path])
		}

		startTime := time.Now()
		err := batch.Commit(ctx)
		metrics.ObserveImportBatchDuration(time.Since(startTime))

		return err //nolint:wrapcheck
	})
}
