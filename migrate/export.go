package migrate

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/percona/percona-doctree-migrate/config"
	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/log"
	"github.com/percona/percona-doctree-migrate/metrics"
	"github.com/percona/percona-doctree-migrate/sel"
	"github.com/percona/percona-doctree-migrate/snapshot"
	"github.com/percona/percona-doctree-migrate/store"
)

// ExportOptions configures the export walk.
type ExportOptions struct {
	// Parallelism is the number of collections walked concurrently.
	// Default: 4 (config.DefaultExportParallelism). 1 walks one collection at a time.
	Parallelism int
	// Filter reports whether a sub-collection path is walked. nil walks everything.
	// The root collection is always walked.
	Filter sel.PathFilter
	// Retry bounds the store reads.
	Retry RetryOptions
}

// ExportStats describes a finished export walk.
type ExportStats struct {
	Documents   int
	Collections int
	Skipped     int // sub-collections pruned by the filter
	SizeBytes   uint64
	Elapsed     time.Duration
}

// collectionResult is what a worker learned about one collection.
type collectionResult struct {
	collection string
	docs       []store.Document
	children   []string // sub-collection paths of the listed documents
	err        error
}

// Export walks the collection at root and every sub-collection nested below its documents
// and returns all reached documents keyed by full path.
// Any failed read fails the whole export with a [*StoreAccessError].
func Export(
	ctx context.Context,
	src store.Store,
	root string,
	opts ExportOptions,
) (snapshot.Snapshot, error) {
	snap, _, err := export(ctx, src, root, opts)

	return snap, err
}

func export(
	ctx context.Context,
	src store.Store,
	root string,
	opts ExportOptions,
) (snapshot.Snapshot, ExportStats, error) {
	var stats ExportStats

	err := store.ValidateCollectionPath(root)
	if err != nil {
		return nil, stats, errors.Wrap(err, "root collection")
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = config.DefaultExportParallelism
	}

	filter := opts.Filter
	if filter == nil {
		filter = sel.AllowAllFilter
	}

	lg := log.Ctx(ctx).With(log.Scope("export"), log.Path(root))
	lg.Infof("Starting export (parallelism: %d)", parallelism)

	startTime := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grp := errgroup.Group{}
	grp.SetLimit(parallelism)

	// workers only send results; the loop below is the single writer of snap
	results := make(chan collectionResult)
	snap := snapshot.New()

	pending := []string{root}
	inflight := 0

	var runErr error

	for {
		for runErr == nil && len(pending) != 0 && inflight < parallelism {
			coll := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			inflight++

			grp.Go(func() error {
				results <- walkCollection(ctx, src, coll, opts.Retry)

				return nil
			})
		}

		if inflight == 0 {
			break
		}

		res := <-results
		inflight--

		if runErr != nil {
			continue
		}

		if res.err != nil {
			runErr = res.err
			cancel()

			continue
		}

		err := mergeCollection(snap, res)
		if err != nil {
			runErr = err
			cancel()

			continue
		}

		stats.Collections++
		stats.Documents += len(res.docs)
		metrics.IncExportCollections()
		metrics.AddExportDocuments(len(res.docs))

		for _, child := range res.children {
			if !filter(child) {
				stats.Skipped++
				lg.With(log.Path(child)).Debug("Sub-collection excluded")

				continue
			}

			pending = append(pending, child)
		}

		lg.With(log.Path(res.collection), log.Count(int64(len(res.docs)))).Trace("Collection exported")
	}

	_ = grp.Wait()

	stats.Elapsed = time.Since(startTime)
	metrics.SetExportDuration(stats.Elapsed)

	if runErr != nil {
		lg.Error(runErr, "Export failed")

		return nil, stats, runErr
	}

	stats.SizeBytes = snap.SizeBytes()
	metrics.SetSnapshotSizeBytes(stats.SizeBytes)

	lg.InfoWith("Export completed",
		log.Count(int64(stats.Documents)),
		log.Int("collections", stats.Collections),
		log.Size(stats.SizeBytes),
		log.Elapsed(stats.Elapsed))

	return snap, stats, nil
}

// walkCollection lists the documents of coll and the sub-collections of each document.
func walkCollection(
	ctx context.Context,
	src store.Store,
	coll string,
	retry RetryOptions,
) collectionResult {
	res := collectionResult{collection: coll}

	err := retry.run(ctx, "list_documents", coll, func(ctx context.Context) error {
		var err error
		res.docs, err = src.ListDocuments(ctx, coll)

		return err //nolint:wrapcheck
	})
	if err != nil {
		res.err = &StoreAccessError{Op: "list documents", Path: coll, Err: err}

		return res
	}

	for _, doc := range res.docs {
		docPath := store.Join(coll, doc.ID)

		var names []string

		err := retry.run(ctx, "list_collections", docPath, func(ctx context.Context) error {
			var err error
			names, err = src.ListCollections(ctx, docPath)

			return err //nolint:wrapcheck
		})
		if err != nil {
			res.err = &StoreAccessError{Op: "list collections", Path: docPath, Err: err}

			return res
		}

		for _, name := range names {
			res.children = append(res.children, store.Join(docPath, name))
		}
	}

	return res
}

func mergeCollection(snap snapshot.Snapshot, res collectionResult) error {
	for _, doc := range res.docs {
		err := snap.Add(store.Join(res.collection, doc.ID), doc.Data)
		if err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}
