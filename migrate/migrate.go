// Package migrate copies a document collection tree between two stores.
//
// A migration runs two strictly sequential phases. [Export] walks the root collection and
// every nested sub-collection into an in-memory [snapshot.Snapshot]. [Import] writes the
// snapshot to the target in atomic batches. The import starts only after the export has
// completed successfully.
package migrate

import (
	"context"
	"time"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/log"
	"github.com/percona/percona-doctree-migrate/store"
)

// Options configures a migration run.
type Options struct {
	Export ExportOptions
	Import ImportOptions
	// DryRun stops after the export. The target is not touched and may be nil.
	DryRun bool
}

// Report summarizes a migration run.
type Report struct {
	Export ExportStats
	Import ImportResult
	DryRun bool
	// Elapsed is the duration of the whole run.
	Elapsed time.Duration
}

// Run exports the collection tree at root from source and imports it into target.
// If the export fails, nothing is written to the target.
// The report is returned also on import failure and tells what was committed.
func Run(
	ctx context.Context,
	source, target store.Store,
	root string,
	opts Options,
) (*Report, error) {
	lg := log.Ctx(ctx)
	startTime := time.Now()

	snap, stats, err := export(ctx, source, root, opts.Export)
	if err != nil {
		return nil, errors.Wrap(err, "export")
	}

	report := &Report{Export: stats, DryRun: opts.DryRun}

	if opts.DryRun {
		report.Elapsed = time.Since(startTime)
		lg.Info("Dry run: skipping import")

		return report, nil
	}

	report.Import, err = Import(ctx, target, snap, opts.Import)
	report.Elapsed = time.Since(startTime)

	if err != nil {
		return report, errors.Wrap(err, "import")
	}

	return report, nil
}
