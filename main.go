package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/percona/percona-doctree-migrate/backend"
	"github.com/percona/percona-doctree-migrate/config"
	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/log"
	"github.com/percona/percona-doctree-migrate/metrics"
	"github.com/percona/percona-doctree-migrate/migrate"
	"github.com/percona/percona-doctree-migrate/sel"
	"github.com/percona/percona-doctree-migrate/snapshot"
	"github.com/percona/percona-doctree-migrate/store"
	"github.com/percona/percona-doctree-migrate/topo"
	"github.com/percona/percona-doctree-migrate/util"
)

// Constants for the metrics server.
const (
	ServerReadTimeout       = 30 * time.Second
	ServerReadHeaderTimeout = 3 * time.Second
	ServerShutdownTimeout   = 5 * time.Second
)

// contextKey is a type for context keys used in this package.
type contextKey string

// configContextKey is the context key for storing *config.Config.
const configContextKey contextKey = "config"

var (
	Version   = "v0.1.0" //nolint:gochecknoglobals
	Platform  = ""       //nolint:gochecknoglobals
	GitCommit = ""       //nolint:gochecknoglobals
	GitBranch = ""       //nolint:gochecknoglobals
	BuildTime = ""       //nolint:gochecknoglobals
)

func buildVersion() string {
	return Version + " " + GitCommit + " " + BuildTime
}

//nolint:gochecknoglobals
var rootCmd = &cobra.Command{
	Use:   "pdtm",
	Short: "Percona document tree migration tool",
	Long: "Copies a collection and every nested sub-collection from one document database " +
		"to another.\n\nStore descriptors: mongodb://..., firestore://PROJECT[/DATABASE]" +
		"[?credentials=FILE], mem://, or a path to a service-account JSON key.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cmd)
		if err != nil {
			return errors.Wrap(err, "load config")
		}

		logLevel, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			logLevel = zerolog.InfoLevel
		}

		lg := log.InitGlobals(logLevel, cfg.Log.JSON, cfg.Log.NoColor).With(log.RunID(uuid.NewString()))
		ctx := lg.WithContext(cmd.Context())
		ctx = context.WithValue(ctx, configContextKey, cfg)
		cmd.SetContext(ctx)

		return nil
	},

	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := cmd.Context().Value(configContextKey).(*config.Config) //nolint:forcetypeassert

		err := config.ValidateMigrate(cfg)
		if err != nil {
			return errors.Wrap(err, "validate options")
		}

		log.Ctx(cmd.Context()).Info("Percona Document Tree Migrate " + buildVersion())

		return runMigrate(cmd.Context(), cfg)
	},
}

//nolint:gochecknoglobals
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a collection tree to a snapshot file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := cmd.Context().Value(configContextKey).(*config.Config) //nolint:forcetypeassert

		err := config.ValidateExport(cfg)
		if err != nil {
			return errors.Wrap(err, "validate options")
		}

		return runExport(cmd.Context(), cfg)
	},
}

//nolint:gochecknoglobals
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a snapshot file into a store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := cmd.Context().Value(configContextKey).(*config.Config) //nolint:forcetypeassert

		err := config.ValidateImport(cfg)
		if err != nil {
			return errors.Wrap(err, "validate options")
		}

		return runImport(cmd.Context(), cfg)
	},
}

//nolint:gochecknoglobals
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		info := fmt.Sprintf("Version:   %s\nPlatform:  %s\nGitCommit: "+
			"%s\nGitBranch: %s\nBuildTime: %s\nGoVersion: %s",
			Version,
			Platform,
			GitCommit,
			GitBranch,
			BuildTime,
			runtime.Version(),
		)

		cmd.Println(info)
	},
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "Config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output log in JSON format")
	rootCmd.PersistentFlags().Bool("log-no-color", false, "Disable log color")

	rootCmd.PersistentFlags().Duration("operation-timeout", config.DefaultOperationTimeout,
		"Timeout of a single store operation (e.g., 30s, 5m)")
	rootCmd.PersistentFlags().Duration("retry-interval", config.DefaultRetryInterval,
		"Initial wait before retrying a transient store failure")
	rootCmd.PersistentFlags().Int("max-retries", config.DefaultMaxRetries,
		"Retries of a transient store failure (0 disables retries)")
	rootCmd.PersistentFlags().String("metrics-addr", "",
		"Serve Prometheus metrics at host:port/metrics during the run")

	rootCmd.Flags().StringP("source", "s", "", "Source store descriptor")
	rootCmd.Flags().StringP("target", "t", "", "Target store descriptor")
	rootCmd.Flags().StringP("collection", "c", "", "Root collection path (e.g. users or users/u1/orders)")
	rootCmd.Flags().Bool("dry-run", false, "Export and report without writing to the target")
	addExportFlags(rootCmd)
	addImportFlags(rootCmd)

	exportCmd.Flags().StringP("source", "s", "", "Source store descriptor")
	exportCmd.Flags().StringP("collection", "c", "", "Root collection path")
	exportCmd.Flags().StringP("output", "o", "", "Snapshot file to write")
	addExportFlags(exportCmd)

	importCmd.Flags().StringP("target", "t", "", "Target store descriptor")
	importCmd.Flags().StringP("input", "i", "", "Snapshot file to read")
	addImportFlags(importCmd)

	rootCmd.AddCommand(
		versionCmd,
		exportCmd,
		importCmd,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// replaced once the config is loaded
	log.InitGlobals(zerolog.InfoLevel, false, false)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		lg := log.New("cli")
		for _, e := range errors.Errs(err) {
			lg.Error(e, "")
		}

		stop()
		os.Exit(1) //nolint:gocritic
	}
}

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("exclude", nil,
		"Sub-collection paths to skip, '*' matches one segment (e.g. users/*/audit)")
	cmd.Flags().Int("export-parallelism", config.DefaultExportParallelism,
		"Number of collections walked concurrently")
}

func addImportFlags(cmd *cobra.Command) {
	cmd.Flags().Int("batch-max-ops", config.DefaultBatchMaxOps,
		"Maximum writes per atomic batch (0 = whole snapshot in one batch)")
	cmd.Flags().String("batch-max-size", config.DefaultBatchMaxSize,
		"Maximum estimated payload per atomic batch (e.g., 10MiB; ignored when --batch-max-ops is 0)")
	cmd.Flags().String("batch-failure-policy", config.DefaultBatchFailurePolicy,
		"What to do after a batch fails: abort or continue")
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	opts, err := migrateOptions(cfg)
	if err != nil {
		return err
	}

	stopMetrics := serveMetrics(ctx, cfg.MetricsAddr)
	defer stopMetrics()

	source, err := openStore(ctx, cfg, cfg.Source, "source")
	if err != nil {
		return err
	}
	defer closeStore(ctx, source, "source")

	var target store.Store
	if !cfg.DryRun {
		target, err = openStore(ctx, cfg, cfg.Target, "target")
		if err != nil {
			return err
		}
		defer closeStore(ctx, target, "target")
	}

	report, err := migrate.Run(ctx, source, target, cfg.Collection, opts)
	if report != nil {
		logReport(ctx, report)
	}

	if err != nil {
		return errors.Wrap(err, "migrate")
	}

	return nil
}

func runExport(ctx context.Context, cfg *config.Config) error {
	opts, err := migrateOptions(cfg)
	if err != nil {
		return err
	}

	stopMetrics := serveMetrics(ctx, cfg.MetricsAddr)
	defer stopMetrics()

	source, err := openStore(ctx, cfg, cfg.Source, "source")
	if err != nil {
		return err
	}
	defer closeStore(ctx, source, "source")

	snap, err := migrate.Export(ctx, source, cfg.Collection, opts.Export)
	if err != nil {
		return errors.Wrap(err, "export")
	}

	err = writeSnapshotFile(cfg.Output, snap)
	if err != nil {
		return err
	}

	log.Ctx(ctx).InfoWith("Snapshot written",
		log.Field("file", cfg.Output),
		log.Count(int64(len(snap))))

	return nil
}

func runImport(ctx context.Context, cfg *config.Config) error {
	opts, err := migrateOptions(cfg)
	if err != nil {
		return err
	}

	snap, err := readSnapshotFile(cfg.Input)
	if err != nil {
		return err
	}

	log.Ctx(ctx).InfoWith("Snapshot read",
		log.Field("file", cfg.Input),
		log.Count(int64(len(snap))),
		log.Size(snap.SizeBytes()))

	stopMetrics := serveMetrics(ctx, cfg.MetricsAddr)
	defer stopMetrics()

	target, err := openStore(ctx, cfg, cfg.Target, "target")
	if err != nil {
		return err
	}
	defer closeStore(ctx, target, "target")

	_, err = migrate.Import(ctx, target, snap, opts.Import)
	if err != nil {
		return errors.Wrap(err, "import")
	}

	return nil
}

// migrateOptions builds the migration options from cfg.
func migrateOptions(cfg *config.Config) (migrate.Options, error) {
	filter, err := sel.MakeFilter(cfg.Exclude)
	if err != nil {
		return migrate.Options{}, errors.Wrap(err, "exclude")
	}

	policy, err := migrate.ParseFailurePolicy(cfg.Import.FailurePolicy)
	if err != nil {
		return migrate.Options{}, errors.Wrap(err, "batch failure policy")
	}

	retry := migrate.RetryOptions{
		OperationTimeout: cfg.Store.OperationTimeout,
		Interval:         cfg.Store.RetryInterval,
		MaxRetries:       cfg.Store.MaxRetries,
	}

	return migrate.Options{
		Export: migrate.ExportOptions{
			Parallelism: cfg.Export.Parallelism,
			Filter:      filter,
			Retry:       retry,
		},
		Import: migrate.ImportOptions{
			BatchMaxOps:       cfg.Import.BatchMaxOps,
			BatchMaxSizeBytes: cfg.Import.BatchMaxSizeBytes(),
			FailurePolicy:     policy,
			Retry:             retry,
		},
		DryRun: cfg.DryRun,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, descriptor, role string) (store.Store, error) { //nolint:ireturn
	d, err := backend.Parse(descriptor)
	if err != nil {
		return nil, errors.Wrap(err, role)
	}

	s, err := backend.Open(ctx, descriptor, backend.Options{
		Mongo: topo.ConnectOptions{Timeout: cfg.Store.OperationTimeout},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", role)
	}

	log.Ctx(ctx).Infof("Opened %s store: %s", role, d)

	return s, nil
}

func closeStore(ctx context.Context, s store.Store, role string) {
	err := util.Detached(ctx, config.DisconnectTimeout, s.Close)
	if err != nil {
		log.Ctx(ctx).Warnf("Close %s store: %v", role, err)
	}
}

// writeSnapshotFile writes snap next to path and renames it into place once complete.
func writeSnapshotFile(path string, snap snapshot.Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create snapshot file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	err = snapshot.Write(tmp, snap)
	if err != nil {
		tmp.Close()

		return errors.Wrap(err, "write snapshot")
	}

	err = tmp.Close()
	if err != nil {
		return errors.Wrap(err, "close snapshot file")
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return errors.Wrap(err, "rename snapshot file")
	}

	return nil
}

func readSnapshotFile(path string) (snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot file")
	}
	defer f.Close()

	snap, err := snapshot.Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	return snap, nil
}

// serveMetrics serves Prometheus metrics at addr until the returned func is called.
// An empty addr only registers the collectors.
func serveMetrics(ctx context.Context, addr string) func() {
	promRegistry := prometheus.NewRegistry()
	metrics.Init(promRegistry)

	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,

		ReadTimeout:       ServerReadTimeout,
		ReadHeaderTimeout: ServerReadHeaderTimeout,
	}

	lg := log.Ctx(ctx)

	go func() {
		lg.Info("Serving metrics at http://" + addr + "/metrics")

		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(err, "Metrics server")
		}
	}()

	return func() {
		err := util.Detached(ctx, ServerShutdownTimeout, httpServer.Shutdown)
		if err != nil {
			lg.Warn("Shutdown metrics server: " + err.Error())
		}
	}
}

func logReport(ctx context.Context, r *migrate.Report) {
	lg := log.Ctx(ctx).With(
		log.Count(int64(r.Export.Documents)),
		log.Int("collections", r.Export.Collections),
		log.Int("skipped_collections", r.Export.Skipped),
		log.Size(r.Export.SizeBytes),
		log.Elapsed(r.Elapsed))

	if r.DryRun {
		lg.Infof("Dry run completed: %d documents in %d collections (%s)",
			r.Export.Documents, r.Export.Collections, humanize.Bytes(r.Export.SizeBytes))

		return
	}

	lg.With(
		log.Int("batches", r.Import.Chunks),
		log.Int("committed_batches", r.Import.CommittedChunks),
		log.Int("committed_documents", r.Import.CommittedDocuments),
		log.Int("failed_batches", r.Import.FailedChunks),
	).Infof("Migration finished: %d of %d documents written (%s)",
		r.Import.CommittedDocuments, r.Export.Documents, humanize.Bytes(r.Export.SizeBytes))
}
