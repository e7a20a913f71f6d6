package config

import (
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// DefaultExportParallelism is the number of collections walked concurrently during export.
	DefaultExportParallelism = 4
	// MaxExportParallelism caps the export worker fan-out.
	MaxExportParallelism = 256

	// DefaultBatchMaxOps is the maximum number of writes in one atomic batch.
	// It matches the write limit of a Firestore batch.
	DefaultBatchMaxOps = 500
	// DefaultBatchMaxSize is the maximum estimated payload of one atomic batch.
	DefaultBatchMaxSize = "10MiB"
	// MaxBatchMaxSizeBytes caps the configurable batch payload.
	MaxBatchMaxSizeBytes = 64 * humanize.MiByte

	// DefaultBatchFailurePolicy stops the import at the first failed batch.
	DefaultBatchFailurePolicy = "abort"

	// DefaultOperationTimeout bounds every single store call.
	DefaultOperationTimeout = 5 * time.Minute
	// DisconnectTimeout bounds closing a store connection.
	DisconnectTimeout = 30 * time.Second

	// DefaultRetryInterval is the initial backoff between retries of a transient failure.
	DefaultRetryInterval = 500 * time.Millisecond
	// DefaultMaxRetries is the number of retries of a transient failure.
	DefaultMaxRetries = 3

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)
