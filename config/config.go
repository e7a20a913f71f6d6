// Package config provides configuration management for pdtm using Viper.
package config

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/percona/percona-doctree-migrate/errors"
)

// EnvPrefix is the prefix of all environment variables read by pdtm.
const EnvPrefix = "PDTM"

// Config holds all pdtm configuration.
type Config struct {
	ConfigFile string `mapstructure:"config"`

	Source     string   `mapstructure:"source"`
	Target     string   `mapstructure:"target"`
	Collection string   `mapstructure:"collection" validate:"omitempty,collpath"`
	Exclude    []string `mapstructure:"exclude"`

	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`

	DryRun      bool   `mapstructure:"dry-run"`
	MetricsAddr string `mapstructure:"metrics-addr" validate:"omitempty,hostname_port"`

	Log LogConfig `mapstructure:",squash"`

	Store StoreConfig `mapstructure:",squash"`

	Export ExportConfig `mapstructure:",squash"`

	Import ImportConfig `mapstructure:",squash"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"log-level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"` //nolint:lll
	JSON    bool   `mapstructure:"log-json"`
	NoColor bool   `mapstructure:"log-no-color"`
}

// StoreConfig holds settings applied to every store call.
type StoreConfig struct {
	OperationTimeout time.Duration `mapstructure:"operation-timeout" validate:"gte=0"`
	RetryInterval    time.Duration `mapstructure:"retry-interval" validate:"gte=0"`
	MaxRetries       int           `mapstructure:"max-retries" validate:"gte=0,lte=100"`
}

// ExportConfig holds export phase configuration.
type ExportConfig struct {
	// Parallelism is the number of collections walked concurrently.
	// 0 means [DefaultExportParallelism].
	Parallelism int `mapstructure:"export-parallelism" validate:"gte=0,lte=256"`
}

// ImportConfig holds import phase configuration.
type ImportConfig struct {
	// BatchMaxOps is the maximum number of writes in one atomic batch.
	// 0 commits the whole snapshot in a single batch.
	BatchMaxOps int `mapstructure:"batch-max-ops" validate:"gte=0"`
	// BatchMaxSize is the maximum estimated payload of one batch (e.g., "10MiB").
	// Empty or "0" disables the size bound.
	BatchMaxSize string `mapstructure:"batch-max-size" validate:"bytesize,bytesizemax=64MiB"`
	// FailurePolicy is either "abort" or "continue".
	FailurePolicy string `mapstructure:"batch-failure-policy" validate:"omitempty,oneof=abort continue"`
}

// BatchMaxSizeBytes returns the parsed batch size bound. Zero means unbounded.
func (c ImportConfig) BatchMaxSizeBytes() uint64 {
	if c.BatchMaxSize == "" {
		return 0
	}

	n, _ := humanize.ParseBytes(c.BatchMaxSize)

	return n
}

// Load reads flags of cmd, PDTM_* environment variables and the optional config file
// into a Config. Flags take precedence over the environment, which takes precedence
// over the file.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cmd.PersistentFlags() != nil {
		_ = v.BindPFlags(cmd.PersistentFlags())
	}

	if cmd.InheritedFlags() != nil {
		_ = v.BindPFlags(cmd.InheritedFlags())
	}

	if cmd.Flags() != nil {
		_ = v.BindPFlags(cmd.Flags())
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)

		err := v.ReadInConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %q", file)
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	cfg.Exclude = compact(cfg.Exclude)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("operation-timeout", DefaultOperationTimeout)
	v.SetDefault("retry-interval", DefaultRetryInterval)
	v.SetDefault("max-retries", DefaultMaxRetries)
	v.SetDefault("export-parallelism", DefaultExportParallelism)
	v.SetDefault("batch-max-ops", DefaultBatchMaxOps)
	v.SetDefault("batch-max-size", DefaultBatchMaxSize)
	v.SetDefault("batch-failure-policy", DefaultBatchFailurePolicy)
}

func compact(items []string) []string {
	if len(items) == 0 {
		return nil
	}

	rv := make([]string, 0, len(items))

	for _, s := range items {
		s = strings.TrimSpace(s)
		if s != "" {
			rv = append(rv, s)
		}
	}

	return rv
}
