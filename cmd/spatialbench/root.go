package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arkilian/spatialbench/internal/config"
	"github.com/arkilian/spatialbench/internal/generate"
	"github.com/arkilian/spatialbench/internal/index"
	"github.com/arkilian/spatialbench/internal/logging"
	"github.com/arkilian/spatialbench/internal/metrics"
	"github.com/arkilian/spatialbench/internal/observability"
	"github.com/arkilian/spatialbench/pkg/types"
)

// globalFlags are shared by every sub-command that reads the configuration.
type globalFlags struct {
	configFile string
	url        string
	core       string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "spatialbench",
		Short: "Benchmark and explore spatial index services",
		Long: `spatialbench measures the latency of spatial queries (by label, point,
reference space, bounding box and label union) against a Solr-style index
service, keeps a history of runs, and exports query results for rendering.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	pf.StringVarP(&g.url, "url", "u", "", "Index service base URL")
	pf.StringVarP(&g.core, "core", "c", "", "Index core (collection) name")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: json, console")

	root.AddCommand(
		newBenchCmd(g),
		newQueryCmd(g),
		newHistoryCmd(g),
		newGenerateCmd(),
		newStatsCmd(),
	)
	return root
}

// loadConfig loads configuration from file and environment, then applies
// the command line flags that were explicitly set.
func loadConfig(cmd *cobra.Command, g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Index.URL = g.url
	}
	if flags.Changed("core") {
		cfg.Index.Core = g.core
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	return cfg, nil
}

// finishConfig resolves and validates cfg. Missing index settings print the
// command usage.
func finishConfig(cmd *cobra.Command, cfg *config.Config, needIndex bool) error {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if needIndex {
		if err := cfg.RequireIndex(); err != nil {
			cmd.PrintErrln(cmd.UsageString())
			return err
		}
	}
	return nil
}

// newLogger builds the process logger writing to the command's error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config, m *metrics.Metrics) (*zap.Logger, error) {
	return logging.NewLogger(logging.Config{
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Output:  zapcore.AddSync(cmd.ErrOrStderr()),
		Metrics: m,
	})
}

// newClient connects to the configured index and checks the core exists.
func newClient(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, usage *observability.QueryStats) (*index.Client, error) {
	opts, err := index.OptionsFromConfig(cfg.Index)
	if err != nil {
		return nil, err
	}
	opts.Logger = logger
	opts.Metrics = m
	opts.Stats = usage
	client, err := index.NewClient(opts)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureCore(cmd.Context(), cfg.Index.Core); err != nil {
		return nil, err
	}
	return client, nil
}

func newMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	return reg, metrics.New(reg)
}

// parseBox parses "l0,l1,..:h0,h1,.." into a bounding box.
func parseBox(s string) (types.BoundingBox, error) {
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return types.BoundingBox{}, fmt.Errorf("box %q must have the form low:high", s)
	}
	low, err := generate.ParsePoint(lo)
	if err != nil {
		return types.BoundingBox{}, err
	}
	high, err := generate.ParsePoint(hi)
	if err != nil {
		return types.BoundingBox{}, err
	}
	return types.NewBoundingBox(low, high)
}

// openOutput opens path for writing, or returns the command's stdout when
// path is empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}
