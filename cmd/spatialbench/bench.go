package main

import (
	"bytes"
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkilian/spatialbench/internal/bench"
	"github.com/arkilian/spatialbench/internal/catalog"
	"github.com/arkilian/spatialbench/internal/config"
	"github.com/arkilian/spatialbench/internal/observability"
	"github.com/arkilian/spatialbench/internal/server"
	"github.com/arkilian/spatialbench/internal/storage"
	"github.com/arkilian/spatialbench/pkg/types"
)

type benchFlags struct {
	repetitions int
	workers     int
	mode        string
	shuffle     bool
	seed        int64
	rate        float64
	format      string
	output      string
	archive     string
	history     string
	metricsAddr string
}

func newBenchCmd(g *globalFlags) *cobra.Command {
	f := &benchFlags{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the standard query benchmark against a core",
		Example: `  spatialbench bench -c points -u http://localhost:8983/solr -r 100 -t 4
  spatialbench bench -c points -u http://localhost:8983/solr --mode per-query --format summary
  spatialbench bench --config bench.yaml --history runs.db --archive s3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&f.repetitions, "repetitions", "r", 1, "Timed repetitions per query type")
	fl.IntVarP(&f.workers, "workers", "t", 1, "Number of concurrent workers")
	fl.StringVar(&f.mode, "mode", string(config.ModeInterQuery), "Scheduling mode: inter-query, per-query, serial")
	fl.BoolVar(&f.shuffle, "shuffle", true, "Shuffle tasks before partitioning them over workers")
	fl.Int64Var(&f.seed, "seed", 0, "Shuffle seed (0 derives one from the run id)")
	fl.Float64Var(&f.rate, "rate", 0, "Per-worker query rate limit in queries per second (0 is unlimited)")
	fl.StringVar(&f.format, "format", bench.FormatSamples, "Report format: samples, summary")
	fl.StringVarP(&f.output, "output", "o", "", "Report file (default stdout)")
	fl.StringVar(&f.archive, "archive", "", "Archive reports to: none, local, s3")
	fl.StringVar(&f.history, "history", "", "SQLite run-history database")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address during the run")
	return cmd
}

// applyBenchFlags overlays the explicitly set bench flags onto cfg.
func applyBenchFlags(cmd *cobra.Command, cfg *config.Config, f *benchFlags) {
	fl := cmd.Flags()
	if fl.Changed("repetitions") {
		cfg.Bench.Repetitions = f.repetitions
	}
	if fl.Changed("workers") {
		cfg.Bench.Workers = f.workers
	}
	if fl.Changed("mode") {
		cfg.Bench.Mode = config.Mode(f.mode)
	}
	if fl.Changed("shuffle") {
		cfg.Bench.Shuffle = f.shuffle
	}
	if fl.Changed("seed") {
		cfg.Bench.Seed = f.seed
	}
	if fl.Changed("rate") {
		cfg.Bench.Rate = f.rate
	}
	if fl.Changed("format") {
		cfg.Bench.Format = f.format
	}
	if fl.Changed("output") {
		cfg.Output.Path = f.output
	}
	if fl.Changed("archive") {
		cfg.Archive.Type = f.archive
	}
	if fl.Changed("history") {
		cfg.History.Path = f.history
	}
	if fl.Changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
}

func runBench(cmd *cobra.Command, g *globalFlags, f *benchFlags) error {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}
	applyBenchFlags(cmd, cfg, f)
	if err := finishConfig(cmd, cfg, true); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	reg, m := newMetrics()
	logger, err := newLogger(cmd, cfg, m)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	usage := observability.NewQueryStats(time.Hour)
	client, err := newClient(cmd, cfg, logger, m, usage)
	if err != nil {
		return err
	}

	opts := bench.OptionsFromConfig(cfg.Bench)
	opts.Logger = logger
	opts.Metrics = m
	h := bench.New(opts)

	if cfg.Metrics.Addr != "" {
		srv := server.New(server.Options{
			Addr:     cfg.Metrics.Addr,
			Gatherer: reg,
			Status: func() server.Status {
				return server.Status{RunID: h.RunID(), Phase: h.Phase().String()}
			},
			Logger: logger,
		})
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Shutdown(context.Background())
	}

	core := cfg.Index.Core
	d, err := bench.Discover(ctx, client, core, cfg.Index.Fields.ID, cfg.Index.Fields.Space, cfg.Index.Dimensions)
	if err != nil {
		return err
	}
	box, err := types.NewBoundingBox(cfg.Bench.BoxLow, cfg.Bench.BoxHigh)
	if err != nil {
		return err
	}
	queries := bench.StandardQueries(d, box)
	if err := bench.EnqueueAll(h, client, core, cfg.Bench.Repetitions, queries); err != nil {
		return err
	}

	logger.Info("starting benchmark",
		zap.String("run_id", h.RunID()),
		zap.String("core", core),
		zap.String("mode", string(cfg.Bench.Mode)),
		zap.Int("workers", cfg.Bench.Workers),
		zap.Int("repetitions", cfg.Bench.Repetitions),
		zap.Int("labels", len(d.Labels)),
	)

	result, runErr := h.Run(ctx)
	if result == nil {
		return runErr
	}

	var report bytes.Buffer
	if err := h.Report(&report, cfg.Bench.Format, result); err != nil {
		return err
	}
	if err := writeReport(cmd, cfg.Output.Path, report.Bytes()); err != nil {
		return err
	}

	key, err := archiveReport(ctx, cfg, logger, result.RunID, report.Bytes())
	if err != nil {
		logger.Error("failed to archive report", zap.Error(err))
	}

	if cfg.History.Path != "" {
		repetitions := make(map[string]int, len(queries))
		for _, q := range queries {
			repetitions[q.Label] = cfg.Bench.Repetitions
		}
		if err := recordRun(ctx, cfg, logger, catalog.RunInfo{Core: core, URL: cfg.Index.URL, Repetitions: repetitions}, result, key); err != nil {
			logger.Error("failed to record run", zap.Error(err))
		}
	}

	for _, fs := range usage.GetTopFields(5) {
		logger.Debug("field usage", zap.String("field", fs.Field), zap.Int64("count", fs.Frequency))
	}

	if runErr != nil {
		logger.Error("benchmark finished with failures",
			zap.String("run_id", result.RunID),
			zap.Int("failures", len(result.Failures)),
			zap.Error(runErr),
		)
		return runErr
	}
	logger.Info("benchmark finished",
		zap.String("run_id", result.RunID),
		zap.Duration("elapsed", result.Finished.Sub(result.Started)),
	)
	return nil
}

func writeReport(cmd *cobra.Command, path string, report []byte) error {
	w, closeFn, err := openOutput(cmd, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(report); err != nil {
		closeFn()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return closeFn()
}

// archiveReport stores the report when an archive is configured and returns
// its key, or "" when archiving is disabled.
func archiveReport(ctx context.Context, cfg *config.Config, logger *zap.Logger, runID string, report []byte) (string, error) {
	archive, err := storage.OpenArchive(ctx, cfg.Archive, logger)
	if err != nil || archive == nil {
		return "", err
	}
	return archive.Store(ctx, runID, cfg.Bench.Format, report)
}

func recordRun(ctx context.Context, cfg *config.Config, logger *zap.Logger, info catalog.RunInfo, result *bench.Result, key string) error {
	cat, err := catalog.NewCatalog(cfg.History.Path, logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	if err := cat.RecordRun(ctx, info, result); err != nil {
		return err
	}
	if key != "" {
		return cat.SetReportKey(ctx, result.RunID, key)
	}
	return nil
}
