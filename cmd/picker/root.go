package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/metrics"
	"github.com/uyouii/optimal-stopping/picker"
	"github.com/uyouii/optimal-stopping/source"
	"github.com/uyouii/optimal-stopping/utils"
)

const (
	sourceSynthetic = "synthetic"
	sourceCSV       = "csv"
	sourceRedis     = "redis"
)

type runFlags struct {
	configPath  string
	envFile     string
	source      string
	file        string
	column      string
	redisAddr   string
	redisKey    string
	selection   string
	seed        uint64
	estimator   string
	rule        string
	length      int
	warmup      int
	drift       bool
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "picker",
		Short:         "Online optimal-stopping picker over a bounded price stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Observe the stream and keep at most one item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "yaml config file, defaults when empty")
	flags.StringVar(&f.envFile, "env-file", ".env", "optional dotenv file with PICKER_* variables")
	flags.StringVar(&f.source, "source", sourceSynthetic, "item source: synthetic | csv | redis")
	flags.StringVar(&f.file, "file", "", "price file for --source csv")
	flags.StringVar(&f.column, "column", source.DefaultPriceColumn, "price column in the csv header")
	flags.StringVar(&f.redisAddr, "redis-addr", "", "redis address, or PICKER_REDIS_ADDR")
	flags.StringVar(&f.redisKey, "redis-key", "", "redis list holding the price feed, or PICKER_REDIS_KEY")
	flags.StringVar(&f.selection, "selection-key", "", "redis key the kept item is written to")
	flags.Uint64Var(&f.seed, "seed", 0, "random seed for the estimator and the synthetic stream")
	flags.StringVar(&f.estimator, "estimator", "", "override estimator: gmm | kde")
	flags.StringVar(&f.rule, "rule", "", "override stopping rule: penalized | tail_risk")
	flags.IntVar(&f.length, "length", 0, "override stream length")
	flags.IntVar(&f.warmup, "warmup", -1, "override warm-up length, 0 disables warm-up")
	flags.BoolVar(&f.drift, "drift", false, "enable the change point monitor")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus /metrics on this address")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "yaml config file")
	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyFlags overrides config fields with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg config.Config, f *runFlags) config.Config {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg = cfg.WithSeed(f.seed)
	}
	if f.estimator != "" {
		cfg.Estimator = f.estimator
	}
	if f.rule != "" {
		cfg.Rule = f.rule
	}
	if f.length > 0 {
		cfg.StreamLength = f.length
	}
	if f.warmup >= 0 {
		cfg.WarmupLength = f.warmup
	}
	if f.drift {
		cfg.Drift.Enabled = true
	}
	return cfg
}

func run(cmd *cobra.Command, f *runFlags) error {
	ctx := utils.WithRunID(cmd.Context(), uuid.NewString())

	if err := godotenv.Load(f.envFile); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("load env file", zap.String("file", f.envFile), zap.Error(err))
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	cfg = applyFlags(cmd, cfg, f)
	if err := utils.InitLogger(cfg.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := utils.GetLogger(ctx)

	items, err := openSource(ctx, f, &cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	if f.metricsAddr != "" {
		metrics.Serve(ctx, f.metricsAddr, reg)
	}
	p, err := picker.New(cfg, items, picker.WithRecorder(metrics.New(reg)))
	if err != nil {
		return multierr.Append(err, picker.Close(items))
	}

	outcome, err := picker.RunAndClose(ctx, p)
	if err != nil {
		return err
	}
	logger.Info("picker done", zap.Stringer("state", outcome.State), zap.Int("index", outcome.Index),
		zap.Float64("price", outcome.Price), zap.Int("observed", outcome.Observed),
		zap.Int("skipped", outcome.SkippedEvals), zap.Int("drift", outcome.DriftDetected))
	fmt.Fprintln(cmd.OutOrStdout(), outcome.DebugString())
	return nil
}

// openSource builds the item source. File backed sources cap the stream length to the
// number of prices they hold.
func openSource(ctx context.Context, f *runFlags, cfg *config.Config) (picker.ItemSource, error) {
	logger := utils.GetLogger(ctx)

	switch f.source {
	case sourceSynthetic:
		seed := uint64(time.Now().UnixNano())
		if cfg.RandomSeed != nil {
			seed = *cfg.RandomSeed
		}
		return source.NewSyntheticSource(source.DefaultMixture, cfg.StreamLength, seed)

	case sourceCSV:
		if f.file == "" {
			return nil, fmt.Errorf("--file is required for the csv source")
		}
		s, err := source.LoadCSV(f.file, f.column)
		if err != nil {
			return nil, err
		}
		if s.Len() < cfg.StreamLength {
			logger.Warn("price file shorter than stream length", zap.Int("prices", s.Len()),
				zap.Int("streamLength", cfg.StreamLength))
			cfg.StreamLength = s.Len()
		}
		return s, nil

	case sourceRedis:
		opts := source.RedisOptions{
			Addr:         firstNonEmpty(f.redisAddr, os.Getenv("PICKER_REDIS_ADDR"), "localhost:6379"),
			Password:     os.Getenv("PICKER_REDIS_PASSWORD"),
			Key:          firstNonEmpty(f.redisKey, os.Getenv("PICKER_REDIS_KEY")),
			SelectionKey: firstNonEmpty(f.selection, os.Getenv("PICKER_SELECTION_KEY")),
		}
		return source.NewRedisSource(ctx, opts)
	}
	return nil, fmt.Errorf("unknown source %q", f.source)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
