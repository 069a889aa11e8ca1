package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/rieriver/sextsieve/internal/config"
	apperrors "github.com/rieriver/sextsieve/internal/errors"
	"github.com/rieriver/sextsieve/internal/logging"
	"github.com/rieriver/sextsieve/internal/monitoring"
	"github.com/rieriver/sextsieve/internal/rpc"
	"github.com/rieriver/sextsieve/internal/sieve"
	"github.com/rieriver/sextsieve/internal/utils"
)

var (
	statsInterval time.Duration
	daemonMode    bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Load the prime table and begin searching for sextuplets",
	Long: `start builds the prime table described by the sieve section of the
config file, connects to the RPC target described by the miner section,
and runs the search loop until the process receives SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().DurationVar(&statsInterval, "stats-interval", 30*time.Second, "how often to print the stats table and refresh metrics")
	startCmd.Flags().BoolVar(&daemonMode, "daemon", false, "suppress the stdout stats table (logs remain on the configured log output)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = utils.SanitizeString(logLevel)
	}

	loggerFactory, err := logging.NewLoggerFactory(toLogConfig(cfg.Log))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer loggerFactory.Sync()
	logger := loggerFactory.GetLogger("sextsieve")

	undoMaxProcs, err := maxprocs.Set(maxprocs.Logger(func(format string, a ...interface{}) {
		logger.Sugar().Infof(format, a...)
	}))
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS from cgroup limits", zap.Error(err))
	}
	defer undoMaxProcs()

	logger.Info("cpu features detected",
		zap.String("brand", cpuid.CPU.BrandName),
		zap.Bool("avx2", cpuid.CPU.Supports(cpuid.AVX2)),
		zap.Bool("popcnt", cpuid.CPU.Supports(cpuid.POPCNT)))

	threads := cfg.Miner.Threads
	if threads <= 0 {
		logical, err := cpu.Counts(true)
		if err != nil || logical <= 0 {
			logical = 1
		}
		threads = logical
	}
	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		logger.Info("cpu topology", zap.Int32("cache_size_kb", info[0].CacheSize), zap.String("model", info[0].ModelName))
	}

	table, err := sieve.NewPrimeTable(cfg.Sieve.SieveMax, cfg.Sieve.PrimorialNumber)
	if err != nil {
		return fmt.Errorf("build prime table: %w", err)
	}
	logger.Info("prime table built",
		zap.Uint32("n_primes", table.NPrimes),
		zap.Uint32("primorial_number", table.PrimorialNumber),
		zap.Int("threads", threads))

	errHandler := apperrors.NewHandler(logger)
	rpcClient := rpc.NewClient(logger, cfg.Miner.RPCURL, cfg.Miner.RPCUser, cfg.Miner.RPCPassword)
	metricsExporter := monitoring.NewMetricsExporter(logger, cfg.Metrics)

	opts := []sieve.MinerOption{sieve.WithPhaseRecorder(metricsExporter)}
	if cfg.Miner.DedupTTL > 0 {
		opts = append(opts, sieve.WithDedup(cfg.Miner.DedupTTL))
	}
	miner := sieve.NewMiner(table, threads, cfg.Miner.TuplesRequired, logger, errHandler, rpcClient, rpcClient, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	go func() {
		if err := metricsExporter.Start(ctx); err != nil {
			logger.Error("metrics exporter stopped with error", zap.Error(err))
		}
	}()

	watcher, err := config.NewWatcher(cfgFile, logger)
	if err != nil {
		logger.Warn("config hot-reload disabled", zap.Error(err))
	} else {
		go watcher.Watch(func(newCfg *config.Config) {
			logger.Info("config file changed; the running miner keeps its startup configuration",
				zap.Uint8("tuples_required", newCfg.Miner.TuplesRequired),
				zap.String("log_level", newCfg.Log.Level))
		})
		defer watcher.Close()
	}

	go statsLoop(ctx, logger, miner, errHandler, metricsExporter, statsInterval, daemonMode)

	runErr := make(chan error, 1)
	go func() { runErr <- miner.Run(rpcClient) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-runErr:
		if err != nil {
			logger.Error("search loop exited with error", zap.Error(err))
			return err
		}
	}

	return nil
}

// toLogConfig maps the subset of fields config.LogConfig controls onto the
// full logging.LogConfig the factory expects; fields the config file leaves
// unexposed (per-module levels, host/version stamping) keep the factory's
// own defaults.
func toLogConfig(c config.LogConfig) *logging.LogConfig {
	def := logging.DefaultLogConfig()
	def.Level = c.Level
	def.Encoding = c.Encoding
	def.OutputPath = c.OutputPath
	def.ErrorOutputPath = c.ErrorOutputPath
	def.Development = c.Development
	def.MaxSizeMB = c.MaxSizeMB
	def.MaxBackups = c.MaxBackups
	def.MaxAgeDays = c.MaxAgeDays
	def.Compress = c.Compress
	def.DisableCaller = c.DisableCaller
	def.DisableStacktrace = c.DisableStack
	return def
}
