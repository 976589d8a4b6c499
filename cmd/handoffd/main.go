package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artemis/handoffd/internal/cleaner"
	"github.com/artemis/handoffd/internal/config"
	"github.com/artemis/handoffd/internal/ledger"
	"github.com/artemis/handoffd/internal/observability"
	"github.com/artemis/handoffd/internal/porter"
	"github.com/artemis/handoffd/internal/supervisor"
	"github.com/artemis/handoffd/internal/tracker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger *observability.Logger
	cfg    *config.Config
)

// Exit codes per spec.md §6: 0 success, 1 configuration error, 2 runtime
// failure.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitRuntimeFailure = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitRuntimeFailure)
	}
}

var rootCmd = &cobra.Command{
	Use:   "handoffd <config>",
	Short: "Relocate files from a local buffer to a remote endpoint",
	Long: `handoffd watches a local buffer directory, transfers new files to a
remote endpoint over a configurable remote-shell/remote-copy command family,
and relocates successfully transferred files into a local holding area.`,
}

func init() {
	var initLogger *observability.Logger
	initLogger, _ = observability.NewLogger("info")
	logger = initLogger

	rootCmd.AddCommand(initdbCmd, dropdbCmd, validateCmd, runCmd)
}

func loadConfig(path string) {
	var err error
	cfg, err = config.Load(path)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		os.Exit(exitConfigError)
	}
	if cfg.Logging.Level != "" {
		if l, err := observability.NewLogger(cfg.Logging.Level); err == nil {
			logger = l
		} else {
			logger.Warn("failed to apply configured log level, keeping default", zap.Error(err))
		}
	}
}

var validateCmd = &cobra.Command{
	Use:   "validate <config>",
	Short: "Validate a configuration file against its schema",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		loadConfig(args[0])
		logger.Info("configuration is valid", zap.Any("config", cfg.Redact()))
	},
}

var initdbCmd = &cobra.Command{
	Use:   "initdb <config>",
	Short: "Create the ledger's tables",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		loadConfig(args[0])
		store, err := openStore()
		if err != nil {
			logger.Error("failed to open ledger", zap.Error(err))
			os.Exit(exitConfigError)
		}
		defer store.Close()

		if err := store.Init(context.Background()); err != nil {
			logger.Error("failed to create ledger tables", zap.Error(err))
			os.Exit(exitRuntimeFailure)
		}
		logger.Info("ledger tables created")
	},
}

var dropdbCmd = &cobra.Command{
	Use:   "dropdb <config>",
	Short: "Drop the ledger's tables",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		loadConfig(args[0])
		store, err := openStore()
		if err != nil {
			logger.Error("failed to open ledger", zap.Error(err))
			os.Exit(exitConfigError)
		}
		defer store.Close()

		if err := store.Drop(context.Background()); err != nil {
			logger.Error("failed to drop ledger tables", zap.Error(err))
			os.Exit(exitRuntimeFailure)
		}
		logger.Info("ledger tables dropped")
	},
}

var runCmd = &cobra.Command{
	Use:   "run <config>",
	Short: "Start the supervisor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		loadConfig(args[0])
		if err := runSupervisor(); err != nil {
			logger.Error("supervisor exited with error", zap.Error(err))
			os.Exit(exitRuntimeFailure)
		}
	},
}

func openStore() (*ledger.MySQLStore, error) {
	return ledger.NewMySQLStore(cfg.Database.Engine, ledger.Options{
		PoolClass: cfg.Database.PoolClass,
		Echo:      cfg.Database.Echo,
		Logger:    logger.Logger,
	})
}

func runSupervisor() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	healthChecker := observability.NewHealthChecker()
	healthChecker.RegisterCheck("ledger", observability.LedgerHealthCheck(store.Ping))
	go healthChecker.StartPeriodic(ctx, 30*time.Second)

	metrics := observability.NewMetrics()

	trk := tracker.New(store, logger.Logger)
	trk.ChunkSize = cfg.General.ChunkSize
	trk.Method = cfg.General.ChecksumMethod
	rec := tracker.NewRecorder(trk)

	porterCfg := porter.Config{
		User:      cfg.Endpoint.User,
		Host:      cfg.Endpoint.Host,
		Buffer:    cfg.Endpoint.Buffer,
		Staging:   cfg.Endpoint.Staging,
		Commands:  cfg.Endpoint.Commands,
		ChunkSize: cfg.General.ChunkSize,
		Timeout:   cfg.General.Timeout(),
	}
	p, err := porter.New(porterCfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("building porter: %w", err)
	}
	w, err := porter.NewWiper(porterCfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("building wiper: %w", err)
	}

	mover, err := cleaner.NewMover(cfg.Handoff.Holding, logger.Logger)
	if err != nil {
		return fmt.Errorf("building mover: %w", err)
	}
	eraser, err := cleaner.NewEraser(cfg.Handoff.Buffer,
		time.Duration(cfg.General.ExpirationTime)*time.Second, logger.Logger)
	if err != nil {
		return fmt.Errorf("building eraser: %w", err)
	}

	sup, err := supervisor.New(cfg.Handoff.Buffer, cfg.General.ExcludeList, trk, rec, p, w, mover, eraser, supervisor.Config{
		NumThreads: cfg.General.NumThreads,
		Pause:      time.Duration(cfg.General.Pause) * time.Second,
	}, metrics, logger.Logger)
	if err != nil {
		return fmt.Errorf("building supervisor: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	logger.Info("starting supervisor", zap.String("buffer", cfg.Handoff.Buffer))
	err = sup.Run(ctx)
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
