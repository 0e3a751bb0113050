package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fintwitch/sessiond/internal/adapter/remote"
	"github.com/fintwitch/sessiond/internal/adapter/repository/sqlite"
	"github.com/fintwitch/sessiond/internal/config"
	"github.com/fintwitch/sessiond/internal/logger"
	"github.com/fintwitch/sessiond/internal/notify"
	"github.com/fintwitch/sessiond/internal/usecase/reconcile"
	"github.com/fintwitch/sessiond/internal/usecase/session"
)

var (
	flagConfig  string
	flagDataDir string
)

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "Local profile reconciliation daemon",
	Long: "sessiond keeps the local profile ledger authoritative and continuously " +
		"reconciles it against the remote collaborators.",
	RunE: runDaemon,
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Config file path (default: "+config.Path()+")")
	rootCmd.Flags().StringVarP(&flagDataDir, "data-dir", "d", "", "Override data directory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(_ *cobra.Command, _ []string) error {
	log := logger.New()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	dataDir := cfg.Data.Dir
	if flagDataDir != "" {
		dataDir = flagDataDir
	}
	if dataDir == "" {
		dataDir = config.Dir()
	}

	// The store degrades to memory on its own; no fatal path here.
	store := sqlite.Open(filepath.Join(dataDir, "profile.db"), logger.Component(log, "store"))
	defer func() { _ = store.Close() }()

	auth := remote.NewAuthClient(cfg.Collaborators.AuthURL)

	svc := session.New(session.Deps{
		Store:     store,
		Auth:      auth,
		Remote:    remote.NewProfileClient(cfg.Collaborators.ProfileURL),
		Analytics: remote.NewAnalyticsClient(cfg.Collaborators.AnalyticsURL),
		Budget:    remote.NewBudgetClient(cfg.Collaborators.BudgetURL),
		Events:    remote.NewEventsClient(cfg.Collaborators.EventsURL),
		Notifier:  notify.NewLogNotifier(logger.Component(log, "notify")),
		Log:       logger.Component(log, "session"),
	}, session.Config{
		BlockThreshold:    decimal.NewFromFloat(cfg.Engine.BlockThreshold),
		RecoveryThreshold: decimal.NewFromFloat(cfg.Engine.RecoveryThreshold),
		PollInterval:      cfg.Engine.PollInterval.Duration(),
		Reconcile: reconcile.Options{
			FetchTimeout: cfg.Engine.FetchTimeout.Duration(),
			WriteTimeout: cfg.Engine.WriteTimeout.Duration(),
			SyncDebounce: cfg.Engine.SyncDebounce.Duration(),
			SignupGrace:  cfg.Engine.SignupGrace.Duration(),
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	log.Info().Str("data_dir", dataDir).Msg("sessiond started")

	waitForShutdown(log)

	svc.Close()
	log.Info().Msg("sessiond stopped")
	return nil
}

func waitForShutdown(log zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
}
