package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout"
	"github.com/cornjacket/pdv-terminal/internal/shared/config"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/postgres"
)

const shutdownTimeout = 30 * time.Second

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	*RootOptions
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout API and the sync worker",
		Long: `Run the terminal: the local checkout API that commits sales, and the
background worker that transmits pending fiscal documents while online.

Configuration is read from PDV_* environment variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	return cmd
}

func runServe(_ *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger := newLogger(cmd.OutOrStdout(), cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting pdv terminal",
		"terminal_id", cfg.TerminalID,
		"env", cfg.Env,
		"store", cfg.StoreDriver,
		"transport", cfg.Transport,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer closeStore()

	builder, err := newBuilder(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create document builder", err)
	}

	prober, err := newProber(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create connectivity probe", err)
	}

	transmitter, closeTransmitter, err := newTransmitter(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create transmitter", err)
	}
	defer closeTransmitter()

	svc, err := checkout.Start(ctx, checkout.Config{
		Port:           cfg.Port,
		DegradedCommit: cfg.DegradedCommit,
		Worker:         workerConfig(cfg),
	}, store, builder, prober, transmitter, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start checkout service", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// With Postgres, commits made by other processes wake the worker too.
	if cfg.StoreDriver == config.DriverPostgres {
		listener := postgres.NewListener(cfg.DatabaseURL, svc.Worker.Nudge, logger)
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return svc.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "shutdown error", err)
	}

	logger.Info("pdv terminal stopped")
	return nil
}
