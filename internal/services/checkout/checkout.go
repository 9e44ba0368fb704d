// Package checkout commits sales and exposes them to the checkout UI.
// Every committed sale carries a signed fiscal document in the sync
// queue; the worker subpackage delivers it once the terminal is online.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout/worker"
)

// Config holds configuration for the checkout service.
type Config struct {
	Port           int
	DegradedCommit bool
	Worker         worker.Config
}

// RunningService represents a started checkout service.
type RunningService struct {
	// Worker drains the sync queue. Exposed so other triggers can nudge it.
	Worker *worker.Worker
	// Shutdown stops the HTTP server and then the worker. An in-flight
	// drain is allowed to finish within ctx.
	Shutdown func(ctx context.Context) error
}

// Start starts the checkout HTTP server and the sync worker.
// It creates all internal wiring (service, handler, routes) from the provided store.
// The transmitter is the service's output: where signed documents are sent upstream.
func Start(
	ctx context.Context,
	cfg Config,
	store Store,
	builder DocumentBuilder,
	prober worker.Prober,
	transmitter worker.Transmitter,
	logger *slog.Logger,
) (*RunningService, error) {
	logger = logger.With("service", "checkout")

	w := worker.New(store, prober, transmitter, cfg.Worker, logger)

	// Wire service → handler → routes → HTTP server
	svc := NewService(store, builder, Options{Nudger: w, DegradedCommit: cfg.DegradedCommit}, logger)
	handler := NewHandler(svc, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start sync worker: %w", err)
	}

	go func() {
		logger.Info("starting checkout server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("checkout server error", "error", err)
		}
	}()

	return &RunningService{
		Worker: w,
		Shutdown: func(shutdownCtx context.Context) error {
			logger.Info("shutting down checkout service")
			serverErr := server.Shutdown(shutdownCtx)
			workerErr := w.Stop(shutdownCtx)
			return errors.Join(serverErr, workerErr)
		},
	}, nil
}
