package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout/worker"
	"github.com/cornjacket/pdv-terminal/internal/shared/config"
)

// DrainOptions holds options for the drain command.
type DrainOptions struct {
	*RootOptions
}

// DrainResult is the outcome of one manual tick.
type DrainResult struct {
	Reachable bool   `json:"reachable"`
	Skipped   bool   `json:"skipped,omitempty"`
	Attempted int    `json:"attempted"`
	Synced    int    `json:"synced"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

func (r DrainResult) String() string {
	if !r.Reachable {
		return "offline: nothing transmitted"
	}
	if r.Skipped {
		return "another drain is in progress: nothing transmitted"
	}
	if r.Error != "" {
		return fmt.Sprintf("scan failed: %s", r.Error)
	}
	return fmt.Sprintf("attempted %d, synced %d, failed %d", r.Attempted, r.Synced, r.Failed)
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DrainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Run one sync tick and exit",
		Long: `Probe connectivity once and, if online, transmit one batch of pending
fiscal documents in creation order.

Does nothing when another drain, such as the one inside a running
"pdv serve", holds the sync queue.

Exits 1 when any entry failed to transmit; failed entries stay pending.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(opts, cmd)
		},
	}

	return cmd
}

func runDrain(opts *DrainOptions, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	ctx := cmd.Context()
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer closeStore()

	prober, err := newProber(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create connectivity probe", err)
	}

	transmitter, closeTransmitter, err := newTransmitter(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create transmitter", err)
	}
	defer closeTransmitter()

	w := worker.New(store, prober, transmitter, workerConfig(cfg), logger)
	tick := w.Tick(ctx)

	result := DrainResult{
		Reachable: tick.Reachable,
		Skipped:   tick.Skipped,
		Attempted: tick.Attempted,
		Synced:    tick.Synced,
		Failed:    tick.Failed,
	}
	if tick.Err != nil {
		result.Error = tick.Err.Error()
	}

	if err := out.Success(result); err != nil {
		return err
	}

	switch {
	case tick.Err != nil:
		return WrapExitError(ExitCommandError, "failed to scan sync queue", tick.Err)
	case tick.Failed > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d entries failed", tick.Failed, tick.Attempted))
	}
	return nil
}
