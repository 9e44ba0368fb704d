package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cornjacket/pdv-terminal/internal/shared/config"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
)

// OutboxOptions holds options for the outbox commands.
type OutboxOptions struct {
	*RootOptions
	Reason string
}

// EntryView is the printable form of a sync queue entry.
type EntryView struct {
	ID         int64      `json:"id"`
	SaleID     int64      `json:"sale_id"`
	MessageID  string     `json:"message_id"`
	AccessKey  string     `json:"access_key"`
	Mode       string     `json:"mode"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	Protocol   string     `json:"protocol,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func newEntryView(e *outbox.Entry) EntryView {
	return EntryView{
		ID:         e.ID,
		SaleID:     e.SaleID,
		MessageID:  e.MessageID.String(),
		AccessKey:  e.AccessKey,
		Mode:       string(e.Mode),
		Status:     string(e.Status),
		Attempts:   e.Attempts,
		LastError:  e.LastError,
		Protocol:   e.Protocol,
		CreatedAt:  e.CreatedAt,
		ResolvedAt: e.ResolvedAt,
	}
}

func (v EntryView) String() string {
	s := fmt.Sprintf("entry %d (sale %d) %s %s, %d attempts", v.ID, v.SaleID, v.Mode, v.Status, v.Attempts)
	if v.Protocol != "" {
		s += ", protocol " + v.Protocol
	}
	if v.LastError != "" {
		s += ", last error: " + v.LastError
	}
	return s
}

// NewOutboxCommand creates the outbox command group.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OutboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and resolve sync queue entries",
	}

	show := &cobra.Command{
		Use:           "show <sale-id>",
		Short:         "Show the sync queue entry of a sale",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutboxShow(opts, cmd, args[0])
		},
	}

	escalate := &cobra.Command{
		Use:   "escalate <entry-id>",
		Short: "Mark a pending entry FAILED_PERMANENT",
		Long: `Take a pending entry out of the retry loop. The worker retries every
entry until it is synced; escalation is the only way to stop it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutboxEscalate(opts, cmd, args[0])
		},
	}
	escalate.Flags().StringVar(&opts.Reason, "reason", "", "why the entry is being abandoned (required)")
	_ = escalate.MarkFlagRequired("reason")

	cmd.AddCommand(show, escalate)
	return cmd
}

func runOutboxShow(opts *OutboxOptions, cmd *cobra.Command, arg string) error {
	saleID, err := parseID(arg)
	if err != nil {
		return err
	}

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

	entry, err := store.EntryBySale(ctx, saleID)
	if errors.Is(err, outbox.ErrNotFound) {
		_ = out.Error(fmt.Sprintf("no sync entry for sale %d", saleID))
		return WrapExitError(ExitFailure, "sale not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read entry", err)
	}

	return out.Success(newEntryView(entry))
}

func runOutboxEscalate(opts *OutboxOptions, cmd *cobra.Command, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	if opts.Reason == "" {
		return NewExitError(ExitCommandError, "--reason must not be empty")
	}

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

	err = store.MarkFailedPermanent(ctx, id, opts.Reason)
	switch {
	case errors.Is(err, outbox.ErrNotFound), errors.Is(err, outbox.ErrNotPending):
		_ = out.Error(err.Error())
		return WrapExitError(ExitFailure, "entry not escalated", err)
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to escalate entry", err)
	}

	logger.Warn("entry escalated", "entry_id", id, "reason", opts.Reason)
	return out.Success(fmt.Sprintf("entry %d marked %s", id, outbox.StatusFailedPermanent))
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", arg))
	}
	return id, nil
}
