package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cornjacket/pdv-terminal/internal/shared/config"
)

// MigrateOptions holds options for the migrate command.
type MigrateOptions struct {
	*RootOptions
}

// MigrateResult is printed after a successful migration.
type MigrateResult struct {
	Driver string `json:"driver"`
}

func (r MigrateResult) String() string {
	return fmt.Sprintf("%s schema is up to date", r.Driver)
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply pending schema migrations to the configured store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	// Opening a store migrates it.
	_, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		_ = out.Error(err.Error())
		return WrapExitError(ExitCommandError, "migration failed", err)
	}
	closeStore()

	return out.Success(MigrateResult{Driver: cfg.StoreDriver})
}
