package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/threadpost/internal/config"
	"github.com/roach88/threadpost/internal/runner"
	"github.com/roach88/threadpost/internal/scheduler"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	DryRun   bool
	Now      string

	// Runner overrides the run driver options (for testing). Logger and
	// DryRun are always set from flags.
	Runner runner.Options
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish every due item once",
		Long: `Run one publishing pass.

Due items are published in thread order: roots first, then replies by thread
position. A reply whose parent has not been posted yet is left scheduled for
a later pass. Item failures are reported in the summary and do not change the
exit code.

Example:
  threadpost run --config threadpost.yaml
  threadpost run --db ./threadpost.db --dry-run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log messages instead of publishing and persist nothing")
	cmd.Flags().StringVar(&opts.Now, "now", "", "evaluate due items at this RFC3339 time instead of the current time")

	return cmd
}

func runPublish(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	now, err := parseNow(opts.Now)
	if err != nil {
		return err
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ropts := opts.Runner
	ropts.Logger = newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr())
	ropts.DryRun = opts.DryRun

	summary, err := runner.Run(ctx, cfg, now, ropts)
	if err != nil {
		if config.IsConfigError(err) {
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Render(summary, func(w io.Writer) error {
		return writeSummary(w, summary)
	})
}

func writeSummary(w io.Writer, s scheduler.Summary) error {
	if _, err := fmt.Fprintf(w, "Run %s: %d due, %d posted, %d failed, %d deferred, %d skipped\n",
		s.RunID, s.Due, s.Posted, s.Failed, s.Deferred, s.Skipped); err != nil {
		return err
	}
	for _, r := range s.Results {
		line := fmt.Sprintf("  %-8s %s %q", r.Disposition, r.ItemID, r.Title)
		if r.ExternalID != "" {
			line += " -> " + r.ExternalID
		}
		if r.Error != "" {
			line += " (" + r.Error + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
