package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/threadpost/internal/compose"
	"github.com/roach88/threadpost/internal/content"
	"github.com/roach88/threadpost/internal/runner"
	"github.com/roach88/threadpost/internal/scheduler"
)

// DueOptions holds flags for the due command.
type DueOptions struct {
	*RootOptions
	Database string
	Now      string
}

// DueItem is one row of the due listing.
type DueItem struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	ParentID       string     `json:"parent_id,omitempty"`
	ThreadPosition int        `json:"thread_position"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Text           string     `json:"text"`
	Length         int        `json:"length"`
}

// NewDueCommand creates the due command.
func NewDueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List due items in publish order without publishing",
		Long: `List the items the next run would visit, in the order it would
visit them, with the composed message text.

Example:
  threadpost due --db ./threadpost.db
  threadpost due --now 2026-03-01T12:00:00Z --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDue(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Now, "now", "", "evaluate due items at this RFC3339 time instead of the current time")

	return cmd
}

func listDue(opts *DueOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	now, err := parseNow(opts.Now)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	repo, err := runner.OpenRepository(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open repository", err)
	}
	defer repo.Close()

	sched := scheduler.New(repo, nil, scheduler.WithMaxLength(cfg.MaxLength))
	items, err := sched.Due(ctx, now)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list due items", err)
	}

	rows := make([]DueItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, dueItem(it, cfg.MaxLength))
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Render(rows, func(w io.Writer) error {
		return writeDue(w, rows)
	})
}

func dueItem(it content.Item, limit int) DueItem {
	text := compose.ForItem(it, limit)
	return DueItem{
		ID:             it.ID,
		Title:          it.Label(),
		ParentID:       it.Parent(),
		ThreadPosition: it.Position(),
		ScheduledAt:    it.ScheduledAt,
		Text:           text,
		Length:         compose.Length(text),
	}
}

func writeDue(w io.Writer, rows []DueItem) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No items due.")
		return err
	}
	for i, r := range rows {
		where := "root"
		if r.ParentID != "" {
			where = "reply to " + r.ParentID
		}
		if _, err := fmt.Fprintf(w, "%d. %s %q (%s, position %d, %d chars)\n",
			i+1, r.ID, r.Title, where, r.ThreadPosition, r.Length); err != nil {
			return err
		}
	}
	return nil
}
