package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/threadpost/internal/compose"
	"github.com/roach88/threadpost/internal/config"
	"github.com/roach88/threadpost/internal/content"
	"github.com/roach88/threadpost/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// ImportFile is the YAML layout accepted by import.
type ImportFile struct {
	Items []ImportItem `yaml:"items"`
}

// ImportItem is one item in an import file.
type ImportItem struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Platform    string     `yaml:"platform"`
	Body        string     `yaml:"body"`
	Mentions    []string   `yaml:"mentions"`
	Tags        []string   `yaml:"tags"`
	ScheduledAt *time.Time `yaml:"scheduled_at"`
	Parent      string     `yaml:"parent"`
	Position    *int       `yaml:"position"`
}

// ImportResult is the import command's output.
type ImportResult struct {
	Imported int      `json:"imported"`
	IDs      []string `json:"ids"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Load scheduled items into the SQLite store",
		Long: `Load content items from a YAML file into the SQLite store.

Items without an id get a generated one. A reply names its parent by id; the
parent may be earlier in the same file or already in the store.

Example:
  threadpost import --db ./threadpost.db launch-thread.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return importItems(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func importItems(opts *ImportOptions, path string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return NewExitError(ExitCommandError, "import writes to the sqlite store only; pass --db")
	}

	file, err := readImportFile(path)
	if err != nil {
		return err
	}
	items, err := file.toItems()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid import file", err)
	}

	st, err := store.Open(cfg.Database.Path, store.WithPlatform(cfg.Platform))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open database", err)
	}
	defer st.Close()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	result := ImportResult{IDs: make([]string, 0, len(items))}
	for _, it := range items {
		stored, err := st.InsertItem(cmd.Context(), it)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("imported %d of %d items", result.Imported, len(items)), err)
		}
		formatter.VerboseLog("imported %s (%s)", stored.ID, stored.Label())
		result.Imported++
		result.IDs = append(result.IDs, stored.ID)
	}

	return formatter.Render(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Imported %d items.\n", result.Imported)
		return err
	})
}

func readImportFile(path string) (*ImportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read import file", err)
	}
	var file ImportFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, WrapExitError(ExitCommandError, "failed to parse import file", err)
	}
	return &file, nil
}

func (f *ImportFile) toItems() ([]content.Item, error) {
	var problems []string
	items := make([]content.Item, 0, len(f.Items))

	for i, in := range f.Items {
		if strings.TrimSpace(in.Body) == "" {
			problems = append(problems, fmt.Sprintf("item %d: body is required", i+1))
			continue
		}
		if in.Parent != "" && in.Parent == in.ID {
			problems = append(problems, fmt.Sprintf("item %d: item cannot be its own parent", i+1))
			continue
		}

		mentions, err := compose.EncodeList(in.Mentions)
		if err != nil {
			return nil, err
		}
		tags, err := compose.EncodeList(in.Tags)
		if err != nil {
			return nil, err
		}

		it := content.Item{
			ID:             in.ID,
			Title:          in.Title,
			Platform:       in.Platform,
			Status:         content.StatusScheduled,
			Body:           in.Body,
			Mentions:       mentions,
			Tags:           tags,
			ThreadPosition: in.Position,
		}
		if in.ScheduledAt != nil {
			at := in.ScheduledAt.UTC()
			it.ScheduledAt = &at
		}
		if in.Parent != "" {
			parent := in.Parent
			it.ParentID = &parent
		}
		items = append(items, it)
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return items, nil
}
