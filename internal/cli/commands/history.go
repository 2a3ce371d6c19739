package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdict/internal/cli/config"
	"github.com/leapstack-labs/leapdict/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [dictionary]",
		Short: "Show recent dictionary loads",
		Long: `Show recent load attempts recorded in the state database, newest first.

Loads are only recorded when state.path (or --state) is set.`,
		Example: `  # Show the last 20 loads of every dictionary
  leapdict history

  # Show the last 5 loads of one dictionary
  leapdict history events --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum number of loads to show (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cmd.Context(), cfg, config.GetLogger(cmd.Context()))
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("load history is disabled\nHint: set state.path in leapdict.yaml or pass --state")
	}
	defer func() { _ = store.Close() }()

	var dictionary string
	if len(args) == 1 {
		dictionary = args[0]
	}

	loads, err := store.ListLoads(cmd.Context(), dictionary, opts.Limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(loads) == 0 {
		_, _ = fmt.Fprintln(w, "No loads recorded")
		return nil
	}
	renderHistory(w, loads)
	return nil
}

func renderHistory(w io.Writer, loads []state.LoadRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Started", "Dictionary", "Path", "Rows", "Took", "Status"})

	for _, rec := range loads {
		status := "ok"
		if rec.Failed() {
			status = rec.Error
		}
		t.AppendRow(table.Row{
			rec.StartedAt.Format(time.DateTime),
			rec.Dictionary,
			rec.Path,
			rec.Rows,
			rec.Duration.Round(time.Millisecond),
			status,
		})
	}
	t.Render()
}
