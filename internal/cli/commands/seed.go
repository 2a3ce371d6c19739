package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <table> <csv-file>",
		Short: "Load a CSV file into a table of the local engine",
		Long: `Load a CSV file into a table of the in-process engine, replacing the table
if it exists.

Seeded tables can back dictionaries whose source points at this process.`,
		Example: `  # Create the events table from a CSV file
  leapdict seed events ./seeds/events.csv --database dict.duckdb`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args[0], args[1])
		},
	}

	return cmd
}

func runSeed(cmd *cobra.Command, tableName, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("seed file: %w", err)
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if err := cc.Engine.Adapter().LoadCSV(ctx, tableName, path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	meta, err := cc.Engine.Adapter().GetTableMetadata(ctx, tableName)
	if err != nil {
		return err
	}

	cc.Logger.Info("seed loaded", "table", tableName, "file", path, "rows", meta.RowCount)

	w := cmd.OutOrStdout()
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable"})
	for _, col := range meta.Columns {
		t.AppendRow(table.Row{col.Name, col.Type, col.Nullable})
	}
	t.Render()

	_, _ = fmt.Fprintf(w, "Loaded %d rows into %s\n", meta.RowCount, tableName)
	return nil
}
