package commands

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/spf13/cobra"
)

var errRowLimit = errors.New("row limit reached")

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query on the local engine",
		Long: `Run a query on the in-process engine and print the result.

Queries run here are user queries: while they run they are listed by the
/processes endpoint of a serving instance sharing the engine.`,
		Example: `  # Inspect a seeded table
  leapdict query "SELECT * FROM events ORDER BY id" --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows to print (0 for all)")
	return cmd
}

func runQuery(cmd *cobra.Command, sql string, limit int) error {
	if limit < 0 {
		return fmt.Errorf("invalid limit %d", limit)
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	stream, err := cc.Engine.Execute(ctx, sql)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	w := cmd.OutOrStdout()
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, 0, len(stream.Columns()))
	for _, c := range stream.Columns() {
		header = append(header, c.Name)
	}
	t.AppendHeader(header)

	rows, truncated := 0, false
	err = core.Drain(ctx, stream, func(b *core.Batch) error {
		for _, row := range b.Rows {
			if limit > 0 && rows == limit {
				truncated = true
				return errRowLimit
			}
			t.AppendRow(table.Row(row))
			rows++
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRowLimit) {
		return fmt.Errorf("query failed: %w", err)
	}
	t.Render()

	if truncated {
		_, _ = fmt.Fprintf(w, "Showing first %d rows\n", rows)
	} else {
		_, _ = fmt.Fprintf(w, "%d rows\n", rows)
	}
	return nil
}
