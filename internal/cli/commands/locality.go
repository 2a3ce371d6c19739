package commands

import (
	"fmt"
	"net"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdict/pkg/locality"
	"github.com/spf13/cobra"
)

// LocalityOptions holds options for the locality command.
type LocalityOptions struct {
	Interfaces bool
}

// NewLocalityCommand creates the locality command.
func NewLocalityCommand() *cobra.Command {
	opts := &LocalityOptions{}

	cmd := &cobra.Command{
		Use:   "locality <host> <port>",
		Short: "Report whether an endpoint is this process",
		Long: `Report whether a source pointing at host:port would be loaded in-process
or over the network.

An endpoint is local when its port equals server.tcp_port and the host
resolves to an address of one of this machine's interfaces.`,
		Example: `  leapdict locality 127.0.0.1 9000
  leapdict locality db1.internal 9000 --interfaces`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocality(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Interfaces, "interfaces", false, "Also list the interface addresses considered local")

	return cmd
}

func runLocality(cmd *cobra.Command, args []string, opts *LocalityOptions) error {
	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[1], err)
	}

	local, err := locality.IsLocal(cmd.Context(), host, port)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	where := "remote"
	if local {
		where = "local"
	}
	_, _ = fmt.Fprintf(w, "%s is %s (service port %d)\n", net.JoinHostPort(host, args[1]), where, locality.ServicePort())

	if opts.Interfaces {
		addrs, err := locality.InterfaceAddrs()
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Interface address"})
		for _, ip := range addrs {
			t.AppendRow(table.Row{ip.String()})
		}
		t.Render()
	}
	return nil
}
