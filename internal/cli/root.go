// Package cli provides the command-line interface for leapdict.
package cli

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/leapdict/internal/cli/commands"
	"github.com/leapstack-labs/leapdict/internal/cli/config"
	"github.com/leapstack-labs/leapdict/pkg/locality"
	"github.com/spf13/cobra"

	// Engines and source kinds register themselves.
	_ "github.com/leapstack-labs/leapdict/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapdict/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapdict/pkg/sources/node"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leapdict",
		Short: "leapdict - dictionary loader",
		Long: `leapdict keeps in-memory lookup dictionaries loaded from database tables.

Each dictionary names a source table on an engine instance. When that instance
is this process, the table is read in-process. Otherwise it is streamed over a
pooled connection.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger, err := config.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			// Sources compare their port against this one to detect that
			// they point back at this process.
			locality.SetServicePort(cfg.Server.TCPPort)

			if path := config.GetConfigFileUsed(); path != "" {
				logger.Debug("using config file", "path", path)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./leapdict.yaml)")
	rootCmd.PersistentFlags().Int("tcp-port", 0, "Service port of this process")
	rootCmd.PersistentFlags().Int("http-port", 0, "HTTP port for serve")
	rootCmd.PersistentFlags().String("engine", "", "Local engine type (duckdb|postgres)")
	rootCmd.PersistentFlags().String("database", "", "Local engine database (path or :memory:)")
	rootCmd.PersistentFlags().Int("workers", 0, "Concurrent dictionary loaders")
	rootCmd.PersistentFlags().Duration("interval", 0, "Default dictionary lifetime")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")
	rootCmd.PersistentFlags().String("state", "", "Load history database (empty disables history)")

	_ = rootCmd.RegisterFlagCompletionFunc("engine", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"duckdb", "postgres"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{Version: Version, BuildDate: BuildDate, GitCommit: GitCommit}))
	rootCmd.AddCommand(commands.NewLoadCommand())
	rootCmd.AddCommand(commands.NewLocalityCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewSeedCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
