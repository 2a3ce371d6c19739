package commands

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/leapstack-labs/leapdict/internal/cli/config"
	"github.com/leapstack-labs/leapdict/internal/dictionary"
	"github.com/leapstack-labs/leapdict/internal/metrics"
	"github.com/leapstack-labs/leapdict/internal/server"
	"github.com/leapstack-labs/leapdict/pkg/locality"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Watch bool
	Tick  time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep dictionaries loaded and serve lookups over HTTP",
		Long: `Load every dictionary, reload each one when its lifetime expires, and serve
lookups on server.http_port.

Endpoints:
  GET  /dictionaries               dictionary status
  GET  /dictionaries/{name}/{key}  look up a row
  POST /dictionaries/{name}/reload reload one dictionary
  POST /dictionaries/reload        reload all dictionaries
  GET  /processes                  running user queries of the local engine
  POST /query                      run a user query on the local engine
  GET  /history                    recent loads (when state.path is set)
  GET  /metrics                    Prometheus metrics

With --watch, editing the config file rebuilds all dictionaries. The new
dictionaries replace the current ones only if every one of them loads.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Rebuild dictionaries when the config file changes")
	cmd.Flags().DurationVar(&opts.Tick, "tick", time.Second, "How often to check for expired dictionaries")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	m, err := buildManager(ctx, cc.Cfg, cc, mt)
	if err != nil {
		return err
	}
	if err := m.ReloadAll(ctx); err != nil {
		cc.Logger.Warn("initial load finished with errors", "error", err)
	}

	srvCfg := server.Config{
		Port:     cc.Cfg.Server.HTTPPort,
		Engine:   cc.Engine,
		Manager:  m,
		Gatherer: reg,
		Tick:     opts.Tick,
		Logger:   cc.Logger,
	}
	if cc.History != nil {
		srvCfg.History = cc.History
	}

	if path := config.GetConfigFileUsed(); opts.Watch && path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		srvCfg.ConfigPath = abs
		srvCfg.Rebuild = func(ctx context.Context) (*dictionary.Manager, error) {
			cfg, err := config.LoadConfig(abs, cmd.Root().PersistentFlags())
			if err != nil {
				return nil, err
			}
			locality.SetServicePort(cfg.Server.TCPPort)
			return buildManager(ctx, cfg, cc, mt)
		}
	}

	return server.New(srvCfg).Serve(ctx)
}
