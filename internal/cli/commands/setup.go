package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/leapdict/internal/cli/config"
	"github.com/leapstack-labs/leapdict/internal/dictionary"
	"github.com/leapstack-labs/leapdict/internal/metrics"
	"github.com/leapstack-labs/leapdict/internal/state"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
	"github.com/leapstack-labs/leapdict/pkg/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Engine *engine.Engine
	// History is nil when state.path is not configured.
	History *state.SQLiteStore
}

// NewCommandContext creates a CommandContext with an open engine.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := config.GetLogger(cmd.Context())

	eng, err := engine.Open(cmd.Context(), engine.Config{
		Adapter:   cfg.Engine.AdapterConfig(),
		BlockSize: cfg.Engine.MaxBlockSize,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	history, err := openHistory(cmd.Context(), cfg, logger)
	if err != nil {
		_ = eng.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if history != nil {
			_ = history.Close()
		}
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:     cfg,
		Logger:  logger,
		Engine:  eng,
		History: history,
	}, cleanup, nil
}

// openHistory opens the load history store, or returns nil when none is
// configured.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if cfg.State.Path == "" {
		return nil, nil
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(ctx, cfg.State.Path); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return store, nil
}

// getConfig returns the configuration loaded by the root command.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return nil, fmt.Errorf("configuration not loaded")
}

// buildManager creates a source and a dictionary for every configured
// dictionary. Sources resolve their locality here.
func buildManager(ctx context.Context, cfg *config.Config, cc *CommandContext, mt *metrics.Metrics) (*dictionary.Manager, error) {
	logger := cc.Logger
	names := make([]string, 0, len(cfg.Dictionaries))
	for name := range cfg.Dictionaries {
		names = append(names, name)
	}
	sort.Strings(names)

	dicts := make([]*dictionary.Dictionary, 0, len(names))
	closeAll := func() {
		for _, d := range dicts {
			_ = d.Close()
		}
	}

	for _, name := range names {
		dc := cfg.Dictionaries[name]
		kind, params := dc.SourceKind()
		src, err := dictsource.New(ctx, kind, params, dc.Structure, dictsource.Deps{
			Executor: cc.Engine,
			Logger:   logger.With(slog.String("dictionary", name)),
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("dictionary %s: %w", name, err)
		}

		lifetime := dc.Lifetime
		if lifetime == 0 {
			lifetime = cfg.Reload.Interval
		}
		dicts = append(dicts, dictionary.New(name, dc.Structure, lifetime, src))
	}

	opts := []dictionary.Option{
		dictionary.WithWorkers(cfg.Reload.Workers),
		dictionary.WithMetrics(mt),
		dictionary.WithLogger(logger),
	}
	if cc.History != nil {
		opts = append(opts, dictionary.WithHistory(cc.History))
	}
	return dictionary.NewManager(dicts, opts...), nil
}
