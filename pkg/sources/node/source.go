// Package node implements the "node" dictionary source: a table on an engine
// instance addressed by host and port.
//
// Whether the address is this process is decided once, when the source is
// built. Local sources run their query on the shared in-process executor.
// Remote sources own a single-connection pool and stream rows over it.
// A source built before a reconfiguration keeps its original decision;
// rebuild it to pick up a changed service port.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
	"github.com/leapstack-labs/leapdict/pkg/locality"
	"github.com/leapstack-labs/leapdict/pkg/query"
	"github.com/leapstack-labs/leapdict/pkg/remote"
)

// Kind is the registry name of this source.
const Kind = "node"

func init() {
	dictsource.Register(Kind, factory)
}

func factory(ctx context.Context, params map[string]any, structure []core.Column, deps dictsource.Deps) (dictsource.Source, error) {
	cfg, err := ParseConfig(params)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, structure, deps)
}

// Source is a dictionary source backed by one table of a local or remote
// engine instance.
type Source struct {
	cfg       Config
	structure []core.Column
	local     bool
	query     string
	conn      connection
	logger    *slog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	newPool PoolFactory
}

// WithPoolFactory replaces remote.NewPool as the way remote sources get
// their pool.
func WithPoolFactory(f PoolFactory) Option {
	return func(o *options) { o.newPool = f }
}

// New builds a source for cfg.
//
// Locality is resolved against deps.Resolver (locality.Default() when nil).
// A host that cannot be resolved fails construction. Remote sources create
// their pool here, but no connection is dialed until the first load.
func New(ctx context.Context, cfg Config, structure []core.Column, deps dictsource.Deps, opts ...Option) (*Source, error) {
	o := options{newPool: remote.NewPool}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(structure) == 0 {
		return nil, &dictsource.ConfigError{Key: "structure", Reason: "at least one column is required"}
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = locality.Default()
	}

	local, err := resolver.IsLocal(ctx, cfg.Host, cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve locality of %s: %w", hostPort(cfg), err)
	}

	s := &Source{
		cfg:       cfg,
		structure: structure,
		local:     local,
		query:     query.ComposeLoadAll(structure, cfg.Table),
		logger:    logger.With(slog.String("source", Kind), slog.String("addr", hostPort(cfg))),
	}

	if local {
		if deps.Executor == nil {
			return nil, errors.New("local source requires an executor")
		}
		s.conn = localExec{exec: deps.Executor}
	} else {
		rc := remote.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Database: cfg.DB,
			User:     cfg.User,
			Password: cfg.Password,
		}
		p, err := o.newPool(rc, logger)
		if err != nil {
			return nil, err
		}
		s.conn = &remotePool{pool: p, newPool: o.newPool, logger: logger}
	}

	s.logger.Debug("source created", slog.Bool("local", local), slog.String("query", s.query))
	return s, nil
}

// LoadAll streams the full table. The stream's columns are checked against
// the dictionary structure before it is returned.
func (s *Source) LoadAll(ctx context.Context) (core.BatchStream, error) {
	s.logger.Debug("loading all rows", slog.Bool("local", s.local))

	stream, err := s.conn.query(ctx, s.query)
	if err != nil {
		return nil, err
	}
	if err := core.CheckColumns(s.structure, stream.Columns()); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return stream, nil
}

// LoadID is not supported by node sources.
func (s *Source) LoadID(context.Context, uint64) (core.BatchStream, error) {
	return nil, &dictsource.UnsupportedOperationError{Source: s.String(), Op: "LoadID"}
}

// LoadIDs is not supported by node sources.
func (s *Source) LoadIDs(context.Context, []uint64) (core.BatchStream, error) {
	return nil, &dictsource.UnsupportedOperationError{Source: s.String(), Op: "LoadIDs"}
}

// IsModified always reports true: changes to the table are not tracked.
func (s *Source) IsModified() bool {
	return true
}

// SupportsSelectiveLoad reports true even though LoadID and LoadIDs always
// fail. Callers must not rely on it for node sources.
func (s *Source) SupportsSelectiveLoad() bool {
	return true
}

// Clone returns a source with the same configuration, query and locality.
// A remote clone owns a new pool; a local clone shares the executor.
func (s *Source) Clone() (dictsource.Source, error) {
	conn, err := s.conn.clone()
	if err != nil {
		return nil, err
	}
	return &Source{
		cfg:       s.cfg,
		structure: s.structure,
		local:     s.local,
		query:     s.query,
		conn:      conn,
		logger:    s.logger,
	}, nil
}

// Close releases the pool of a remote source.
func (s *Source) Close() error {
	return s.conn.close()
}

// Local reports whether loads run in-process.
func (s *Source) Local() bool {
	return s.local
}

// Query returns the load-all statement.
func (s *Source) Query() string {
	return s.query
}

// Config returns the source configuration.
func (s *Source) Config() Config {
	return s.cfg
}

func (s *Source) String() string {
	return fmt.Sprintf("%s(%s, %s)", Kind, hostPort(s.cfg), s.cfg.Table)
}

// pool returns the owned pool, or nil for local sources.
func (s *Source) pool() *remote.Pool {
	if rp, ok := s.conn.(*remotePool); ok {
		return rp.pool
	}
	return nil
}

func hostPort(cfg Config) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

var _ dictsource.Source = (*Source)(nil)
