package node

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/remote"
)

// connection is where a source sends its query: the shared in-process
// executor, or a pool it owns.
type connection interface {
	query(ctx context.Context, sql string) (core.BatchStream, error)
	clone() (connection, error)
	close() error
}

// localExec runs queries on the shared executor. It does not own it.
type localExec struct {
	exec core.Executor
}

func (c localExec) query(ctx context.Context, sql string) (core.BatchStream, error) {
	return c.exec.Execute(ctx, sql, core.Internal())
}

func (c localExec) clone() (connection, error) { return c, nil }

func (c localExec) close() error { return nil }

// PoolFactory creates the pool a remote source owns.
type PoolFactory func(cfg remote.Config, logger *slog.Logger) (*remote.Pool, error)

// remotePool runs queries over a pool owned by one source instance.
type remotePool struct {
	pool    *remote.Pool
	newPool PoolFactory
	logger  *slog.Logger
}

func (c *remotePool) query(ctx context.Context, sql string) (core.BatchStream, error) {
	return c.pool.Query(ctx, sql)
}

func (c *remotePool) clone() (connection, error) {
	p, err := c.newPool(c.pool.Config(), c.logger)
	if err != nil {
		return nil, err
	}
	return &remotePool{pool: p, newPool: c.newPool, logger: c.logger}, nil
}

func (c *remotePool) close() error {
	c.pool.Close()
	return nil
}
