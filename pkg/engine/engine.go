// Package engine is the in-process execution context that local dictionary
// loads run against. It wraps a database adapter, returns query results as
// batch streams, and keeps a process list of user-initiated queries.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapdict/pkg/adapter"
	"github.com/leapstack-labs/leapdict/pkg/core"
)

// Config selects and configures the engine's adapter.
type Config struct {
	Adapter   core.AdapterConfig
	BlockSize int
}

// Engine executes queries in-process.
type Engine struct {
	adapter   core.Adapter
	blockSize int
	processes *ProcessList
	logger    *slog.Logger
}

// Open creates the adapter named by cfg.Adapter.Type and connects it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	adp, err := adapter.NewAdapter(cfg.Adapter, logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, cfg.Adapter); err != nil {
		return nil, fmt.Errorf("failed to start %s engine: %w", cfg.Adapter.Type, err)
	}
	eng := New(adp, cfg.BlockSize, logger)
	eng.logger.Debug("engine started", slog.String("dialect", adp.DialectName()))
	return eng, nil
}

// New wraps an already connected adapter.
// If logger is nil, a discard logger is used.
func New(adp core.Adapter, blockSize int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if blockSize <= 0 {
		blockSize = core.DefaultBlockSize
	}
	return &Engine{
		adapter:   adp,
		blockSize: blockSize,
		processes: NewProcessList(),
		logger:    logger,
	}
}

// Execute runs query and returns its result as a batch stream. Queries not
// marked core.Internal are listed in the process list until the stream is
// closed.
func (e *Engine) Execute(ctx context.Context, query string, opts ...core.ExecOption) (core.BatchStream, error) {
	o := core.ApplyExecOptions(opts...)

	var onClose func()
	if !o.Internal {
		p := e.processes.Add(query)
		e.logger.Debug("query started", slog.String("query_id", p.ID), slog.String("query", query))
		onClose = func() { e.processes.Remove(p.ID) }
	}

	rows, err := e.adapter.Query(ctx, query)
	if err != nil {
		if onClose != nil {
			onClose()
		}
		return nil, err
	}

	cols, err := columnsOf(rows.Rows)
	if err != nil {
		_ = rows.Close()
		if onClose != nil {
			onClose()
		}
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	return core.NewRowStream(&sqlReader{rows: rows.Rows, width: len(cols)}, cols, e.blockSize, onClose), nil
}

// Processes returns a snapshot of running user queries.
func (e *Engine) Processes() []Process {
	return e.processes.List()
}

// Adapter returns the underlying adapter.
func (e *Engine) Adapter() core.Adapter {
	return e.adapter
}

// Close closes the adapter.
func (e *Engine) Close() error {
	return e.adapter.Close()
}

var _ core.Executor = (*Engine)(nil)

func columnsOf(rows *sql.Rows) ([]core.Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]core.Column, len(types))
	for i, ct := range types {
		nullable, _ := ct.Nullable()
		cols[i] = core.Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
			Position: i + 1,
		}
	}
	return cols, nil
}

// sqlReader adapts *sql.Rows to core.RowReader.
type sqlReader struct {
	rows  *sql.Rows
	width int
}

func (r *sqlReader) Next() bool {
	return r.rows.Next()
}

func (r *sqlReader) Values() ([]any, error) {
	vals := make([]any, r.width)
	ptrs := make([]any, r.width)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (r *sqlReader) Err() error {
	return r.rows.Err()
}

func (r *sqlReader) Close() error {
	return r.rows.Close()
}
