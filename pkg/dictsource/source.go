// Package dictsource defines the contract between dictionaries and the
// sources that feed them, plus a registry of source kinds.
//
// Concrete sources live in pkg/sources/ subdirectories and register
// themselves from init functions.
package dictsource

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/locality"
)

// Source produces the rows of one dictionary.
//
// A Source is not safe for concurrent use. Each concurrent consumer obtains
// its own instance with Clone.
type Source interface {
	// LoadAll streams a full snapshot of the source table. Each call issues
	// the query again; the returned stream belongs to the caller.
	LoadAll(ctx context.Context) (core.BatchStream, error)

	// LoadID streams the row for a single key.
	LoadID(ctx context.Context, id uint64) (core.BatchStream, error)

	// LoadIDs streams the rows for a set of keys.
	LoadIDs(ctx context.Context, ids []uint64) (core.BatchStream, error)

	// IsModified reports whether the source may have changed since the last load.
	IsModified() bool

	// SupportsSelectiveLoad reports whether LoadID and LoadIDs are usable.
	SupportsSelectiveLoad() bool

	// Clone returns an independent source with the same configuration and its
	// own connection resources.
	Clone() (Source, error)

	// Close releases the connection resources owned by this instance.
	Close() error

	// String describes the source for logs.
	String() string
}

// Deps carries the collaborators a factory may need.
type Deps struct {
	// Executor runs queries in-process; used by sources that can bypass the network.
	Executor core.Executor

	// Resolver decides whether an endpoint is this process; nil means
	// locality.Default().
	Resolver *locality.Resolver

	// Logger is used by the source; nil means discard.
	Logger *slog.Logger
}

// Factory builds a Source of one kind from its raw configuration params and
// the dictionary's expected structure. ctx bounds any lookups done while
// building; factories must not perform network I/O beyond name resolution.
type Factory func(ctx context.Context, params map[string]any, structure []core.Column, deps Deps) (Source, error)
