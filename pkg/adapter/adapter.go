// Package adapter provides the database adapters that back leapdict's
// in-process engine.
//
// This package contains the adapter contract, a database/sql base that
// concrete adapters embed, and a registry keyed by engine type. Concrete
// adapters are in pkg/adapters/ subdirectories.
package adapter

import "github.com/leapstack-labs/leapdict/pkg/core"

type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)
