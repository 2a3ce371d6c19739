package core

import (
	"context"
	"database/sql"
)

// Adapter is a database driver the in-process engine runs on. Local
// dictionary loads reach the adapter through an Executor, never directly.
type Adapter interface {
	Connect(ctx context.Context, cfg AdapterConfig) error
	Close() error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string) error
	// Query runs a statement and hands the open rows to the caller, who
	// must close them.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetTableMetadata describes table, which may be schema-qualified.
	GetTableMetadata(ctx context.Context, table string) (*TableMetadata, error)
	// LoadCSV replaces tableName with the contents of a CSV file.
	LoadCSV(ctx context.Context, tableName, filePath string) error

	// DialectName names the engine's SQL dialect for logs.
	DialectName() string
}

// AdapterConfig is the engine section of the configuration. File-based
// engines read Path; server engines read the network fields.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Options are driver connection options such as sslmode.
	Options map[string]string
	// Params are engine-specific settings decoded by the adapter.
	Params map[string]any
}

// TableMetadata describes a table as seen by the engine.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows is an open result set returned by Adapter.Query.
type Rows struct {
	*sql.Rows
}
