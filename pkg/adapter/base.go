package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapdict/pkg/core"
)

// ErrNotConnected is returned by adapter methods called before Connect or
// after Close.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter implements the database/sql half of core.Adapter. Concrete
// adapters embed it and add Connect, LoadCSV and GetTableMetadata.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

func (b *BaseSQLAdapter) log() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func (b *BaseSQLAdapter) conn() (*sql.DB, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	return b.DB, nil
}

// Open opens driver with dsn and verifies the connection, storing the handle
// on success.
func (b *BaseSQLAdapter) Open(ctx context.Context, driver, dsn string, cfg core.AdapterConfig) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", driver, err)
	}
	b.DB = db
	b.Cfg = cfg
	b.log().Debug("engine connection opened", slog.String("driver", driver))
	return nil
}

// Close closes the connection. Closing an unconnected adapter is a no-op.
func (b *BaseSQLAdapter) Close() error {
	db := b.DB
	if db == nil {
		return nil
	}
	b.DB = nil
	b.log().Debug("engine connection closed")
	return db.Close()
}

// IsConnected reports whether Open succeeded and Close was not called since.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Exec runs a statement that returns no rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, stmt string) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query runs a statement and returns the open rows; the caller closes them
// and checks Err.
func (b *BaseSQLAdapter) Query(ctx context.Context, query string) (*core.Rows, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	//nolint:rowserrcheck // checked by the caller after iteration
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// ParseQualifiedName splits a table reference into schema and name, using
// defaultSchema when the reference is unqualified.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if s, n, ok := strings.Cut(table, "."); ok && !strings.Contains(n, ".") {
		return s, n
	}
	return defaultSchema, table
}

const columnsQuery = `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position`

// GetTableMetadataCommon describes table from information_schema.
// placeholder renders the n-th bind parameter for the adapter's driver.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table, defaultSchema string, placeholder func(n int) string) (*core.TableMetadata, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	schema, name := ParseQualifiedName(table, defaultSchema)
	columns, err := readColumns(ctx, db, fmt.Sprintf(columnsQuery, placeholder(1), placeholder(2)), schema, name)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	meta := &core.TableMetadata{Schema: schema, Name: name, Columns: columns}
	//nolint:gosec // names come from information_schema
	count := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", schema, name)
	if err := db.QueryRowContext(ctx, count).Scan(&meta.RowCount); err != nil {
		b.log().Debug("row count unavailable", slog.String("table", table), slog.String("error", err.Error()))
		meta.RowCount = 0
	}
	return meta, nil
}

func readColumns(ctx context.Context, db *sql.DB, query, schema, table string) ([]core.Column, error) {
	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var (
			col      core.Column
			nullable string
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return columns, nil
}

// QuestionPlaceholder renders "?" bind markers.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders "$n" bind markers.
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }
