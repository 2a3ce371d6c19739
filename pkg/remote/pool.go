// Package remote streams query results from a remote engine instance over a
// bounded pgx connection pool.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
)

// MaxConnections bounds every pool built by NewPool.
const MaxConnections = 1

// DefaultApplicationName is reported to the remote instance when none is configured.
const DefaultApplicationName = "leapdict"

// Config addresses a remote instance.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// SSLMode is passed through to the driver; empty means "disable".
	SSLMode string

	// ApplicationName identifies the pool to the remote instance.
	ApplicationName string

	// BlockSize caps the number of rows per batch.
	BlockSize int
}

// Querier is the part of *pgxpool.Pool a Pool depends on.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Pool runs queries against one remote instance. Creating a Pool performs no
// network I/O: connections are dialed on first use.
type Pool struct {
	cfg    Config
	q      Querier
	logger *slog.Logger
}

// NewPool creates a pool of at most MaxConnections connections to cfg.
// If logger is nil, a discard logger is used.
func NewPool(cfg Config, logger *slog.Logger) (*Pool, error) {
	pcfg, err := pgxpool.ParseConfig(connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings for %s: %w", addr(cfg), err)
	}
	pcfg.MaxConns = MaxConnections
	pcfg.MinConns = 0

	pgp, err := pgxpool.NewWithConfig(context.Background(), pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool for %s: %w", addr(cfg), err)
	}
	return NewPoolWithQuerier(cfg, pgp, logger), nil
}

// NewPoolWithQuerier wraps an existing querier.
func NewPoolWithQuerier(cfg Config, q Querier, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{cfg: cfg, q: q, logger: logger}
}

// Config returns the pool's address and credentials.
func (p *Pool) Config() Config {
	return p.cfg
}

// Query sends sql and returns a stream that pulls rows over the pooled
// connection as they arrive. The connection goes back to the pool when the
// stream is closed.
func (p *Pool) Query(ctx context.Context, sql string) (core.BatchStream, error) {
	p.logger.Debug("executing remote query",
		slog.String("addr", addr(p.cfg)),
		slog.String("database", p.cfg.Database))

	rows, err := p.q.Query(ctx, sql)
	if err != nil {
		return nil, p.wrapErr(err)
	}

	fds := rows.FieldDescriptions()
	if len(fds) == 0 {
		// Statement errors are deferred to Err by the driver.
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, p.wrapErr(err)
		}
	}

	return core.NewRowStream(&rowReader{rows: rows, pool: p}, columnsOf(fds), p.cfg.BlockSize, nil), nil
}

// Close closes all connections.
func (p *Pool) Close() {
	p.q.Close()
}

// wrapErr reports transport failures as connection errors. Errors raised by
// the remote server for the statement itself are returned as they are.
func (p *Pool) wrapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("query on %s failed: %w", addr(p.cfg), err)
	}
	return &dictsource.ConnectionError{Host: p.cfg.Host, Port: p.cfg.Port, Err: err}
}

// rowReader adapts pgx.Rows to core.RowReader.
type rowReader struct {
	rows pgx.Rows
	pool *Pool
}

func (r *rowReader) Next() bool {
	return r.rows.Next()
}

func (r *rowReader) Values() ([]any, error) {
	vals, err := r.rows.Values()
	if err != nil {
		return nil, r.pool.wrapErr(err)
	}
	return vals, nil
}

func (r *rowReader) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.pool.wrapErr(err)
	}
	return nil
}

func (r *rowReader) Close() error {
	r.rows.Close()
	return nil
}

var typeMap = pgtype.NewMap()

func columnsOf(fds []pgconn.FieldDescription) []core.Column {
	cols := make([]core.Column, len(fds))
	for i, fd := range fds {
		typeName := ""
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = t.Name
		}
		cols[i] = core.Column{Name: fd.Name, Type: typeName, Nullable: true, Position: i + 1}
	}
	return cols
}

// connString renders cfg as a connection URL.
func connString(cfg Config) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   addr(cfg),
		Path:   "/" + cfg.Database,
	}
	switch {
	case cfg.User != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.User, cfg.Password)
	case cfg.User != "":
		u.User = url.User(cfg.User)
	}

	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	appName := cfg.ApplicationName
	if appName == "" {
		appName = DefaultApplicationName
	}
	q := url.Values{}
	q.Set("sslmode", sslmode)
	q.Set("application_name", appName)
	u.RawQuery = q.Encode()
	return u.String()
}

func addr(cfg Config) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}
