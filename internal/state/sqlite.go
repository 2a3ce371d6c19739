package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path and applies pending migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(ctx context.Context, path string) error {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	dsn := path
	if path != ":memory:" {
		// serve writes while the history command reads.
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to :memory: is a separate database, and SQLite allows
	// one writer at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordLoad stores rec. An empty ID is replaced with a new UUID.
func (s *SQLiteStore) RecordLoad(ctx context.Context, rec LoadRecord) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	var errMsg sql.NullString
	if rec.Error != "" {
		errMsg = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loads (id, dictionary, source, path, rows_loaded, started_at, duration_ns, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Dictionary, rec.Source, rec.Path, rec.Rows,
		rec.StartedAt.UnixNano(), int64(rec.Duration), errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record load: %w", err)
	}
	return nil
}

// ListLoads returns the most recent loads, newest first. An empty dictionary
// lists loads of all dictionaries; limit <= 0 means no limit.
func (s *SQLiteStore) ListLoads(ctx context.Context, dictionary string, limit int) ([]LoadRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dictionary, source, path, rows_loaded, started_at, duration_ns, error
		 FROM loads
		 WHERE ? = '' OR dictionary = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		dictionary, dictionary, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list loads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LoadRecord
	for rows.Next() {
		var (
			rec       LoadRecord
			startedAt int64
			duration  int64
			errMsg    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Dictionary, &rec.Source, &rec.Path, &rec.Rows, &startedAt, &duration, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan load: %w", err)
		}
		rec.StartedAt = time.Unix(0, startedAt)
		rec.Duration = time.Duration(duration)
		rec.Error = errMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
