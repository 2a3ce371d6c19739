// Package state persists the history of dictionary loads in SQLite.
package state

import (
	"context"
	"time"
)

// LoadRecord is one dictionary load attempt.
type LoadRecord struct {
	ID         string
	Dictionary string
	Source     string
	Path       string
	Rows       int
	StartedAt  time.Time
	Duration   time.Duration
	Error      string
}

// Failed reports whether the load failed.
func (r LoadRecord) Failed() bool {
	return r.Error != ""
}

// Store records and lists load attempts.
type Store interface {
	RecordLoad(ctx context.Context, rec LoadRecord) error
	ListLoads(ctx context.Context, dictionary string, limit int) ([]LoadRecord, error)
	Close() error
}
