// Package dictionary holds in-memory lookup tables built from dictionary
// sources and keeps them fresh.
package dictionary

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
)

// Dictionary is a key to row lookup table keyed by its first column.
//
// Reads go to an immutable snapshot. A load builds a complete new snapshot
// and swaps it in only when the whole stream was consumed without error.
type Dictionary struct {
	name      string
	structure []core.Column
	lifetime  time.Duration
	source    dictsource.Source

	snap atomic.Pointer[snapshot]

	mu      sync.Mutex
	lastErr error
}

type snapshot struct {
	rows     map[string][]any
	loadedAt time.Time
}

// New creates an empty dictionary fed by source. The dictionary owns source
// and closes it in Close.
func New(name string, structure []core.Column, lifetime time.Duration, source dictsource.Source) *Dictionary {
	return &Dictionary{
		name:      name,
		structure: structure,
		lifetime:  lifetime,
		source:    source,
	}
}

// Name returns the dictionary name.
func (d *Dictionary) Name() string { return d.name }

// Structure returns the expected columns; the first is the key.
func (d *Dictionary) Structure() []core.Column { return d.structure }

// Lifetime returns how long a snapshot stays fresh.
func (d *Dictionary) Lifetime() time.Duration { return d.lifetime }

// Source returns the source the dictionary was configured with. Concurrent
// loaders must use clones of it.
func (d *Dictionary) Source() dictsource.Source { return d.source }

// Load replaces the snapshot with the full contents of src. On error the
// current snapshot is kept. It returns the number of rows loaded.
func (d *Dictionary) Load(ctx context.Context, src dictsource.Source) (int, error) {
	rows, err := d.fetch(ctx, src)
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
	if err != nil {
		return 0, err
	}
	d.snap.Store(&snapshot{rows: rows, loadedAt: time.Now()})
	return len(rows), nil
}

func (d *Dictionary) fetch(ctx context.Context, src dictsource.Source) (map[string][]any, error) {
	stream, err := src.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", d.name, err)
	}

	rows := make(map[string][]any)
	err = core.Drain(ctx, stream, func(b *core.Batch) error {
		for _, row := range b.Rows {
			if len(row) == 0 {
				continue
			}
			rows[keyString(row[0])] = row
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", d.name, err)
	}
	return rows, nil
}

// Get returns the row stored under key.
func (d *Dictionary) Get(key string) ([]any, bool) {
	s := d.snap.Load()
	if s == nil {
		return nil, false
	}
	row, ok := s.rows[key]
	return row, ok
}

// Lookup returns the row stored under key as a column name to value map.
func (d *Dictionary) Lookup(key string) (map[string]any, bool) {
	row, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(d.structure))
	for i, col := range d.structure {
		if i < len(row) {
			out[col.Name] = row[i]
		}
	}
	return out, true
}

// Each calls fn for each row in key order until fn returns false.
func (d *Dictionary) Each(fn func(row []any) bool) {
	s := d.snap.Load()
	if s == nil {
		return
	}
	keys := make([]string, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(s.rows[k]) {
			return
		}
	}
}

// Len returns the number of keys in the current snapshot.
func (d *Dictionary) Len() int {
	if s := d.snap.Load(); s != nil {
		return len(s.rows)
	}
	return 0
}

// LoadedAt returns when the current snapshot was built, or the zero time.
func (d *Dictionary) LoadedAt() time.Time {
	if s := d.snap.Load(); s != nil {
		return s.loadedAt
	}
	return time.Time{}
}

// Due reports whether the snapshot is missing or older than the lifetime.
func (d *Dictionary) Due(now time.Time) bool {
	s := d.snap.Load()
	return s == nil || now.Sub(s.loadedAt) >= d.lifetime
}

// LastError returns the error of the most recent load, if it failed.
func (d *Dictionary) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Close closes the source.
func (d *Dictionary) Close() error {
	return d.source.Close()
}

func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	case nil:
		return ""
	default:
		return fmt.Sprint(k)
	}
}
