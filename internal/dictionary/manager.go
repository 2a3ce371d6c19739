package dictionary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/leapstack-labs/leapdict/internal/metrics"
	"github.com/leapstack-labs/leapdict/internal/state"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultWorkers is the number of concurrent loaders used when none is set.
const DefaultWorkers = 4

// NotFoundError is returned for an unknown dictionary name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dictionary %q not found", e.Name)
}

// History receives a record of every load attempt.
type History interface {
	RecordLoad(ctx context.Context, rec state.LoadRecord) error
}

// Manager owns a set of dictionaries and reloads them.
type Manager struct {
	dicts   map[string]*Dictionary
	names   []string
	workers int
	metrics *metrics.Metrics
	history History
	logger  *slog.Logger
	single  singleflight.Group

	// idle holds clones between loads, keyed by dictionary name, so
	// periodic reloads reuse their connections.
	mu     sync.Mutex
	idle   map[string][]dictsource.Source
	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithWorkers sets the number of concurrent loaders for ReloadAll.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithMetrics records every load in mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithHistory records every load attempt in h.
func WithHistory(h History) Option {
	return func(m *Manager) { m.history = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a manager over dicts.
func NewManager(dicts []*Dictionary, opts ...Option) *Manager {
	m := &Manager{
		dicts:   make(map[string]*Dictionary, len(dicts)),
		workers: DefaultWorkers,
		idle:    make(map[string][]dictsource.Source),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, d := range dicts {
		m.dicts[d.Name()] = d
		m.names = append(m.names, d.Name())
	}
	sort.Strings(m.names)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Names returns the dictionary names, sorted.
func (m *Manager) Names() []string {
	return append([]string(nil), m.names...)
}

// Get returns the named dictionary.
func (m *Manager) Get(name string) (*Dictionary, bool) {
	d, ok := m.dicts[name]
	return d, ok
}

// ReloadAll loads every dictionary. Failures do not stop other loads; they
// are returned together.
func (m *Manager) ReloadAll(ctx context.Context) error {
	dicts := make([]*Dictionary, 0, len(m.names))
	for _, name := range m.names {
		dicts = append(dicts, m.dicts[name])
	}
	return m.reload(ctx, dicts)
}

// Reload loads the named dictionaries, or all of them when names is empty.
func (m *Manager) Reload(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return m.ReloadAll(ctx)
	}
	dicts := make([]*Dictionary, 0, len(names))
	for _, name := range names {
		d, ok := m.dicts[name]
		if !ok {
			return &NotFoundError{Name: name}
		}
		dicts = append(dicts, d)
	}
	return m.reload(ctx, dicts)
}

// ReloadOne loads a single dictionary. Concurrent calls for the same name
// share one load.
func (m *Manager) ReloadOne(ctx context.Context, name string) error {
	d, ok := m.dicts[name]
	if !ok {
		return &NotFoundError{Name: name}
	}
	_, err, _ := m.single.Do(name, func() (any, error) {
		src, err := m.acquire(d)
		if err != nil {
			return nil, err
		}
		err = m.load(ctx, d, src)
		m.release(d.Name(), src, err)
		return nil, err
	})
	return err
}

// acquire returns an idle clone of d's source, or a new one.
func (m *Manager) acquire(d *Dictionary) (dictsource.Source, error) {
	m.mu.Lock()
	if free := m.idle[d.Name()]; len(free) > 0 {
		src := free[len(free)-1]
		m.idle[d.Name()] = free[:len(free)-1]
		m.mu.Unlock()
		return src, nil
	}
	m.mu.Unlock()

	src, err := d.Source().Clone()
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: failed to clone source: %w", d.Name(), err)
	}
	return src, nil
}

// release keeps src for the next load of name. A clone whose load failed is
// closed so the next load reconnects.
func (m *Manager) release(name string, src dictsource.Source, loadErr error) {
	m.mu.Lock()
	if loadErr == nil && !m.closed {
		m.idle[name] = append(m.idle[name], src)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.closeSource(src)
}

// reload runs dicts through the worker pool. Workers load through clones
// kept by the manager between reloads.
func (m *Manager) reload(ctx context.Context, dicts []*Dictionary) error {
	jobs := make(chan *Dictionary)
	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	record := func(err error) {
		mu.Lock()
		result = multierror.Append(result, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, d := range dicts {
			select {
			case jobs <- d:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workers := min(m.workers, len(dicts))
	for range workers {
		g.Go(func() error {
			clones := make(map[string]dictsource.Source)
			defer func() {
				for _, src := range clones {
					m.closeSource(src)
				}
			}()
			for d := range jobs {
				src, ok := clones[d.Name()]
				if !ok {
					var err error
					if src, err = d.Source().Clone(); err != nil {
						record(fmt.Errorf("dictionary %s: failed to clone source: %w", d.Name(), err))
						continue
					}
					clones[d.Name()] = src
				}
				if err := m.load(gctx, d, src); err != nil {
					record(err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		record(err)
	}
	return result.ErrorOrNil()
}

func (m *Manager) load(ctx context.Context, d *Dictionary, src dictsource.Source) error {
	start := time.Now()
	rows, err := d.Load(ctx, src)
	took := time.Since(start)
	path := SourcePath(src)
	m.metrics.ObserveLoad(d.Name(), path, rows, took, err)
	m.recordHistory(ctx, state.LoadRecord{
		Dictionary: d.Name(),
		Source:     src.String(),
		Path:       path,
		Rows:       rows,
		StartedAt:  start,
		Duration:   took,
	}, err)

	if err != nil {
		m.logger.Error("dictionary load failed",
			slog.String("dictionary", d.Name()),
			slog.String("source", src.String()),
			slog.String("error", err.Error()))
		return err
	}
	m.logger.Info("dictionary loaded",
		slog.String("dictionary", d.Name()),
		slog.String("path", path),
		slog.Int("rows", rows),
		slog.Duration("took", took))
	return nil
}

func (m *Manager) recordHistory(ctx context.Context, rec state.LoadRecord, loadErr error) {
	if m.history == nil {
		return
	}
	if loadErr != nil {
		rec.Error = loadErr.Error()
	}
	// A cancelled load is still worth recording.
	if err := m.history.RecordLoad(context.WithoutCancel(ctx), rec); err != nil {
		m.logger.Warn("failed to record load history",
			slog.String("dictionary", rec.Dictionary),
			slog.String("error", err.Error()))
	}
}

// Run reloads dictionaries whose snapshot has outlived its lifetime and whose
// source reports a possible change. It checks every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			due := m.due(now)
			if len(due) == 0 {
				continue
			}
			if err := m.reload(ctx, due); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("periodic reload finished with errors", slog.String("error", err.Error()))
			}
		}
	}
}

func (m *Manager) due(now time.Time) []*Dictionary {
	var out []*Dictionary
	for _, name := range m.names {
		d := m.dicts[name]
		if d.Due(now) && d.Source().IsModified() {
			out = append(out, d)
		}
	}
	return out
}

// MinLifetime returns the shortest dictionary lifetime, or fallback when
// there are no dictionaries.
func (m *Manager) MinLifetime(fallback time.Duration) time.Duration {
	least := time.Duration(0)
	for _, d := range m.dicts {
		if lt := d.Lifetime(); lt > 0 && (least == 0 || lt < least) {
			least = lt
		}
	}
	if least == 0 {
		return fallback
	}
	return least
}

// Close closes the kept clones and every dictionary's source. Clones
// released after Close are closed on release.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	idle := m.idle
	m.idle = make(map[string][]dictsource.Source)
	m.mu.Unlock()

	var result *multierror.Error
	for _, name := range m.names {
		for _, src := range idle[name] {
			if err := src.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	for _, name := range m.names {
		if err := m.dicts[name].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (m *Manager) closeSource(src dictsource.Source) {
	if err := src.Close(); err != nil {
		m.logger.Warn("failed to close source", slog.String("source", src.String()), slog.String("error", err.Error()))
	}
}

// SourcePath labels src as "local" or "remote" when the source can tell,
// and "unknown" otherwise.
func SourcePath(src dictsource.Source) string {
	l, ok := src.(interface{ Local() bool })
	switch {
	case !ok:
		return "unknown"
	case l.Local():
		return "local"
	default:
		return "remote"
	}
}
