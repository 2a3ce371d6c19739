// Package server serves dictionary lookups over HTTP and keeps the
// dictionaries in sync with the config file.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapdict/internal/dictionary"
	"github.com/leapstack-labs/leapdict/internal/metrics"
	"github.com/leapstack-labs/leapdict/internal/state"
	"github.com/leapstack-labs/leapdict/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// History lists recorded load attempts, newest first.
type History interface {
	ListLoads(ctx context.Context, dictionary string, limit int) ([]state.LoadRecord, error)
}

// RebuildFunc builds a fresh manager from the current config file.
type RebuildFunc func(ctx context.Context) (*dictionary.Manager, error)

// Config holds configuration for the server.
type Config struct {
	Port     int
	Engine   *engine.Engine
	Manager  *dictionary.Manager
	Gatherer prometheus.Gatherer
	// History is optional; /history is not found without it.
	History History

	// Tick is how often dictionaries are checked for expiry.
	Tick time.Duration

	// ConfigPath is watched when Rebuild is set.
	ConfigPath string
	Rebuild    RebuildFunc

	Logger *slog.Logger
}

// Server serves lookups from the current manager. The manager is replaced
// when the config file changes.
type Server struct {
	port       int
	engine     *engine.Engine
	manager    atomic.Pointer[dictionary.Manager]
	gatherer   prometheus.Gatherer
	history    History
	tick       time.Duration
	configPath string
	rebuild    RebuildFunc
	logger     *slog.Logger

	// swapped is signalled after a new manager is installed.
	swapped chan struct{}

	// mu guards manager swaps against the final close in Serve.
	mu     sync.Mutex
	closed bool
}

// ErrServerClosed is returned by Reconfigure once Serve has shut down.
var ErrServerClosed = errors.New("server closed")

// New creates a server. It takes ownership of cfg.Manager.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = time.Second
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		port:       cfg.Port,
		engine:     cfg.Engine,
		gatherer:   gatherer,
		history:    cfg.History,
		tick:       tick,
		configPath: cfg.ConfigPath,
		rebuild:    cfg.Rebuild,
		logger:     logger,
		swapped:    make(chan struct{}, 1),
	}
	s.manager.Store(cfg.Manager)
	return s
}

// Manager returns the manager currently serving lookups.
func (s *Server) Manager() *dictionary.Manager {
	return s.manager.Load()
}

// Serve starts the HTTP server, periodic reloads and, when configured, the
// config watcher. It blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		return s.runReloads(egctx)
	})

	if s.rebuild != nil && s.configPath != "" {
		eg.Go(func() error {
			return s.watchConfig(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	s.shutdown()
	return err
}

// runReloads runs the current manager's periodic reload loop, restarting it
// whenever the manager is replaced.
func (s *Server) runReloads(ctx context.Context) error {
	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		m := s.Manager()
		go func() { done <- m.Run(runCtx, s.tick) }()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case <-s.swapped:
			cancel()
			<-done
		}
	}
}

// watchConfig rebuilds the dictionaries when the config file changes.
// New sources resolve locality again, so a changed service port or address
// takes effect here.
func (s *Server) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(s.configPath)); err != nil {
		s.logger.Error("failed to watch config", "path", s.configPath, "error", err)
		<-ctx.Done()
		return nil
	}

	target := filepath.Clean(s.configPath)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Info("config changed, rebuilding dictionaries", "file", event.Name)
				if err := s.Reconfigure(ctx); err != nil {
					s.logger.Error("rebuild failed, keeping current dictionaries", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// Reconfigure builds a new manager, loads it, and swaps it in. The old
// manager keeps serving until the new one is loaded. If any dictionary of
// the new manager fails its initial load, the new manager is discarded and
// the old one stays in place.
func (s *Server) Reconfigure(ctx context.Context) error {
	if s.rebuild == nil {
		return errors.New("reconfiguration is not enabled")
	}
	next, err := s.rebuild(ctx)
	if err != nil {
		return err
	}
	if err := next.ReloadAll(ctx); err != nil {
		s.discard(next)
		return fmt.Errorf("initial load after rebuild: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.discard(next)
		return ErrServerClosed
	}
	prev := s.manager.Swap(next)
	s.mu.Unlock()

	select {
	case s.swapped <- struct{}{}:
	default:
	}
	if prev != nil {
		if err := prev.Close(); err != nil {
			s.logger.Warn("failed to close previous dictionaries", "error", err)
		}
	}
	return nil
}

func (s *Server) discard(m *dictionary.Manager) {
	if err := m.Close(); err != nil {
		s.logger.Warn("failed to close rebuilt dictionaries", "error", err)
	}
}

// shutdown marks the server closed and closes the current manager. A
// Reconfigure finishing later closes its own manager instead of installing it.
func (s *Server) shutdown() {
	s.mu.Lock()
	s.closed = true
	m := s.manager.Load()
	s.mu.Unlock()

	if m == nil {
		return
	}
	if err := m.Close(); err != nil {
		s.logger.Warn("failed to close dictionaries", "error", err)
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Handle("/metrics", metrics.Handler(s.gatherer))
	r.Get("/healthz", s.handleHealth)
	r.Get("/processes", s.handleProcesses)
	r.Post("/query", s.handleQuery)
	r.Get("/history", s.handleHistory)
	r.Route("/dictionaries", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/reload", s.handleReloadAll)
		r.Post("/{name}/reload", s.handleReload)
		r.Get("/{name}/{key}", s.handleLookup)
	})
	return r
}
