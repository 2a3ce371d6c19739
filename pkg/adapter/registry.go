package adapter

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Factory builds an unconnected adapter for one engine type.
type Factory func(logger *slog.Logger) Adapter

var engines = struct {
	sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// Register makes an engine type available to NewAdapter. Engine packages call
// it from init. Registering the same type twice or a nil factory panics.
func Register(engineType string, factory Factory) {
	if factory == nil {
		panic("adapter: Register factory is nil for " + engineType)
	}
	engines.Lock()
	defer engines.Unlock()
	if _, dup := engines.factories[engineType]; dup {
		panic("adapter: Register called twice for " + engineType)
	}
	engines.factories[engineType] = factory
}

// Lookup returns the factory for engineType.
func Lookup(engineType string) (Factory, bool) {
	engines.RLock()
	defer engines.RUnlock()
	f, ok := engines.factories[engineType]
	return f, ok
}

// NewAdapter creates a new, unconnected adapter for cfg.Type.
// A nil logger is replaced by the adapter with a discard logger.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("engine type not specified")
	}

	factory, ok := Lookup(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: Engines()}
	}
	return factory(logger), nil
}

// Engines returns the registered engine types, sorted.
func Engines() []string {
	engines.RLock()
	defer engines.RUnlock()
	return slices.Sorted(maps.Keys(engines.factories))
}

// IsRegistered reports whether engineType can be opened.
func IsRegistered(engineType string) bool {
	_, ok := Lookup(engineType)
	return ok
}

// UnknownAdapterError is returned when engine.type names no registered engine.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown engine type %q\nAvailable engines: %v\nHint: Check engine.type in leapdict.yaml", e.Type, e.Available)
}
