package dictsource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapdict/pkg/core"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a source factory to the registry.
// Called by source implementations in their init() functions.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// Get retrieves a source factory by kind.
func Get(kind string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[kind]
	return f, ok
}

// New builds a source of the given kind.
func New(ctx context.Context, kind string, params map[string]any, structure []core.Column, deps Deps) (Source, error) {
	if kind == "" {
		return nil, &ConfigError{Key: "source", Reason: "source kind not specified"}
	}

	factory, ok := Get(kind)
	if !ok {
		return nil, &UnknownSourceError{
			Kind:      kind,
			Available: ListKinds(),
		}
	}
	return factory(ctx, params, structure, deps)
}

// ListKinds returns all registered source kinds (sorted).
func ListKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// IsRegistered checks if a source kind is registered.
func IsRegistered(kind string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}

// UnknownSourceError is returned when an unknown source kind is requested.
type UnknownSourceError struct {
	Kind      string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source kind %q\nAvailable sources: %v\nHint: Check dictionaries.<name>.source in leapdict.yaml", e.Kind, e.Available)
}
