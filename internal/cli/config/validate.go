package config

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapdict/pkg/adapter"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validPort("server.tcp_port", c.Server.TCPPort); err != nil {
		return err
	}
	if err := validPort("server.http_port", c.Server.HTTPPort); err != nil {
		return err
	}
	if c.Engine.Type == "" {
		return fmt.Errorf("engine.type is required")
	}
	if !adapter.IsRegistered(c.Engine.Type) {
		return &adapter.UnknownAdapterError{Type: c.Engine.Type, Available: adapter.Engines()}
	}
	if c.Reload.Workers <= 0 {
		return fmt.Errorf("reload.workers must be positive, got %d", c.Reload.Workers)
	}
	if c.Reload.Interval <= 0 {
		return fmt.Errorf("reload.interval must be positive, got %s", c.Reload.Interval)
	}

	names := make([]string, 0, len(c.Dictionaries))
	for name := range c.Dictionaries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.Dictionaries[name].validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (d DictionaryConfig) validate(name string) error {
	if len(d.Structure) == 0 {
		return fmt.Errorf("dictionaries.%s.structure: at least one column is required", name)
	}
	for i, col := range d.Structure {
		if col.Name == "" {
			return fmt.Errorf("dictionaries.%s.structure[%d]: name is required", name, i)
		}
	}
	if d.Lifetime < 0 {
		return fmt.Errorf("dictionaries.%s.lifetime must not be negative", name)
	}

	kind, _ := d.SourceKind()
	if kind == "" {
		return fmt.Errorf("dictionaries.%s.source: exactly one source must be configured, got %d", name, len(d.Source))
	}
	if !dictsource.IsRegistered(kind) {
		return fmt.Errorf("dictionaries.%s: %w", name, &dictsource.UnknownSourceError{Kind: kind, Available: dictsource.ListKinds()})
	}
	return nil
}

func validPort(key string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", key, port)
	}
	return nil
}
