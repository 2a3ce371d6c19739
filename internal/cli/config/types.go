// Package config loads leapdict configuration with koanf.
//
// Values are merged from defaults, leapdict.yaml, LEAPDICT_ environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"time"

	"github.com/leapstack-labs/leapdict/pkg/core"
)

// Config holds all configuration options.
type Config struct {
	Server       ServerConfig                `koanf:"server"`
	Engine       EngineConfig                `koanf:"engine"`
	Reload       ReloadConfig                `koanf:"reload"`
	Logging      LoggingConfig               `koanf:"logging"`
	State        StateConfig                 `koanf:"state"`
	Dictionaries map[string]DictionaryConfig `koanf:"dictionaries"`
}

// ServerConfig holds the ports this process serves on. TCPPort is the
// service port used to recognise sources that point back at this process.
type ServerConfig struct {
	TCPPort  int `koanf:"tcp_port"`
	HTTPPort int `koanf:"http_port"`
}

// EngineConfig selects the in-process engine that local sources query.
type EngineConfig struct {
	Type         string         `koanf:"type"`
	Database     string         `koanf:"database"`
	Host         string         `koanf:"host"`
	Port         int            `koanf:"port"`
	User         string         `koanf:"user"`
	Password     string         `koanf:"password"`
	MaxBlockSize int            `koanf:"max_block_size"`
	Params       map[string]any `koanf:"params"`
}

// ReloadConfig controls dictionary reloads.
type ReloadConfig struct {
	Workers  int           `koanf:"workers"`
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StateConfig locates the load history database. An empty Path disables
// history.
type StateConfig struct {
	Path string `koanf:"path"`
}

// DictionaryConfig describes one dictionary. The first structure column is
// the lookup key. Source holds exactly one entry, keyed by source kind.
type DictionaryConfig struct {
	Structure []core.Column             `koanf:"structure"`
	Lifetime  time.Duration             `koanf:"lifetime"`
	Source    map[string]map[string]any `koanf:"source"`
}

// SourceKind returns the configured source kind and its params. It returns
// an empty kind unless exactly one source is configured.
func (d DictionaryConfig) SourceKind() (string, map[string]any) {
	if len(d.Source) != 1 {
		return "", nil
	}
	for kind, params := range d.Source {
		return kind, params
	}
	return "", nil
}

// Default configuration values.
const (
	DefaultTCPPort      = 9000
	DefaultHTTPPort     = 8123
	DefaultEngineType   = "duckdb"
	DefaultDatabase     = ":memory:"
	DefaultWorkers      = 4
	DefaultInterval     = 5 * time.Minute
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultMaxBlockSize = core.DefaultBlockSize
)

// AdapterConfig converts the engine section into an adapter configuration.
func (e EngineConfig) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{
		Type:     e.Type,
		Path:     e.Database,
		Database: e.Database,
		Host:     e.Host,
		Port:     e.Port,
		Username: e.User,
		Password: e.Password,
		Params:   e.Params,
	}
}
